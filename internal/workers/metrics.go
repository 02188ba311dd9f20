package workers

// Metrics returns the current group metrics.
func (g *Group) Metrics() Metrics {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.metrics
}

// InFlight returns the number of goroutines still running.
func (g *Group) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return int(g.metrics.InFlight)
}

func (g *Group) finish() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.metrics.Finished++
	g.metrics.InFlight--
}

func (g *Group) recordPanic() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.metrics.Panics++
}
