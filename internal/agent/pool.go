package agent

// DefaultPoolSize is used when the configured ceiling is not positive.
const DefaultPoolSize = 10

// Pool is an insertion-ordered agent registry. It is not safe for concurrent
// use; the scheduler guards it.
type Pool struct {
	order []string
	byID  map[string]*Agent
}

// NewPool creates an empty pool.
func NewPool() *Pool {
	return &Pool{byID: make(map[string]*Agent)}
}

// Add registers a. Re-adding an existing id replaces the agent in place.
func (p *Pool) Add(a *Agent) {
	if _, ok := p.byID[a.ID]; !ok {
		p.order = append(p.order, a.ID)
	}
	p.byID[a.ID] = a
}

// Get returns the agent with id.
func (p *Pool) Get(id string) (*Agent, bool) {
	a, ok := p.byID[id]
	return a, ok
}

// All returns the agents in insertion order.
func (p *Pool) All() []*Agent {
	out := make([]*Agent, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.byID[id])
	}
	return out
}

// Len returns the number of registered agents.
func (p *Pool) Len() int {
	return len(p.order)
}

// Select returns the idle agent with the strictly highest positive score for
// taskType, or nil. Ties go to the agent registered first.
func (p *Pool) Select(taskType string) *Agent {
	var (
		best      *Agent
		bestScore float64
	)
	for _, id := range p.order {
		a := p.byID[id]
		if !a.Idle() {
			continue
		}
		if s := a.Score(taskType); s > bestScore {
			best, bestScore = a, s
		}
	}
	return best
}

// Histogram counts agents per type.
func (p *Pool) Histogram() map[Type]int {
	h := make(map[Type]int)
	for _, a := range p.byID {
		h[a.Type]++
	}
	return h
}

// DefaultMix returns how many agents of each built-in type to bootstrap for a
// pool ceiling. The ceiling is split evenly; the remainder goes to types in
// KnownTypes order.
func DefaultMix(ceiling int) map[Type]int {
	if ceiling <= 0 {
		ceiling = DefaultPoolSize
	}
	mix := make(map[Type]int, len(knownTypes))
	each, rest := ceiling/len(knownTypes), ceiling%len(knownTypes)
	for i, t := range knownTypes {
		n := each
		if i < rest {
			n++
		}
		if n > 0 {
			mix[t] = n
		}
	}
	return mix
}
