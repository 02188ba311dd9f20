package agent

// Score weights for agent selection.
const (
	specialistBonus = 10.0
	healthyBonus    = 5.0
	degradedBonus   = 2.0
	loadHorizon     = 100
)

// Score ranks the agent for a task of taskType. Specialist match dominates
// health: a matching unhealthy agent with 50 completions scores 10.5 while a
// non-matching healthy agent with none scores 6.0.
func (a *Agent) Score(taskType string) float64 {
	score := 0.0
	if a.HasSpecialty(taskType) {
		score += specialistBonus
	}
	switch a.Health {
	case HealthHealthy:
		score += healthyBonus
	case HealthDegraded:
		score += degradedBonus
	}
	score += float64(max(0, loadHorizon-a.CompletedCount)) / loadHorizon
	return score
}
