package evaluation

import "fmt"

// Aggregate health labels derived from the cumulative intervention log.
const (
	HealthOptimal  = "Optimal"
	HealthWarning  = "Warning"
	HealthCritical = "Critical/high-alert"
)

// StatusNormal is the per-tick status when no threshold was crossed.
const StatusNormal = "Operationally normal"

// TickStatus summarises one tick's evaluation outcome.
func TickStatus(interventions int) string {
	if interventions <= 0 {
		return StatusNormal
	}
	return fmt.Sprintf("%d interventions", interventions)
}

// ClassifyHealth labels overall system health from the cumulative count of
// Critical records ever logged.
func ClassifyHealth(criticalCount int64) string {
	switch {
	case criticalCount > 5:
		return HealthCritical
	case criticalCount >= 1:
		return HealthWarning
	default:
		return HealthOptimal
	}
}
