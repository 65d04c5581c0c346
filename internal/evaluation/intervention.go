package evaluation

// Path identifies a monitored domain.
type Path string

// Monitored paths. Financial covers two independent metrics.
const (
	PathFinancial      Path = "Financial"
	PathInfrastructure Path = "Infrastructure"
	PathPersona        Path = "Persona"
	PathSensor         Path = "Sensor"
)

// Severity is statically bound to a path; it never derives from magnitude.
type Severity string

const (
	SeverityCritical Severity = "Critical"
	SeverityWarning  Severity = "Warning"
)

// Intervention is an immutable fact that a monitored path crossed its
// threshold. The authoritative logged-at timestamp is assigned by the sink at
// persistence time, so it is not part of the evaluation output.
type Intervention struct {
	Path        Path
	Severity    Severity
	Description string
}
