package healthcheck

import "time"

type Status struct {
	Target       string    `json:"target"`
	IsHealthy    bool      `json:"healthy"`
	LastCheck    time.Time `json:"last_check"`
	LastSuccess  time.Time `json:"last_success,omitempty"`
	LastFailure  time.Time `json:"last_failure,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
	FailureCount int       `json:"failure_count"`
}

// Represents overall health of the service
type HealthStatus int

const (
	Healthy HealthStatus = iota
	Degraded
	Unhealthy
)

func (h HealthStatus) String() string {
	switch h {
	case Healthy:
		return "healthy"
	case Degraded:
		return "degraded"
	case Unhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}
