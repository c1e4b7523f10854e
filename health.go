package command

import (
	"encoding/json"
	"fmt"

	"github.com/JohnPlummer/jp-go-command/discovery"
)

// HealthStatus reports the health of one subsystem: a breaker, a
// bulkhead, or a discovery pool.
type HealthStatus struct {
	Healthy bool           `json:"healthy"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// String renders the status as JSON for logging.
func (h HealthStatus) String() string {
	b, err := json.Marshal(h)
	if err != nil {
		return fmt.Sprintf("{\"healthy\":%t,\"message\":%q}", h.Healthy, h.Message)
	}
	return string(b)
}

// HealthCheck reports the current health of one subsystem.
type HealthCheck func() HealthStatus

// BreakerHealthCheck returns a HealthCheck reporting the named command's
// breaker state. A breaker in StateOpen is unhealthy; StateClosed and
// StateHalfOpen are healthy.
func (e *Engine) BreakerHealthCheck(name string) HealthCheck {
	return func() HealthStatus {
		state := e.BreakerState(name)
		counts := e.BreakerCounts(name)
		return HealthStatus{
			Healthy: state != StateOpen,
			Message: fmt.Sprintf("breaker %q is %s", name, state),
			Details: map[string]any{
				"state":               state.String(),
				"requests":            counts.Requests,
				"totalFailures":       counts.TotalFailures,
				"consecutiveFailures": counts.ConsecutiveFailures,
			},
		}
	}
}

// BulkheadHealthCheck returns a HealthCheck reporting the named command's
// bulkhead saturation.
func (e *Engine) BulkheadHealthCheck(name string) HealthCheck {
	return func() HealthStatus {
		e.mu.Lock()
		bh, ok := e.bulkheads[name]
		e.mu.Unlock()
		if !ok {
			return HealthStatus{Healthy: true, Message: fmt.Sprintf("bulkhead %q not yet used", name)}
		}
		inFlight, capacity := bh.InFlight(), bh.Capacity()
		return HealthStatus{
			Healthy: inFlight < capacity,
			Message: fmt.Sprintf("bulkhead %q: %d/%d slots in use", name, inFlight, capacity),
			Details: map[string]any{"inFlight": inFlight, "capacity": capacity},
		}
	}
}

// DiscoveryHealthCheck returns a HealthCheck reporting whether a
// discovery.Pool currently has any known instance.
func DiscoveryHealthCheck(serviceName string, pool discovery.Pool) HealthCheck {
	return func() HealthStatus {
		instances := pool.Instances()
		return HealthStatus{
			Healthy: len(instances) > 0,
			Message: fmt.Sprintf("service %q: %d known instance(s)", serviceName, len(instances)),
			Details: map[string]any{"instanceCount": len(instances)},
		}
	}
}
