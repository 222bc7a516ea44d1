package provider

import (
	"fmt"

	"github.com/sony/gobreaker/v2"

	"tailorpress/internal/config"
	"tailorpress/internal/errors"
)

// InvokeBreaker wraps provider calls with a circuit breaker so that a
// failing backend sheds load instead of absorbing every timeout.
type InvokeBreaker struct {
	cb *gobreaker.CircuitBreaker[string]
}

// NewInvokeBreaker creates a breaker for one pipeline stage. Returns nil
// when the breaker is disabled; a nil breaker executes calls directly.
func NewInvokeBreaker(stage string, id ID, cfg config.CircuitBreakerConfig, logger *errors.Logger) *InvokeBreaker {
	if !cfg.Enabled {
		return nil
	}

	settings := gobreaker.Settings{
		Name:        fmt.Sprintf("LLM-%s-%s", id, stage),
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= cfg.MinRequests &&
				failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if logger != nil {
				logger.Info("Circuit breaker state changed",
					"name", name,
					"stage", stage,
					"from", from.String(),
					"to", to.String(),
					"failure_threshold", cfg.FailureThreshold)
			}
		},
	}

	return &InvokeBreaker{
		cb: gobreaker.NewCircuitBreaker[string](settings),
	}
}

// Execute runs the provided call with circuit breaker protection
func (b *InvokeBreaker) Execute(fn func() (string, error)) (string, error) {
	if b == nil || b.cb == nil {
		return fn()
	}
	return b.cb.Execute(fn)
}

// IsHealthy returns true if the circuit breaker is in closed state
func (b *InvokeBreaker) IsHealthy() bool {
	if b == nil || b.cb == nil {
		return true
	}
	return b.cb.State() == gobreaker.StateClosed
}

// Stats returns circuit breaker statistics for health reporting
func (b *InvokeBreaker) Stats() map[string]any {
	if b == nil || b.cb == nil {
		return map[string]any{"enabled": false}
	}

	return map[string]any{
		"name":    b.cb.Name(),
		"state":   b.cb.State().String(),
		"counts":  b.cb.Counts(),
		"enabled": true,
	}
}
