package stage

import "context"

// Health summarizes the readiness of a workflow stage.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy constructs a ready Health record.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy constructs an unhealthy Health record with context detail.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}

// Check reports the health of capability, treating capabilities without a
// health hook as ready.
func Check(ctx context.Context, name string, capability Capability) Health {
	if capability == nil {
		return Unhealthy(name, "capability not configured")
	}
	if checker, ok := capability.(HealthChecker); ok {
		health := checker.HealthCheck(ctx)
		if health.Name == "" {
			health.Name = name
		}
		return health
	}
	return Healthy(name)
}
