package services

import (
	"context"
	"fmt"
	"time"
)

const (
	healthStatusHealthy   = "healthy"
	healthStatusOK        = "ok"
	healthStatusUnhealthy = "unhealthy"
	healthStatusDisabled  = "disabled"
)

// HealthReport is the readiness of the container's dependencies
type HealthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Healthy reports whether every check passed
func (h HealthReport) Healthy() bool {
	return h.Status == healthStatusOK
}

// Health checks the size registry and, when enabled, the fit cache. A cache
// that was configured but could not be reached at startup counts as unhealthy.
func (c *Container) Health(ctx context.Context) HealthReport {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	report := HealthReport{Status: healthStatusOK, Checks: make(map[string]string)}
	fail := func(name string, err error) {
		report.Checks[name] = healthStatusUnhealthy + ": " + err.Error()
		report.Status = healthStatusUnhealthy
	}

	if groups := c.registry.Names(); len(groups) == 0 {
		fail("sizes", fmt.Errorf("no size groups in %s", c.config.SizesFile))
	} else {
		report.Checks["sizes"] = fmt.Sprintf("%s (%d groups)", healthStatusHealthy, len(groups))
	}

	switch {
	case !c.config.Cache.Enabled:
		report.Checks["cache"] = healthStatusDisabled
	case c.fitCache == nil:
		fail("cache", fmt.Errorf("not connected to %s", c.config.Cache.Address))
	default:
		if err := c.fitCache.Health(ctx); err != nil {
			fail("cache", err)
		} else {
			report.Checks["cache"] = healthStatusHealthy
		}
	}
	return report
}
