package monitoring

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// ProbeStatus encodes the outcome of a health probe.
type ProbeStatus string

const (
	StatusUp       ProbeStatus = "up"
	StatusDown     ProbeStatus = "down"
	StatusDegraded ProbeStatus = "degraded"
)

// ProbeResult captures a single dependency check outcome.
type ProbeResult struct {
	Component string        `json:"component"`
	Status    ProbeStatus   `json:"status"`
	Details   string        `json:"details,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// HealthReport aggregates probe results for the health endpoint.
type HealthReport struct {
	Success bool          `json:"success"`
	Status  ProbeStatus   `json:"status"`
	Checks  []ProbeResult `json:"checks"`
}

// Check probes a single dependency. Probe returns nil when healthy.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// Health evaluates registered dependency checks on demand.
type Health struct {
	checks []Check
}

// NewHealth builds a Health evaluator over the given checks. Checks with an
// empty name or nil probe are dropped.
func NewHealth(checks ...Check) *Health {
	h := &Health{}
	for _, check := range checks {
		if check.Name == "" || check.Probe == nil {
			continue
		}
		h.checks = append(h.checks, check)
	}
	return h
}

// Evaluate runs every check and aggregates the results. A report with no
// checks passes trivially.
func (h *Health) Evaluate(ctx context.Context) HealthReport {
	if ctx == nil {
		ctx = context.Background()
	}

	report := HealthReport{
		Success: true,
		Status:  StatusUp,
		Checks:  make([]ProbeResult, 0, len(h.checks)),
	}

	for _, check := range h.checks {
		result := runProbe(ctx, check)
		report.Checks = append(report.Checks, result)

		switch result.Status {
		case StatusDown:
			report.Success = false
			report.Status = StatusDown
		case StatusDegraded:
			if report.Status != StatusDown {
				report.Success = false
				report.Status = StatusDegraded
			}
		}
	}
	return report
}

func runProbe(ctx context.Context, check Check) ProbeResult {
	start := time.Now()
	err := check.Probe(ctx)
	result := ProbeResult{
		Component: check.Name,
		Status:    StatusUp,
		Duration:  time.Since(start),
	}
	if err != nil {
		result.Status = StatusDown
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			result.Status = StatusDegraded
		}
		result.Details = err.Error()
	}
	return result
}

// DatabaseCheck pings the underlying SQL connection with a short timeout.
func DatabaseCheck(db *gorm.DB) Check {
	return Check{
		Name: "database",
		Probe: func(ctx context.Context) error {
			if db == nil {
				return errors.New("database handle is not configured")
			}
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			return sqlDB.PingContext(pingCtx)
		},
	}
}
