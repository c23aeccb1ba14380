package monitoring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// ProbeStatus encodes the outcome of a health probe.
type ProbeStatus string

const (
	StatusUp       ProbeStatus = "up"
	StatusDown     ProbeStatus = "down"
	StatusDegraded ProbeStatus = "degraded"
)

const defaultProbeTimeout = 3 * time.Second

// ProbeResult captures a single dependency check outcome.
type ProbeResult struct {
	Component string        `json:"component"`
	Status    ProbeStatus   `json:"status"`
	Details   string        `json:"details,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// HealthReport aggregates probe results for a liveness or readiness evaluation.
type HealthReport struct {
	Success   bool          `json:"success"`
	Status    ProbeStatus   `json:"status"`
	Checks    []ProbeResult `json:"checks"`
	CheckedAt time.Time     `json:"checked_at"`
}

// Check is a named dependency probe.
type Check struct {
	Name string
	Run  func(ctx context.Context) ProbeResult
}

// NewCheck constructs a health check. A nil fn always reports down.
func NewCheck(name string, fn func(ctx context.Context) ProbeResult) Check {
	if fn == nil {
		fn = func(context.Context) ProbeResult {
			return ProbeResult{Status: StatusDown, Details: "probe not implemented"}
		}
	}
	return Check{Name: name, Run: fn}
}

// HealthManager runs liveness and readiness probes. Probes within one
// evaluation run concurrently, each bounded by the manager timeout.
type HealthManager struct {
	liveness  []Check
	readiness []Check
	timeout   time.Duration
	now       func() time.Time
}

func NewHealthManager(timeout time.Duration) *HealthManager {
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	return &HealthManager{timeout: timeout, now: time.Now}
}

func (m *HealthManager) RegisterLiveness(check Check) {
	if check.Name != "" {
		m.liveness = append(m.liveness, check)
	}
}

func (m *HealthManager) RegisterReadiness(check Check) {
	if check.Name != "" {
		m.readiness = append(m.readiness, check)
	}
}

func (m *HealthManager) EvaluateLiveness(ctx context.Context) HealthReport {
	return m.evaluate(ctx, m.liveness)
}

func (m *HealthManager) EvaluateReadiness(ctx context.Context) HealthReport {
	return m.evaluate(ctx, m.readiness)
}

// Evaluate runs both probe sets and merges them into one report.
func (m *HealthManager) Evaluate(ctx context.Context) HealthReport {
	all := append(append([]Check(nil), m.liveness...), m.readiness...)
	return m.evaluate(ctx, all)
}

func (m *HealthManager) evaluate(ctx context.Context, checks []Check) HealthReport {
	if ctx == nil {
		ctx = context.Background()
	}
	results := make([]ProbeResult, len(checks))

	group, groupCtx := errgroup.WithContext(ctx)
	for i, check := range checks {
		group.Go(func() error {
			probeCtx, cancel := context.WithTimeout(groupCtx, m.timeout)
			defer cancel()
			results[i] = runCheck(probeCtx, check)
			return nil
		})
	}
	_ = group.Wait()

	report := HealthReport{Success: true, Status: StatusUp, Checks: results, CheckedAt: m.now().UTC()}
	for _, result := range results {
		report.Status = worse(report.Status, result.Status)
	}
	report.Success = report.Status == StatusUp
	return report
}

func runCheck(ctx context.Context, check Check) (result ProbeResult) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			result = ProbeResult{Status: StatusDown, Details: fmt.Sprint(rec)}
		}
		result.Component = check.Name
		if result.Status == "" {
			result.Status = StatusDown
		}
		if result.Duration == 0 {
			result.Duration = time.Since(start)
		}
	}()
	return check.Run(ctx)
}

func worse(a, b ProbeStatus) ProbeStatus {
	switch {
	case a == StatusDown || b == StatusDown:
		return StatusDown
	case a == StatusDegraded || b == StatusDegraded:
		return StatusDegraded
	default:
		return StatusUp
	}
}

// ResultFromError converts an error into a ProbeResult. Timeouts count as degraded.
func ResultFromError(component string, err error, duration time.Duration) ProbeResult {
	if duration < 0 {
		duration = 0
	}
	if err == nil {
		return ProbeResult{Component: component, Status: StatusUp, Duration: duration}
	}

	status := StatusDown
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		status = StatusDegraded
	}
	return ProbeResult{Component: component, Status: status, Details: err.Error(), Duration: duration}
}
