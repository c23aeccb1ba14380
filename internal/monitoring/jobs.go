package monitoring

import (
	"sort"
	"sync"
	"time"

	"github.com/charlesng35/awards/pkg/metrics"
)

// JobSummary describes the recent history of a background job.
type JobSummary struct {
	Job                 string        `json:"job"`
	LastStatus          string        `json:"last_status"`
	LastRunAt           time.Time     `json:"last_run_at"`
	LastDuration        time.Duration `json:"last_duration"`
	LastError           string        `json:"last_error,omitempty"`
	LastSuccessAt       time.Time     `json:"last_success_at,omitempty"`
	ConsecutiveFailures uint64        `json:"consecutive_failures"`
	TotalRuns           uint64        `json:"total_runs"`
}

// JobTracker remembers the outcome of maintenance runs for health checks and
// the admin health report.
type JobTracker struct {
	mu   sync.Mutex
	jobs map[string]*JobSummary
	now  func() time.Time
}

func NewJobTracker() *JobTracker {
	return &JobTracker{jobs: make(map[string]*JobSummary), now: time.Now}
}

// Record stores the outcome of one run of job. A nil err counts as success.
func (t *JobTracker) Record(job string, err error, duration time.Duration) {
	if t == nil || job == "" {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	metrics.MaintenanceRuns.WithLabelValues(job, result).Inc()

	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.jobs[job]
	if !ok {
		entry = &JobSummary{Job: job}
		t.jobs[job] = entry
	}
	now := t.now().UTC()
	entry.LastStatus = result
	entry.LastRunAt = now
	entry.LastDuration = duration
	entry.TotalRuns++
	if err != nil {
		entry.LastError = err.Error()
		entry.ConsecutiveFailures++
		return
	}
	entry.LastError = ""
	entry.ConsecutiveFailures = 0
	entry.LastSuccessAt = now
}

// Jobs returns a copy of every tracked job, sorted by name.
func (t *JobTracker) Jobs() []JobSummary {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]JobSummary, 0, len(t.jobs))
	for _, entry := range t.jobs {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Job < out[j].Job })
	return out
}
