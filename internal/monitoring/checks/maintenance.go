package checks

import (
	"context"
	"strings"
	"time"

	"github.com/charlesng35/awards/internal/monitoring"
)

const defaultMaintenanceMaxAge = 6 * time.Hour

// Maintenance degrades when a cleanup job keeps failing or has not run
// within maxAge. Expired verification codes and sessions are rejected at
// read time, so stale cleanup never takes the service down.
func Maintenance(tracker *monitoring.JobTracker, maxAge time.Duration) monitoring.Check {
	if maxAge <= 0 {
		maxAge = defaultMaintenanceMaxAge
	}
	return monitoring.NewCheck("maintenance", func(context.Context) monitoring.ProbeResult {
		start := time.Now()
		jobs := tracker.Jobs()
		if len(jobs) == 0 {
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "no maintenance runs yet", Duration: time.Since(start)}
		}

		status := monitoring.StatusUp
		var problems []string
		for _, job := range jobs {
			if job.ConsecutiveFailures > 0 {
				status = monitoring.StatusDegraded
				problems = append(problems, job.Job+": "+job.LastError)
				continue
			}
			if start.Sub(job.LastRunAt) > maxAge {
				status = monitoring.StatusDegraded
				problems = append(problems, job.Job+": last run "+job.LastRunAt.Format(time.RFC3339))
			}
		}
		return monitoring.ProbeResult{Status: status, Details: strings.Join(problems, "; "), Duration: time.Since(start)}
	})
}
