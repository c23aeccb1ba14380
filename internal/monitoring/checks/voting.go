package checks

import (
	"context"
	"time"

	"github.com/charlesng35/awards/internal/monitoring"
	"github.com/charlesng35/awards/internal/services"
)

// Voting reports whether ballots are currently accepted. A closed ballot is
// a normal operating state, so the probe stays up and carries the state in
// its details. Only a failure to read settings is surfaced.
func Voting(gate services.VotingGate) monitoring.Check {
	return monitoring.NewCheck("voting", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if gate == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "voting gate not configured"}
		}

		policy, err := gate.VotingPolicy(ctx, nil)
		if err != nil {
			return monitoring.ResultFromError("voting", err, time.Since(start))
		}

		details := "closed"
		if policy.Open {
			details = "open"
		}
		details += ", device policy " + policy.Device.Mode
		return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: details, Duration: time.Since(start)}
	})
}
