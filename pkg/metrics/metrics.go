package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records login attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "awards_auth_attempts_total",
			Help: "Total number of login attempts",
		},
		[]string{"result"},
	)

	// ActiveSessions tracks sessions issued minus sessions revoked or purged.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "awards_active_sessions",
			Help: "Number of active sessions",
		},
	)

	// VotesCast counts ballot attempts by outcome
	// (accepted|flagged|already_voted|closed|invalid_candidate|device_limit|error).
	VotesCast = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "awards_votes_total",
			Help: "Total number of vote attempts by outcome",
		},
		[]string{"result"},
	)

	VotesRevoked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "awards_votes_revoked_total",
			Help: "Total number of votes revoked by administrators",
		},
	)

	// Verifications counts code requests and confirmations (requested|verified|expired|invalid).
	Verifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "awards_verification_total",
			Help: "Email verification events by result",
		},
		[]string{"result"},
	)

	// DeviceRegistrations counts device registrations (new|known|shared|error).
	DeviceRegistrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "awards_device_registrations_total",
			Help: "Device registrations by result",
		},
		[]string{"result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "awards_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// MaintenanceRuns counts scheduled cleanup runs by job and result (success|failure).
var MaintenanceRuns = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "awards_maintenance_runs_total",
		Help: "Maintenance job runs by job and result",
	},
	[]string{"job", "result"},
)
