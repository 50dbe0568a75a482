package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LoginAttempts counts login attempts by role and outcome.
	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "emis",
		Subsystem: "auth",
		Name:      "login_total",
		Help:      "Login attempts partitioned by role and outcome.",
	}, []string{"role", "outcome"})

	// TokenRejections counts requests turned away by the request gate.
	TokenRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "emis",
		Subsystem: "auth",
		Name:      "token_rejections_total",
		Help:      "Requests rejected by the bearer gate, by reason.",
	}, []string{"reason"})

	// Recovery counts password recovery steps by outcome.
	Recovery = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "emis",
		Subsystem: "auth",
		Name:      "recovery_total",
		Help:      "Password recovery requests and redemptions, by outcome.",
	}, []string{"step", "outcome"})

	// MailJobs counts mail deliveries.
	MailJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "emis",
		Subsystem: "mail",
		Name:      "jobs_total",
		Help:      "Outbound mail jobs by outcome.",
	}, []string{"outcome"})
)
