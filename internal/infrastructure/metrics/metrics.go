// Package metrics holds the Prometheus collectors for authentication outcomes.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Outcome label values.
const (
	OutcomeAuthenticated      = "authenticated"
	OutcomeSecondFactorSent   = "second_factor_sent"
	OutcomePrincipalNotFound  = "principal_not_found"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeInvalidCode        = "invalid_code"
	OutcomeIssued             = "issued"
	OutcomeRedeemed           = "redeemed"
	OutcomeTokenNotFound      = "token_not_found"
	OutcomeTokenExpired       = "token_expired"
	OutcomeError              = "error"
)

// Reset flow stages.
const (
	StageRequest  = "request"
	StageComplete = "complete"
)

// Delivery status label values.
const (
	StatusSent    = "sent"
	StatusFailed  = "failed"
	StatusDropped = "dropped"
)

// Logins counts login attempts by outcome.
var Logins = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "user_service_auth_logins_total",
		Help: "Total number of login attempts",
	},
	[]string{"outcome"},
)

// SecondFactor counts second-factor verification attempts by outcome.
var SecondFactor = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "user_service_auth_second_factor_total",
		Help: "Total number of second-factor verification attempts",
	},
	[]string{"outcome"},
)

// PasswordResets counts reset requests and completions by outcome.
var PasswordResets = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "user_service_auth_password_resets_total",
		Help: "Total number of password reset operations",
	},
	[]string{"stage", "outcome"},
)

// Deliveries counts outbound code and token messages by channel.
var Deliveries = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "user_service_deliveries_total",
		Help: "Total number of outbound email and SMS deliveries",
	},
	[]string{"channel", "status"},
)

// RegisterMetrics registers the collectors with reg. Panics on duplicate
// registration, following the prometheus convention.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Logins, SecondFactor, PasswordResets, Deliveries)
}

func RecordLogin(outcome string) {
	Logins.WithLabelValues(outcome).Inc()
}

func RecordSecondFactor(outcome string) {
	SecondFactor.WithLabelValues(outcome).Inc()
}

func RecordPasswordReset(stage, outcome string) {
	PasswordResets.WithLabelValues(stage, outcome).Inc()
}

func RecordDelivery(channel, status string) {
	Deliveries.WithLabelValues(channel, status).Inc()
}
