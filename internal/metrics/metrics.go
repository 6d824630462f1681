// Package metrics holds the membership domain counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "chaos"

var (
	// Registrations counts created accounts by the tier chosen at sign-up.
	Registrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registrations_total",
		Help:      "Accounts registered, by tier chosen at sign-up.",
	}, []string{"tier_choice"})

	// Logins counts login attempts by result.
	Logins = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Login attempts, by result.",
	}, []string{"result"})

	// Orders counts order outcomes.
	Orders = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_total",
		Help:      "Payment orders, by outcome.",
	}, []string{"outcome"})

	// Activations counts membership activations by tier.
	Activations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "membership_activations_total",
		Help:      "Membership activations, by tier.",
	}, []string{"tier"})

	// ResetRequests counts forgot-password requests by result.
	ResetRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "password_reset_requests_total",
		Help:      "Password reset requests, by result.",
	}, []string{"result"})

	// ResetConsumptions counts reset submissions by result.
	ResetConsumptions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "password_reset_consumptions_total",
		Help:      "Password reset submissions, by result.",
	}, []string{"result"})

	// MailFailures counts undelivered mails.
	MailFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mail_failures_total",
		Help:      "Mails the backend failed to deliver.",
	})
)

// Order outcomes.
const (
	OutcomeCompleted   = "completed"
	OutcomeFailed      = "failed"
	OutcomeCancelled   = "cancelled"
	OutcomeRefunded    = "refunded"
	OutcomeUnavailable = "gateway_unavailable"
)
