package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ledgerOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roombooking_ledger_operations_total",
		Help: "Credit ledger mutations by operation.",
	}, []string{"operation"})

	ledgerHours = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roombooking_ledger_hours_total",
		Help: "Credit hours moved by the ledger, by operation.",
	}, []string{"operation"})

	bookingTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roombooking_booking_transitions_total",
		Help: "Booking lifecycle transitions by outcome.",
	}, []string{"transition", "outcome"})

	creditsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roombooking_credits_expired_total",
		Help: "Clients whose balance was zeroed by the expiry sweep.",
	})
)

func observeLedger(operation string, hours float64) {
	ledgerOperations.WithLabelValues(operation).Inc()
	ledgerHours.WithLabelValues(operation).Add(hours)
}

func observeTransition(transition string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "rejected"
		if HTTPStatus(err) >= 500 {
			outcome = "error"
		}
	}
	bookingTransitions.WithLabelValues(transition, outcome).Inc()
}
