// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WithdrawalsSubmitted counts accepted withdrawal submissions
	WithdrawalsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payout_withdrawals_submitted_total",
		Help: "Withdrawal requests accepted, by currency.",
	}, []string{"currency"})

	// RefundAttempts counts automatic refund attempts by outcome
	RefundAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payout_refund_attempts_total",
		Help: "Automatic refund attempts against the refund gateway, by outcome.",
	}, []string{"outcome"})

	// WithdrawalsCompleted counts completed withdrawals by how the last
	// unit was resolved
	WithdrawalsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payout_withdrawals_completed_total",
		Help: "Withdrawal requests completed, by resolution (auto or manual).",
	}, []string{"resolution"})

	// WithdrawalsRejected counts rejected withdrawals
	WithdrawalsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payout_withdrawals_rejected_total",
		Help: "Withdrawal requests rejected and credited back.",
	})

	// OperatorInstructions counts manual-send instructions emitted
	OperatorInstructions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payout_operator_instructions_total",
		Help: "Manual-send instructions delivered to the operator channel.",
	})

	// RaffleDraws counts finished raffle draws
	RaffleDraws = promauto.NewCounter(prometheus.CounterOpts{
		Name: "raffle_draws_total",
		Help: "Raffles drawn and finished.",
	})
)
