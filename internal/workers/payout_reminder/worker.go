package payout_reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/raffle-service/raffle_service/internal/domain/entities"
	"github.com/raffle-service/raffle_service/pkg/logger"
	"github.com/raffle-service/raffle_service/pkg/metrics"
)

// PendingLister reports pending withdrawals older than a cutoff
type PendingLister interface {
	ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]*entities.WithdrawalRequest, error)
}

// Notifier delivers manual-send instructions to the operator channel
type Notifier interface {
	Notify(ctx context.Context, instruction *entities.OperatorInstruction) error
}

// Worker periodically re-notifies operators about withdrawals that have
// sat pending longer than the configured age. Reminders are advisory;
// resolution still happens through the operator console.
type Worker struct {
	pending  PendingLister
	notifier Notifier
	logger   *logger.Logger

	interval time.Duration
	age      time.Duration

	cron *cron.Cron
}

// NewWorker creates a payout reminder worker.
func NewWorker(pending PendingLister, notifier Notifier, interval, age time.Duration, log *logger.Logger) *Worker {
	return &Worker{
		pending:  pending,
		notifier: notifier,
		logger:   log,
		interval: interval,
		age:      age,
	}
}

// Start schedules the reminder job.
func (w *Worker) Start() error {
	w.cron = cron.New()
	spec := fmt.Sprintf("@every %s", w.interval)
	if _, err := w.cron.AddFunc(spec, w.run); err != nil {
		return fmt.Errorf("failed to schedule payout reminder: %w", err)
	}
	w.cron.Start()
	w.logger.Info("payout reminder worker started", "interval", w.interval, "age", w.age)
	return nil
}

// Stop halts the scheduler and waits for a running job to finish.
func (w *Worker) Stop() {
	if w.cron == nil {
		return
	}
	ctx := w.cron.Stop()
	<-ctx.Done()
	w.logger.Info("payout reminder worker stopped")
}

func (w *Worker) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-w.age)
	stale, err := w.pending.ListPendingOlderThan(ctx, cutoff)
	if err != nil {
		w.logger.Error("failed to list stale withdrawals", "error", err)
		return
	}
	if len(stale) == 0 {
		return
	}

	w.logger.Info("reminding operators about stale withdrawals", "count", len(stale))
	for _, req := range stale {
		instruction := &entities.OperatorInstruction{
			WithdrawalID: req.ID,
			UserID:       req.UserID,
			Amount:       req.Shortfall(),
			Currency:     req.Currency,
			RequestedAt:  req.CreatedAt,
		}
		if err := w.notifier.Notify(ctx, instruction); err != nil {
			w.logger.Warn("failed to deliver payout reminder",
				"withdrawal_id", req.ID,
				"error", err)
			continue
		}
		metrics.OperatorInstructions.Inc()
	}
}
