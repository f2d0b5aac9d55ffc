package withdrawal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raffle-service/raffle_service/internal/domain/entities"
	"github.com/raffle-service/raffle_service/pkg/logger"
)

// fakeLedger tracks a single user's balance per currency.
type fakeLedger struct {
	balances map[entities.Currency]decimal.Decimal
	debitErr error
	credits  []decimal.Decimal
}

func newFakeLedger(stars int64) *fakeLedger {
	return &fakeLedger{
		balances: map[entities.Currency]decimal.Decimal{
			entities.CurrencyStars: decimal.NewFromInt(stars),
		},
	}
}

func (l *fakeLedger) Debit(ctx context.Context, userID int64, currency entities.Currency, amount decimal.Decimal, txType entities.TransactionType, reference string) error {
	if l.debitErr != nil {
		return l.debitErr
	}
	bal := l.balances[currency]
	if bal.LessThan(amount) {
		return entities.ErrInsufficientBalance
	}
	l.balances[currency] = bal.Sub(amount)
	return nil
}

func (l *fakeLedger) Credit(ctx context.Context, userID int64, currency entities.Currency, amount decimal.Decimal, txType entities.TransactionType, reference string) error {
	l.balances[currency] = l.balances[currency].Add(amount)
	l.credits = append(l.credits, amount)
	return nil
}

// fakePayments serves a fixed payment history, newest first.
type fakePayments struct {
	payments []*entities.StarPayment
	refunded map[string]bool
}

func newFakePayments(amounts ...int64) *fakePayments {
	f := &fakePayments{refunded: make(map[string]bool)}
	now := time.Now().UTC()
	for i, a := range amounts {
		f.payments = append(f.payments, &entities.StarPayment{
			ChargeID: uuid.NewString(),
			UserID:   1,
			Amount:   decimal.NewFromInt(a),
			Currency: entities.CurrencyStars,
			PaidAt:   now.Add(-time.Duration(i) * time.Hour),
		})
	}
	return f
}

func (f *fakePayments) ListEligible(ctx context.Context, userID int64, currency entities.Currency, paidAfter time.Time) ([]*entities.StarPayment, error) {
	var out []*entities.StarPayment
	for _, p := range f.payments {
		if !f.refunded[p.ChargeID] && p.PaidAt.After(paidAfter) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePayments) MarkRefunded(ctx context.Context, chargeID string) error {
	f.refunded[chargeID] = true
	return nil
}

// fakeGateway fails refunds for charge ids listed in failFor.
type fakeGateway struct {
	failFor map[string]bool
	calls   []string
}

func (g *fakeGateway) RefundPayment(ctx context.Context, userID int64, chargeID string) error {
	g.calls = append(g.calls, chargeID)
	if g.failFor[chargeID] {
		return errors.New("gateway: refund rejected")
	}
	return nil
}

type fakeNotifier struct {
	instructions []*entities.OperatorInstruction
	err          error
}

func (n *fakeNotifier) Notify(ctx context.Context, instruction *entities.OperatorInstruction) error {
	n.instructions = append(n.instructions, instruction)
	return n.err
}

// fakeRepo is an in-memory withdrawal store with the same transition
// guards as the SQL implementation.
type fakeRepo struct {
	withdrawals map[uuid.UUID]*entities.WithdrawalRequest
	attempts    map[uuid.UUID][]*entities.RefundAttempt
	manual      map[uuid.UUID]*entities.ManualSendConfirmation
	createErr   error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		withdrawals: make(map[uuid.UUID]*entities.WithdrawalRequest),
		attempts:    make(map[uuid.UUID][]*entities.RefundAttempt),
		manual:      make(map[uuid.UUID]*entities.ManualSendConfirmation),
	}
}

func (r *fakeRepo) Create(ctx context.Context, w *entities.WithdrawalRequest) error {
	if r.createErr != nil {
		return r.createErr
	}
	cp := *w
	r.withdrawals[w.ID] = &cp
	return nil
}

func (r *fakeRepo) GetByID(ctx context.Context, id uuid.UUID) (*entities.WithdrawalRequest, error) {
	w, ok := r.withdrawals[id]
	if !ok {
		return nil, entities.ErrWithdrawalNotFound
	}
	cp := *w
	return &cp, nil
}

func (r *fakeRepo) GetByUserID(ctx context.Context, userID int64, limit, offset int) ([]*entities.WithdrawalRequest, error) {
	var out []*entities.WithdrawalRequest
	for _, w := range r.withdrawals {
		if w.UserID == userID {
			cp := *w
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeRepo) AppendRefundAttempt(ctx context.Context, a *entities.RefundAttempt) error {
	r.attempts[a.WithdrawalID] = append(r.attempts[a.WithdrawalID], a)
	if a.Outcome == entities.RefundOutcomeSucceeded {
		w := r.withdrawals[a.WithdrawalID]
		w.AutoRefundTotal = w.AutoRefundTotal.Add(a.Amount)
	}
	return nil
}

func (r *fakeRepo) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	w, ok := r.withdrawals[id]
	if !ok || w.Status != entities.WithdrawalStatusPending {
		return entities.ErrInvalidState
	}
	w.Status = entities.WithdrawalStatusCompleted
	return nil
}

func (r *fakeRepo) MarkRejected(ctx context.Context, id uuid.UUID, reason string) error {
	w, ok := r.withdrawals[id]
	if !ok || w.Status != entities.WithdrawalStatusPending {
		return entities.ErrInvalidState
	}
	w.Status = entities.WithdrawalStatusRejected
	w.RejectionReason = &reason
	return nil
}

func (r *fakeRepo) ConfirmManualSend(ctx context.Context, id uuid.UUID, operatorID int64, amount decimal.Decimal) error {
	w, ok := r.withdrawals[id]
	if !ok || w.Status != entities.WithdrawalStatusPending {
		return entities.ErrInvalidState
	}
	w.ManualSendTotal = w.ManualSendTotal.Add(amount)
	w.Status = entities.WithdrawalStatusCompleted
	r.manual[id] = &entities.ManualSendConfirmation{
		WithdrawalID: id,
		OperatorID:   operatorID,
		Amount:       amount,
		ConfirmedAt:  time.Now().UTC(),
	}
	return nil
}

func (r *fakeRepo) CountToday(ctx context.Context, userID int64) (int, error) {
	count := 0
	for _, w := range r.withdrawals {
		if w.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (r *fakeRepo) ListRefundAttempts(ctx context.Context, id uuid.UUID) ([]*entities.RefundAttempt, error) {
	return r.attempts[id], nil
}

func (r *fakeRepo) GetManualSendConfirmation(ctx context.Context, id uuid.UUID) (*entities.ManualSendConfirmation, error) {
	return r.manual[id], nil
}

type engineFixture struct {
	svc      *Service
	repo     *fakeRepo
	ledger   *fakeLedger
	payments *fakePayments
	gateway  *fakeGateway
	notifier *fakeNotifier
}

func newEngine(balance int64, payments *fakePayments) *engineFixture {
	return newEngineWithLimits(balance, payments, Limits{})
}

func newEngineWithLimits(balance int64, payments *fakePayments, limits Limits) *engineFixture {
	f := &engineFixture{
		repo:     newFakeRepo(),
		ledger:   newFakeLedger(balance),
		payments: payments,
		gateway:  &fakeGateway{failFor: make(map[string]bool)},
		notifier: &fakeNotifier{},
	}
	f.svc = NewService(f.repo, f.ledger, f.payments, f.gateway, f.notifier, 21*24*time.Hour, limits, logger.NewNop())
	return f
}

func (f *engineFixture) submit(t *testing.T, amount int64) uuid.UUID {
	t.Helper()
	resp, err := f.svc.Submit(context.Background(), &entities.SubmitWithdrawalRequest{
		UserID:   1,
		Amount:   decimal.NewFromInt(amount),
		Currency: entities.CurrencyStars,
	})
	require.NoError(t, err)
	require.Equal(t, entities.WithdrawalStatusPending, resp.Status)
	return resp.WithdrawalID
}

func TestSubmit_DebitsBalanceAndCreatesPendingRequest(t *testing.T) {
	f := newEngine(100, newFakePayments())

	id := f.submit(t, 40)

	assert.True(t, f.ledger.balances[entities.CurrencyStars].Equal(decimal.NewFromInt(60)))

	w, err := f.svc.GetWithdrawal(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, entities.WithdrawalStatusPending, w.Status)
	assert.True(t, w.Amount.Equal(decimal.NewFromInt(40)))
}

func TestSubmit_InsufficientBalance(t *testing.T) {
	f := newEngine(10, newFakePayments())

	_, err := f.svc.Submit(context.Background(), &entities.SubmitWithdrawalRequest{
		UserID:   1,
		Amount:   decimal.NewFromInt(40),
		Currency: entities.CurrencyStars,
	})
	assert.ErrorIs(t, err, entities.ErrInsufficientBalance)
	assert.Empty(t, f.repo.withdrawals)
	assert.True(t, f.ledger.balances[entities.CurrencyStars].Equal(decimal.NewFromInt(10)))
}

func TestSubmit_TransientLedgerFailure(t *testing.T) {
	f := newEngine(100, newFakePayments())
	f.ledger.debitErr = errors.New("connection reset")

	_, err := f.svc.Submit(context.Background(), &entities.SubmitWithdrawalRequest{
		UserID:   1,
		Amount:   decimal.NewFromInt(40),
		Currency: entities.CurrencyStars,
	})
	assert.ErrorIs(t, err, entities.ErrLedgerUnavailable)
}

func TestSubmit_RejectsNonPositiveAmount(t *testing.T) {
	f := newEngine(100, newFakePayments())

	for _, amount := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-5)} {
		_, err := f.svc.Submit(context.Background(), &entities.SubmitWithdrawalRequest{
			UserID:   1,
			Amount:   amount,
			Currency: entities.CurrencyStars,
		})
		require.Error(t, err)
		assert.NotErrorIs(t, err, entities.ErrAmountMismatch)
	}
	assert.Empty(t, f.repo.withdrawals)
	assert.True(t, f.ledger.balances[entities.CurrencyStars].Equal(decimal.NewFromInt(100)))
}

func TestSubmit_RejectsAmountBelowMinimum(t *testing.T) {
	f := newEngineWithLimits(1000, newFakePayments(), Limits{MinAmountStars: decimal.NewFromInt(100)})

	_, err := f.svc.Submit(context.Background(), &entities.SubmitWithdrawalRequest{
		UserID:   1,
		Amount:   decimal.NewFromInt(1),
		Currency: entities.CurrencyStars,
	})
	assert.ErrorIs(t, err, entities.ErrAmountBelowMinimum)
	assert.Empty(t, f.repo.withdrawals)
	assert.True(t, f.ledger.balances[entities.CurrencyStars].Equal(decimal.NewFromInt(1000)))

	id := f.submit(t, 100)
	w, err := f.svc.GetWithdrawal(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, w.Amount.Equal(decimal.NewFromInt(100)))
}

func TestSubmit_EnforcesDailyRequestCap(t *testing.T) {
	f := newEngineWithLimits(1000, newFakePayments(), Limits{MaxPerDay: 2})

	f.submit(t, 10)
	f.submit(t, 10)

	_, err := f.svc.Submit(context.Background(), &entities.SubmitWithdrawalRequest{
		UserID:   1,
		Amount:   decimal.NewFromInt(10),
		Currency: entities.CurrencyStars,
	})
	assert.ErrorIs(t, err, entities.ErrDailyLimitReached)
	assert.Len(t, f.repo.withdrawals, 2)
	assert.True(t, f.ledger.balances[entities.CurrencyStars].Equal(decimal.NewFromInt(980)))
}

func TestProcessRefunds_GreedySelectionCoversExactly(t *testing.T) {
	// History newest-first: 30, 10, 10, 10, 10. Request 40 is covered by
	// the first two records.
	f := newEngine(100, newFakePayments(30, 10, 10, 10, 10))
	id := f.submit(t, 40)

	result, err := f.svc.ProcessAutomaticRefunds(context.Background(), id)
	require.NoError(t, err)

	assert.True(t, result.RefundedTotal.Equal(decimal.NewFromInt(40)))
	assert.True(t, result.RemainingShortfall.IsZero())
	assert.Equal(t, entities.WithdrawalStatusCompleted, result.Status)
	assert.Len(t, f.gateway.calls, 2)

	attempts, _ := f.repo.ListRefundAttempts(context.Background(), id)
	assert.Len(t, attempts, 2)
}

func TestProcessRefunds_SkipsRecordLargerThanRemaining(t *testing.T) {
	// A 50-star record would overshoot a 40-star request; it is skipped,
	// not split.
	f := newEngine(100, newFakePayments(50, 30))
	id := f.submit(t, 40)

	result, err := f.svc.ProcessAutomaticRefunds(context.Background(), id)
	require.NoError(t, err)

	assert.True(t, result.RefundedTotal.Equal(decimal.NewFromInt(30)))
	assert.True(t, result.RemainingShortfall.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, entities.WithdrawalStatusPending, result.Status)
	assert.Len(t, f.gateway.calls, 1)
}

func TestProcessRefunds_GatewayFailureDoesNotAbortPass(t *testing.T) {
	payments := newFakePayments(20, 20)
	f := newEngine(100, payments)
	f.gateway.failFor[payments.payments[0].ChargeID] = true
	id := f.submit(t, 40)

	result, err := f.svc.ProcessAutomaticRefunds(context.Background(), id)
	require.NoError(t, err)

	assert.True(t, result.RefundedTotal.Equal(decimal.NewFromInt(20)))
	assert.True(t, result.RemainingShortfall.Equal(decimal.NewFromInt(20)))
	assert.Equal(t, entities.WithdrawalStatusPending, result.Status)

	attempts, _ := f.repo.ListRefundAttempts(context.Background(), id)
	require.Len(t, attempts, 2)

	var failed, succeeded int
	for _, a := range attempts {
		switch a.Outcome {
		case entities.RefundOutcomeFailed:
			failed++
			assert.NotNil(t, a.ErrorMessage)
		case entities.RefundOutcomeSucceeded:
			succeeded++
		}
	}
	assert.Equal(t, 1, failed)
	assert.Equal(t, 1, succeeded)
}

func TestProcessRefunds_SinglePaymentExactMatch(t *testing.T) {
	f := newEngine(100, newFakePayments(40))
	id := f.submit(t, 40)

	result, err := f.svc.ProcessAutomaticRefunds(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, entities.WithdrawalStatusCompleted, result.Status)

	w, _ := f.svc.GetWithdrawal(context.Background(), id)
	assert.True(t, w.AutoRefundTotal.Add(w.ManualSendTotal).Equal(w.Amount))
}

func TestProcessRefunds_SecondPassDoesNotReuseConsumedPayments(t *testing.T) {
	f := newEngine(200, newFakePayments(30))
	id := f.submit(t, 70)

	_, err := f.svc.ProcessAutomaticRefunds(context.Background(), id)
	require.NoError(t, err)

	// The lone 30-star record is consumed; a second pass finds nothing.
	result, err := f.svc.ProcessAutomaticRefunds(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, result.RefundedTotal.Equal(decimal.NewFromInt(30)))
	assert.True(t, result.RemainingShortfall.Equal(decimal.NewFromInt(40)))
	assert.Len(t, f.gateway.calls, 1)
}

func TestProcessRefunds_CompletedRequestIsInvalidState(t *testing.T) {
	f := newEngine(100, newFakePayments(40))
	id := f.submit(t, 40)

	_, err := f.svc.ProcessAutomaticRefunds(context.Background(), id)
	require.NoError(t, err)

	_, err = f.svc.ProcessAutomaticRefunds(context.Background(), id)
	assert.ErrorIs(t, err, entities.ErrInvalidState)
}

func TestManualSendFlow_NoRefundableHistory(t *testing.T) {
	f := newEngine(100, newFakePayments())
	id := f.submit(t, 100)

	result, err := f.svc.ProcessAutomaticRefunds(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, result.RemainingShortfall.Equal(decimal.NewFromInt(100)))

	instruction, err := f.svc.RequestManualSend(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, instruction.Amount.Equal(decimal.NewFromInt(100)))
	require.Len(t, f.notifier.instructions, 1)

	w, err := f.svc.ConfirmManualSend(context.Background(), id, 99, decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.Equal(t, entities.WithdrawalStatusCompleted, w.Status)
	assert.True(t, w.AutoRefundTotal.Add(w.ManualSendTotal).Equal(w.Amount))
}

func TestRequestManualSend_NotifierFailureStillReturnsInstruction(t *testing.T) {
	f := newEngine(100, newFakePayments())
	f.notifier.err = errors.New("telegram: chat not found")
	id := f.submit(t, 50)

	instruction, err := f.svc.RequestManualSend(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, instruction.Amount.Equal(decimal.NewFromInt(50)))
}

func TestConfirmManualSend_AmountMismatch(t *testing.T) {
	f := newEngine(200, newFakePayments())
	id := f.submit(t, 100)

	_, err := f.svc.ConfirmManualSend(context.Background(), id, 99, decimal.NewFromInt(90))
	assert.ErrorIs(t, err, entities.ErrAmountMismatch)

	w, _ := f.svc.GetWithdrawal(context.Background(), id)
	assert.Equal(t, entities.WithdrawalStatusPending, w.Status)
	assert.True(t, w.ManualSendTotal.IsZero())
}

func TestConfirmManualSend_PartialAutoRefundThenManualRemainder(t *testing.T) {
	f := newEngine(100, newFakePayments(30))
	id := f.submit(t, 100)

	_, err := f.svc.ProcessAutomaticRefunds(context.Background(), id)
	require.NoError(t, err)

	// Confirming the original amount must fail; only the shortfall (70)
	// reconciles the books.
	_, err = f.svc.ConfirmManualSend(context.Background(), id, 99, decimal.NewFromInt(100))
	assert.ErrorIs(t, err, entities.ErrAmountMismatch)

	w, err := f.svc.ConfirmManualSend(context.Background(), id, 99, decimal.NewFromInt(70))
	require.NoError(t, err)
	assert.Equal(t, entities.WithdrawalStatusCompleted, w.Status)
	assert.True(t, w.AutoRefundTotal.Equal(decimal.NewFromInt(30)))
	assert.True(t, w.ManualSendTotal.Equal(decimal.NewFromInt(70)))
}

func TestConfirmManualSend_SecondConfirmationIsInvalidState(t *testing.T) {
	f := newEngine(100, newFakePayments())
	id := f.submit(t, 50)

	_, err := f.svc.ConfirmManualSend(context.Background(), id, 99, decimal.NewFromInt(50))
	require.NoError(t, err)

	_, err = f.svc.ConfirmManualSend(context.Background(), id, 99, decimal.NewFromInt(50))
	assert.ErrorIs(t, err, entities.ErrInvalidState)
}

func TestReject_CreditsFullAmountBack(t *testing.T) {
	f := newEngine(50, newFakePayments())
	id := f.submit(t, 50)
	require.True(t, f.ledger.balances[entities.CurrencyStars].IsZero())

	w, err := f.svc.Reject(context.Background(), id, "suspicious activity")
	require.NoError(t, err)
	assert.Equal(t, entities.WithdrawalStatusRejected, w.Status)
	require.NotNil(t, w.RejectionReason)
	assert.Equal(t, "suspicious activity", *w.RejectionReason)
	assert.True(t, f.ledger.balances[entities.CurrencyStars].Equal(decimal.NewFromInt(50)))
}

func TestReject_TerminalStateBlocksFurtherOperations(t *testing.T) {
	f := newEngine(50, newFakePayments(50))
	id := f.submit(t, 50)

	_, err := f.svc.Reject(context.Background(), id, "duplicate request")
	require.NoError(t, err)

	_, err = f.svc.Reject(context.Background(), id, "again")
	assert.ErrorIs(t, err, entities.ErrInvalidState)

	_, err = f.svc.ProcessAutomaticRefunds(context.Background(), id)
	assert.ErrorIs(t, err, entities.ErrInvalidState)

	_, err = f.svc.ConfirmManualSend(context.Background(), id, 99, decimal.NewFromInt(50))
	assert.ErrorIs(t, err, entities.ErrInvalidState)

	// Only the single rejection credit ever happened.
	assert.Len(t, f.ledger.credits, 1)
}

func TestGetAuditTrail_ReflectsResolution(t *testing.T) {
	f := newEngine(100, newFakePayments(30))
	id := f.submit(t, 100)

	_, err := f.svc.ProcessAutomaticRefunds(context.Background(), id)
	require.NoError(t, err)
	_, err = f.svc.ConfirmManualSend(context.Background(), id, 42, decimal.NewFromInt(70))
	require.NoError(t, err)

	trail, err := f.svc.GetAuditTrail(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, entities.WithdrawalStatusCompleted, trail.Status)
	assert.Len(t, trail.RefundAttempts, 1)
	require.NotNil(t, trail.ManualSend)
	assert.Equal(t, int64(42), trail.ManualSend.OperatorID)
	assert.True(t, trail.AutoRefundTotal.Add(trail.ManualSendTotal).Equal(trail.Amount))
}
