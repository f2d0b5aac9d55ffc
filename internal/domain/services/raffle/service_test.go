package raffle

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raffle-service/raffle_service/internal/domain/entities"
	"github.com/raffle-service/raffle_service/pkg/logger"
)

type fakeRaffleRepo struct {
	raffles      map[uuid.UUID]*entities.Raffle
	participants map[uuid.UUID][]*entities.Participant
	joined       map[string]bool
	addErr       error
}

func newFakeRaffleRepo() *fakeRaffleRepo {
	return &fakeRaffleRepo{
		raffles:      make(map[uuid.UUID]*entities.Raffle),
		participants: make(map[uuid.UUID][]*entities.Participant),
		joined:       make(map[string]bool),
	}
}

func (r *fakeRaffleRepo) Create(ctx context.Context, raffle *entities.Raffle) error {
	cp := *raffle
	r.raffles[raffle.ID] = &cp
	return nil
}

func (r *fakeRaffleRepo) GetByID(ctx context.Context, id uuid.UUID) (*entities.Raffle, error) {
	raffle, ok := r.raffles[id]
	if !ok {
		return nil, entities.ErrRaffleNotFound
	}
	cp := *raffle
	return &cp, nil
}

func (r *fakeRaffleRepo) ListActive(ctx context.Context) ([]*entities.Raffle, error) {
	var out []*entities.Raffle
	for _, raffle := range r.raffles {
		if raffle.Status == entities.RaffleStatusActive {
			cp := *raffle
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeRaffleRepo) AddParticipant(ctx context.Context, raffleID uuid.UUID, userID int64) (*entities.Participant, error) {
	if r.addErr != nil {
		return nil, r.addErr
	}
	key := fmt.Sprintf("%s:%d", raffleID, userID)
	if r.joined[key] {
		return nil, entities.ErrAlreadyParticipant
	}
	r.joined[key] = true
	p := &entities.Participant{
		RaffleID: raffleID,
		UserID:   userID,
		Number:   len(r.participants[raffleID]) + 1,
		JoinedAt: time.Now().UTC(),
	}
	r.participants[raffleID] = append(r.participants[raffleID], p)
	return p, nil
}

func (r *fakeRaffleRepo) CountParticipants(ctx context.Context, raffleID uuid.UUID) (int, error) {
	return len(r.participants[raffleID]), nil
}

func (r *fakeRaffleRepo) GetParticipantByNumber(ctx context.Context, raffleID uuid.UUID, number int) (*entities.Participant, error) {
	for _, p := range r.participants[raffleID] {
		if p.Number == number {
			return p, nil
		}
	}
	return nil, errors.New("participant not found")
}

func (r *fakeRaffleRepo) Finish(ctx context.Context, raffleID uuid.UUID, winnerID int64, prize decimal.Decimal, proof []byte) error {
	raffle, ok := r.raffles[raffleID]
	if !ok || raffle.Status != entities.RaffleStatusActive {
		return entities.ErrInvalidState
	}
	now := time.Now().UTC()
	raffle.Status = entities.RaffleStatusFinished
	raffle.WinnerID = &winnerID
	raffle.PrizeAmount = &prize
	raffle.DrawProof = proof
	raffle.FinishedAt = &now
	return nil
}

type fakeLedger struct {
	debits  map[int64]decimal.Decimal
	credits map[int64]decimal.Decimal
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		debits:  make(map[int64]decimal.Decimal),
		credits: make(map[int64]decimal.Decimal),
	}
}

func (l *fakeLedger) Debit(ctx context.Context, userID int64, currency entities.Currency, amount decimal.Decimal, txType entities.TransactionType, reference string) error {
	l.debits[userID] = l.debits[userID].Add(amount)
	return nil
}

func (l *fakeLedger) Credit(ctx context.Context, userID int64, currency entities.Currency, amount decimal.Decimal, txType entities.TransactionType, reference string) error {
	l.credits[userID] = l.credits[userID].Add(amount)
	return nil
}

type fakeRandom struct {
	number int
	err    error
}

func (f *fakeRandom) SignedIntBetween(ctx context.Context, min, max int) (*entities.DrawResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &entities.DrawResult{
		WinnerNumber: f.number,
		SerialNumber: 12345,
		Signature:    "sig",
		RawResponse:  []byte(`{"random":{}}`),
	}, nil
}

type fakeWinnerNotifier struct {
	notified []int64
}

func (n *fakeWinnerNotifier) NotifyRaffleWon(ctx context.Context, userID int64, raffleID uuid.UUID, prize decimal.Decimal, currency entities.Currency) error {
	n.notified = append(n.notified, userID)
	return nil
}

func newRaffleFixture(winnerNumber int) (*Service, *fakeRaffleRepo, *fakeLedger, *fakeWinnerNotifier) {
	repo := newFakeRaffleRepo()
	ledger := newFakeLedger()
	notifier := &fakeWinnerNotifier{}
	svc := NewService(repo, ledger, &fakeRandom{number: winnerNumber}, notifier, logger.NewNop())
	return svc, repo, ledger, notifier
}

func createActiveRaffle(t *testing.T, svc *Service, minParticipants int, fee int64) *entities.Raffle {
	t.Helper()
	raffle, err := svc.CreateRaffle(context.Background(), minParticipants, nil, decimal.NewFromInt(fee), entities.CurrencyStars, decimal.NewFromInt(20))
	require.NoError(t, err)
	return raffle
}

func TestJoin_DebitsEntryFeeAndAssignsSequentialNumbers(t *testing.T) {
	svc, _, ledger, _ := newRaffleFixture(1)
	raffle := createActiveRaffle(t, svc, 3, 10)

	for i := int64(1); i <= 3; i++ {
		p, err := svc.Join(context.Background(), raffle.ID, i)
		require.NoError(t, err)
		assert.Equal(t, int(i), p.Number)
		assert.True(t, ledger.debits[i].Equal(decimal.NewFromInt(10)))
	}
}

func TestJoin_DuplicateEntryIsCompensated(t *testing.T) {
	svc, _, ledger, _ := newRaffleFixture(1)
	raffle := createActiveRaffle(t, svc, 3, 10)

	_, err := svc.Join(context.Background(), raffle.ID, 1)
	require.NoError(t, err)

	_, err = svc.Join(context.Background(), raffle.ID, 1)
	assert.ErrorIs(t, err, entities.ErrAlreadyParticipant)

	// Second debit was refunded.
	assert.True(t, ledger.debits[1].Equal(decimal.NewFromInt(20)))
	assert.True(t, ledger.credits[1].Equal(decimal.NewFromInt(10)))
}

func TestJoin_RespectsMaxParticipants(t *testing.T) {
	svc, _, _, _ := newRaffleFixture(1)
	max := 2
	raffle, err := svc.CreateRaffle(context.Background(), 2, &max, decimal.NewFromInt(10), entities.CurrencyStars, decimal.NewFromInt(20))
	require.NoError(t, err)

	_, err = svc.Join(context.Background(), raffle.ID, 1)
	require.NoError(t, err)
	_, err = svc.Join(context.Background(), raffle.ID, 2)
	require.NoError(t, err)

	_, err = svc.Join(context.Background(), raffle.ID, 3)
	assert.ErrorIs(t, err, entities.ErrRaffleNotJoinable)
}

func TestDraw_BelowThreshold(t *testing.T) {
	svc, _, _, _ := newRaffleFixture(1)
	raffle := createActiveRaffle(t, svc, 3, 10)

	_, err := svc.Join(context.Background(), raffle.ID, 1)
	require.NoError(t, err)

	_, err = svc.Draw(context.Background(), raffle.ID)
	assert.ErrorIs(t, err, entities.ErrRaffleNotDrawable)
}

func TestDraw_CreditsPrizeMinusCommission(t *testing.T) {
	svc, _, ledger, notifier := newRaffleFixture(2)
	raffle := createActiveRaffle(t, svc, 3, 10)

	for i := int64(1); i <= 3; i++ {
		_, err := svc.Join(context.Background(), raffle.ID, i)
		require.NoError(t, err)
	}

	finished, err := svc.Draw(context.Background(), raffle.ID)
	require.NoError(t, err)

	assert.Equal(t, entities.RaffleStatusFinished, finished.Status)
	require.NotNil(t, finished.WinnerID)
	assert.Equal(t, int64(2), *finished.WinnerID)
	assert.NotEmpty(t, finished.DrawProof)

	// Pot 30, commission 20% -> prize 24.
	assert.True(t, ledger.credits[2].Equal(decimal.NewFromInt(24)))
	assert.Equal(t, []int64{2}, notifier.notified)
}

func TestDraw_SecondDrawIsInvalidState(t *testing.T) {
	svc, _, ledger, _ := newRaffleFixture(1)
	raffle := createActiveRaffle(t, svc, 2, 10)

	for i := int64(1); i <= 2; i++ {
		_, err := svc.Join(context.Background(), raffle.ID, i)
		require.NoError(t, err)
	}

	_, err := svc.Draw(context.Background(), raffle.ID)
	require.NoError(t, err)

	_, err = svc.Draw(context.Background(), raffle.ID)
	assert.ErrorIs(t, err, entities.ErrInvalidState)

	// Single prize credit.
	assert.True(t, ledger.credits[1].Equal(decimal.NewFromInt(16)))
}

func TestDraw_RandomSourceFailureLeavesRaffleActive(t *testing.T) {
	repo := newFakeRaffleRepo()
	ledger := newFakeLedger()
	svc := NewService(repo, ledger, &fakeRandom{err: errors.New("random.org unreachable")}, &fakeWinnerNotifier{}, logger.NewNop())
	raffle := createActiveRaffle(t, svc, 2, 10)

	for i := int64(1); i <= 2; i++ {
		_, err := svc.Join(context.Background(), raffle.ID, i)
		require.NoError(t, err)
	}

	_, err := svc.Draw(context.Background(), raffle.ID)
	require.Error(t, err)

	current, err := svc.GetRaffle(context.Background(), raffle.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.RaffleStatusActive, current.Status)
	assert.Empty(t, ledger.credits)
}
