package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raffle-service/raffle_service/internal/domain/entities"
	"github.com/raffle-service/raffle_service/pkg/logger"
)

type stubWithdrawalService struct {
	submitResp *entities.SubmitWithdrawalResponse
	submitErr  error
	submitted  *entities.SubmitWithdrawalRequest

	withdrawal *entities.WithdrawalRequest
	trail      *entities.AuditTrail
}

func (s *stubWithdrawalService) Submit(ctx context.Context, req *entities.SubmitWithdrawalRequest) (*entities.SubmitWithdrawalResponse, error) {
	s.submitted = req
	return s.submitResp, s.submitErr
}

func (s *stubWithdrawalService) GetWithdrawal(ctx context.Context, id uuid.UUID) (*entities.WithdrawalRequest, error) {
	if s.withdrawal == nil {
		return nil, entities.ErrWithdrawalNotFound
	}
	return s.withdrawal, nil
}

func (s *stubWithdrawalService) GetUserWithdrawals(ctx context.Context, userID int64, limit, offset int) ([]*entities.WithdrawalRequest, error) {
	return nil, nil
}

func (s *stubWithdrawalService) GetAuditTrail(ctx context.Context, id uuid.UUID) (*entities.AuditTrail, error) {
	if s.trail == nil {
		return nil, entities.ErrWithdrawalNotFound
	}
	return s.trail, nil
}

type stubBalances struct {
	balance decimal.Decimal
}

func (s *stubBalances) GetBalance(ctx context.Context, userID int64, currency entities.Currency) (decimal.Decimal, error) {
	return s.balance, nil
}

func newTestRouter(svc *stubWithdrawalService, userID int64) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewWithdrawalHandlers(svc, &stubBalances{balance: decimal.NewFromInt(100)}, logger.NewNop())

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("user_id", userID)
		c.Next()
	})
	router.POST("/withdrawals", h.Submit)
	router.GET("/withdrawals/:id", h.Get)
	router.GET("/withdrawals/:id/audit", h.AuditTrail)
	router.GET("/balance", h.Balance)
	return router
}

func TestSubmitHandler_Success(t *testing.T) {
	id := uuid.New()
	svc := &stubWithdrawalService{
		submitResp: &entities.SubmitWithdrawalResponse{WithdrawalID: id, Status: entities.WithdrawalStatusPending},
	}
	router := newTestRouter(svc, 7)

	body, _ := json.Marshal(map[string]string{"amount": "40", "currency": "stars"})
	req := httptest.NewRequest(http.MethodPost, "/withdrawals", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, svc.submitted)
	assert.Equal(t, int64(7), svc.submitted.UserID)
	assert.True(t, svc.submitted.Amount.Equal(decimal.NewFromInt(40)))
}

func TestSubmitHandler_InsufficientBalance(t *testing.T) {
	svc := &stubWithdrawalService{submitErr: entities.ErrInsufficientBalance}
	router := newTestRouter(svc, 7)

	body, _ := json.Marshal(map[string]string{"amount": "4000", "currency": "stars"})
	req := httptest.NewRequest(http.MethodPost, "/withdrawals", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "INSUFFICIENT_BALANCE")
}

func TestSubmitHandler_AmountBelowMinimum(t *testing.T) {
	svc := &stubWithdrawalService{submitErr: entities.ErrAmountBelowMinimum}
	router := newTestRouter(svc, 7)

	body, _ := json.Marshal(map[string]string{"amount": "1", "currency": "stars"})
	req := httptest.NewRequest(http.MethodPost, "/withdrawals", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "minimum withdrawal")
}

func TestSubmitHandler_DailyLimitReached(t *testing.T) {
	svc := &stubWithdrawalService{submitErr: entities.ErrDailyLimitReached}
	router := newTestRouter(svc, 7)

	body, _ := json.Marshal(map[string]string{"amount": "40", "currency": "stars"})
	req := httptest.NewRequest(http.MethodPost, "/withdrawals", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "LIMIT_EXCEEDED")
}

func TestSubmitHandler_RejectsNonPositiveAmount(t *testing.T) {
	svc := &stubWithdrawalService{}
	router := newTestRouter(svc, 7)

	for _, amount := range []string{"0", "-5", "abc"} {
		body, _ := json.Marshal(map[string]string{"amount": amount, "currency": "stars"})
		req := httptest.NewRequest(http.MethodPost, "/withdrawals", bytes.NewReader(body))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code, "amount %q should be rejected", amount)
	}
	assert.Nil(t, svc.submitted)
}

func TestGetHandler_HidesOtherUsersWithdrawals(t *testing.T) {
	id := uuid.New()
	svc := &stubWithdrawalService{
		withdrawal: &entities.WithdrawalRequest{ID: id, UserID: 999, Status: entities.WithdrawalStatusPending},
	}
	router := newTestRouter(svc, 7)

	req := httptest.NewRequest(http.MethodGet, "/withdrawals/"+id.String(), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAuditTrailHandler_OwnWithdrawal(t *testing.T) {
	id := uuid.New()
	svc := &stubWithdrawalService{
		trail: &entities.AuditTrail{
			WithdrawalID: id,
			UserID:       7,
			Status:       entities.WithdrawalStatusCompleted,
			Amount:       decimal.NewFromInt(40),
		},
	}
	router := newTestRouter(svc, 7)

	req := httptest.NewRequest(http.MethodGet, "/withdrawals/"+id.String()+"/audit", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), id.String())
}

func TestBalanceHandler_UnknownCurrency(t *testing.T) {
	router := newTestRouter(&stubWithdrawalService{}, 7)

	req := httptest.NewRequest(http.MethodGet, "/balance?currency=doge", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
