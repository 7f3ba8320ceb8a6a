package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/service"
	"storefront-service/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubReferralStore serves a single seeded referral row.
type stubReferralStore struct {
	referral *models.Referral
}

func (s *stubReferralStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return nil, nil
}

func (s *stubReferralStore) GetReferralByReferrerID(ctx context.Context, referrerID int64) (*models.Referral, error) {
	return nil, nil
}

func (s *stubReferralStore) GetReferralByCode(ctx context.Context, code string) (*models.Referral, error) {
	if s.referral != nil && s.referral.ReferralCode == code {
		cp := *s.referral
		return &cp, nil
	}
	return nil, nil
}

func (s *stubReferralStore) CreateReferral(ctx context.Context, ref *models.Referral) error {
	return nil
}

func (s *stubReferralStore) GetReferralsByReferrerID(ctx context.Context, referrerID int64) ([]models.Referral, error) {
	return nil, nil
}

func (s *stubReferralStore) SetReferredEmail(ctx context.Context, referralID int64, email string) error {
	return nil
}

func (s *stubReferralStore) CompleteReferral(ctx context.Context, referralID, referredUserID, orderValue int64, completedAt time.Time) error {
	return nil
}

func (s *stubReferralStore) MarkReferralCredited(ctx context.Context, referralID int64, creditedAt time.Time) error {
	return nil
}

func (s *stubReferralStore) CreateReferralCredit(ctx context.Context, credit *models.ReferralCredit) error {
	return nil
}

func (s *stubReferralStore) GetUnusedCredits(ctx context.Context, userID int64) ([]models.ReferralCredit, error) {
	return nil, nil
}

func (s *stubReferralStore) ConsumeCredits(ctx context.Context, userID, amount, orderID int64) ([]int64, error) {
	return nil, nil
}

func (s *stubReferralStore) GetReferralStats(ctx context.Context, userID int64) (*store.ReferralStats, error) {
	return &store.ReferralStats{}, nil
}

type stubClickCounter struct{}

func (stubClickCounter) IncrReferralClicks(ctx context.Context, code string) (int64, error) {
	return 1, nil
}

func (stubClickCounter) GetReferralClicks(ctx context.Context, code string) (int64, error) {
	return 0, nil
}

type stubReferralEvents struct{}

func (stubReferralEvents) PublishReferralCompleted(ctx context.Context, event *models.ReferralCompletedEvent) error {
	return nil
}

func (stubReferralEvents) PublishReferralCredited(ctx context.Context, event *models.ReferralCreditedEvent) error {
	return nil
}

type stubMailer struct{}

func (stubMailer) Send(ctx context.Context, kind, to, subject, text string) error {
	return nil
}

func newReferralRouter(st *stubReferralStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	refs := service.NewReferralService(st, stubClickCounter{}, stubReferralEvents{}, stubMailer{}, 1000, "https://optibio.example.com")
	h := NewHandler(nil, nil, refs, nil, nil, nil, "test-secret", nil, 60)
	router := gin.New()
	h.SetupRoutes(router)
	return router
}

func TestPublicReferralRoutes(t *testing.T) {
	router := newReferralRouter(&stubReferralStore{referral: &models.Referral{
		ID: 1, ReferrerID: 7, ReferralCode: "ALIC1234",
		Status: models.ReferralStatusPending, CreditAmount: 1000,
	}})

	// Code validation works without a token.
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/referrals/validate/ALIC1234", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"valid":true`)

	// So does click tracking.
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/referrals/track/ALIC1234", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	// Unknown codes are rejected, not silently counted.
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/referrals/track/NOPE9999", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAccountReferralRoutesRequireAuth(t *testing.T) {
	router := newReferralRouter(&stubReferralStore{})

	for _, path := range []string{
		"/api/v1/referrals/code",
		"/api/v1/referrals/stats",
		"/api/v1/referrals/credits",
	} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}
