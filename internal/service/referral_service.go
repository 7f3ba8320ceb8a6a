package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"storefront-service/internal/apperr"
	"storefront-service/internal/mailer"
	"storefront-service/internal/models"
	"storefront-service/internal/store"
	"storefront-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const referralCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

type referralStore interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetReferralByReferrerID(ctx context.Context, referrerID int64) (*models.Referral, error)
	GetReferralByCode(ctx context.Context, code string) (*models.Referral, error)
	CreateReferral(ctx context.Context, ref *models.Referral) error
	GetReferralsByReferrerID(ctx context.Context, referrerID int64) ([]models.Referral, error)
	SetReferredEmail(ctx context.Context, referralID int64, email string) error
	CompleteReferral(ctx context.Context, referralID, referredUserID, orderValue int64, completedAt time.Time) error
	MarkReferralCredited(ctx context.Context, referralID int64, creditedAt time.Time) error
	CreateReferralCredit(ctx context.Context, credit *models.ReferralCredit) error
	GetUnusedCredits(ctx context.Context, userID int64) ([]models.ReferralCredit, error)
	ConsumeCredits(ctx context.Context, userID, amount, orderID int64) ([]int64, error)
	GetReferralStats(ctx context.Context, userID int64) (*store.ReferralStats, error)
}

type referralClickCounter interface {
	IncrReferralClicks(ctx context.Context, code string) (int64, error)
	GetReferralClicks(ctx context.Context, code string) (int64, error)
}

type referralEventPublisher interface {
	PublishReferralCompleted(ctx context.Context, event *models.ReferralCompletedEvent) error
	PublishReferralCredited(ctx context.Context, event *models.ReferralCreditedEvent) error
}

type referralMailer interface {
	Send(ctx context.Context, kind, to, subject, text string) error
}

// ReferralService manages referral codes and the credit ledger.
type ReferralService struct {
	store         referralStore
	clicks        referralClickCounter
	events        referralEventPublisher
	mail          referralMailer
	creditInCents int64
	appURL        string
	logger        *zap.Logger
	now           func() time.Time
}

// NewReferralService creates a new referral service
func NewReferralService(
	st referralStore,
	clicks referralClickCounter,
	events referralEventPublisher,
	mail referralMailer,
	creditInCents int64,
	appURL string,
) *ReferralService {
	return &ReferralService{
		store:         st,
		clicks:        clicks,
		events:        events,
		mail:          mail,
		creditInCents: creditInCents,
		appURL:        appURL,
		logger:        util.GetLogger(),
		now:           time.Now,
	}
}

// generateReferralCode builds a code from the user's name prefix plus
// four random characters, e.g. ALIC7K2M.
func generateReferralCode(name string) (string, error) {
	prefix := strings.Builder{}
	for _, r := range strings.ToUpper(name) {
		if r >= 'A' && r <= 'Z' {
			prefix.WriteRune(r)
			if prefix.Len() == 4 {
				break
			}
		}
	}
	if prefix.Len() == 0 {
		prefix.WriteString("REF")
	}

	suffix := make([]byte, 4)
	for i := range suffix {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(referralCodeAlphabet))))
		if err != nil {
			return "", fmt.Errorf("failed to generate referral code: %w", err)
		}
		suffix[i] = referralCodeAlphabet[n.Int64()]
	}
	return prefix.String() + string(suffix), nil
}

// ReferralCodeResponse is a user's shareable referral code and link.
type ReferralCodeResponse struct {
	Code       string `json:"code"`
	ShareURL   string `json:"share_url"`
	ClickCount int64  `json:"click_count"`
}

// GetMyReferralCode returns the user's referral code, creating one on
// first request. Code generation retries on the rare collision.
func (s *ReferralService) GetMyReferralCode(ctx context.Context, userID int64) (*ReferralCodeResponse, error) {
	ctx, span := util.StartSpan(ctx, "ReferralService.GetMyReferralCode")
	defer span.End()

	ref, err := s.store.GetReferralByReferrerID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get referral: %w", err)
	}

	if ref == nil {
		user, err := s.store.GetUserByID(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to get user: %w", err)
		}
		if user == nil {
			return nil, apperr.NotFound("User not found")
		}

		for attempt := 0; attempt < 10; attempt++ {
			code, err := generateReferralCode(user.Name)
			if err != nil {
				return nil, err
			}
			taken, err := s.store.GetReferralByCode(ctx, code)
			if err != nil {
				return nil, fmt.Errorf("failed to check referral code: %w", err)
			}
			if taken != nil {
				continue
			}

			ref = &models.Referral{
				ReferrerID:   userID,
				ReferralCode: code,
				Status:       models.ReferralStatusPending,
				CreditAmount: s.creditInCents,
			}
			if err := s.store.CreateReferral(ctx, ref); err != nil {
				return nil, fmt.Errorf("failed to create referral: %w", err)
			}
			break
		}
		if ref == nil {
			return nil, apperr.Internal(nil, "Could not generate a unique referral code")
		}
	}

	clicks, err := s.clicks.GetReferralClicks(ctx, ref.ReferralCode)
	if err != nil {
		s.logger.Warn("Failed to read referral click count", zap.Error(err))
	}

	return &ReferralCodeResponse{
		Code:       ref.ReferralCode,
		ShareURL:   fmt.Sprintf("%s/?ref=%s", s.appURL, ref.ReferralCode),
		ClickCount: clicks,
	}, nil
}

// ReferralStatsResponse summarizes a user's referral performance.
type ReferralStatsResponse struct {
	TotalReferrals     int   `json:"total_referrals"`
	PendingReferrals   int   `json:"pending_referrals"`
	CompletedReferrals int   `json:"completed_referrals"`
	TotalEarnedInCents int64 `json:"total_earned_in_cents"`
	AvailableInCents   int64 `json:"available_in_cents"`
}

// GetMyReferralStats computes the user's referral dashboard numbers
func (s *ReferralService) GetMyReferralStats(ctx context.Context, userID int64) (*ReferralStatsResponse, error) {
	stats, err := s.store.GetReferralStats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get referral stats: %w", err)
	}
	return &ReferralStatsResponse{
		TotalReferrals:     stats.TotalReferrals,
		PendingReferrals:   stats.PendingReferrals,
		CompletedReferrals: stats.CompletedReferrals,
		TotalEarnedInCents: stats.TotalEarned,
		AvailableInCents:   stats.AvailableCredits,
	}, nil
}

// GetMyReferrals lists the user's referral records
func (s *ReferralService) GetMyReferrals(ctx context.Context, userID int64) ([]models.Referral, error) {
	refs, err := s.store.GetReferralsByReferrerID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list referrals: %w", err)
	}
	return refs, nil
}

// CreditsResponse is the user's unused credit rows and their sum.
type CreditsResponse struct {
	Credits      []models.ReferralCredit `json:"credits"`
	TotalInCents int64                   `json:"total_in_cents"`
}

// GetMyCredits lists the user's unused credits
func (s *ReferralService) GetMyCredits(ctx context.Context, userID int64) (*CreditsResponse, error) {
	credits, err := s.store.GetUnusedCredits(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get credits: %w", err)
	}

	var total int64
	for _, c := range credits {
		total += c.Amount
	}
	return &CreditsResponse{Credits: credits, TotalInCents: total}, nil
}

// ValidateCodeResponse reports whether a referral code can be used.
type ValidateCodeResponse struct {
	Valid         bool   `json:"valid"`
	ReferrerName  string `json:"referrer_name,omitempty"`
	CreditInCents int64  `json:"credit_in_cents,omitempty"`
}

// ValidateReferralCode checks a code during signup or checkout. A user
// cannot redeem their own code.
func (s *ReferralService) ValidateReferralCode(ctx context.Context, code string, userID int64) (*ValidateCodeResponse, error) {
	ref, err := s.store.GetReferralByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return nil, fmt.Errorf("failed to look up referral code: %w", err)
	}
	if ref == nil || ref.ReferrerID == userID {
		return &ValidateCodeResponse{Valid: false}, nil
	}

	resp := &ValidateCodeResponse{Valid: true, CreditInCents: ref.CreditAmount}
	referrer, err := s.store.GetUserByID(ctx, ref.ReferrerID)
	if err == nil && referrer != nil {
		resp.ReferrerName = referrer.Name
	}
	return resp, nil
}

// TrackClickRequest optionally carries the visitor's email address.
type TrackClickRequest struct {
	Email string `json:"email" binding:"omitempty,email"`
}

// TrackReferralClick records a landing-page visit for a referral code.
// Unknown codes are rejected; the visitor's email is stored the first
// time one is seen for the referral.
func (s *ReferralService) TrackReferralClick(ctx context.Context, code, email string) error {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return apperr.BadRequest("Referral code is required")
	}

	ref, err := s.store.GetReferralByCode(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to look up referral code: %w", err)
	}
	if ref == nil {
		return apperr.NotFound("Referral code not found")
	}

	if email != "" && !ref.ReferredEmail.Valid {
		if err := s.store.SetReferredEmail(ctx, ref.ID, email); err != nil {
			s.logger.Warn("Failed to record referred email", zap.Error(err))
		}
	}

	if _, err := s.clicks.IncrReferralClicks(ctx, ref.ReferralCode); err != nil {
		// Click analytics are best-effort.
		s.logger.Warn("Failed to count referral click", zap.String("code", ref.ReferralCode), zap.Error(err))
	}
	return nil
}

// CompleteReferralRequest reports a referred user's first purchase.
type CompleteReferralRequest struct {
	Code           string `json:"code" binding:"required"`
	ReferredUserID int64  `json:"referred_user_id" binding:"required"`
	ReferredEmail  string `json:"referred_email,omitempty"`
	OrderValue     int64  `json:"order_value" binding:"required"`
}

// CompleteReferral marks a referral converted and credits the referrer.
// The thank-you email is best effort; a send failure never fails the
// credit.
func (s *ReferralService) CompleteReferral(ctx context.Context, req *CompleteReferralRequest) error {
	ctx, span := util.StartSpan(ctx, "ReferralService.CompleteReferral")
	defer span.End()

	ref, err := s.store.GetReferralByCode(ctx, strings.ToUpper(strings.TrimSpace(req.Code)))
	if err != nil {
		return fmt.Errorf("failed to look up referral code: %w", err)
	}
	if ref == nil {
		return apperr.NotFound("Referral code not found")
	}
	if ref.ReferrerID == req.ReferredUserID {
		return apperr.BadRequest("Cannot redeem your own referral code")
	}
	if ref.Status != models.ReferralStatusPending {
		return apperr.BadRequest("Referral has already been completed")
	}

	now := s.now()
	if req.ReferredEmail != "" {
		if err := s.store.SetReferredEmail(ctx, ref.ID, req.ReferredEmail); err != nil {
			s.logger.Warn("Failed to record referred email", zap.Error(err))
		}
	}
	if err := s.store.CompleteReferral(ctx, ref.ID, req.ReferredUserID, req.OrderValue, now); err != nil {
		return fmt.Errorf("failed to complete referral: %w", err)
	}

	credit := &models.ReferralCredit{
		UserID: ref.ReferrerID,
		Amount: ref.CreditAmount,
		Source: "referral",
	}
	credit.ReferralID.Int64 = ref.ID
	credit.ReferralID.Valid = true
	if err := s.store.CreateReferralCredit(ctx, credit); err != nil {
		return fmt.Errorf("failed to create referral credit: %w", err)
	}
	if err := s.store.MarkReferralCredited(ctx, ref.ID, now); err != nil {
		return fmt.Errorf("failed to mark referral credited: %w", err)
	}

	s.logger.Info("Referral completed",
		zap.Int64("referral_id", ref.ID),
		zap.Int64("referrer_id", ref.ReferrerID),
		zap.Int64("credit_in_cents", ref.CreditAmount))

	s.publishReferralEvents(ctx, ref, req.OrderValue)
	s.notifyReferrer(ctx, ref)

	return nil
}

func (s *ReferralService) publishReferralEvents(ctx context.Context, ref *models.Referral, orderValue int64) {
	completed := &models.ReferralCompletedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeReferralCompleted,
			Timestamp: s.now(),
		},
		ReferralID:   ref.ID,
		ReferralCode: ref.ReferralCode,
		ReferrerID:   ref.ReferrerID,
		OrderValue:   orderValue,
	}
	if err := s.events.PublishReferralCompleted(ctx, completed); err != nil {
		s.logger.Error("Failed to publish ReferralCompleted event", zap.Error(err))
	}

	credited := &models.ReferralCreditedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeReferralCredited,
			Timestamp: s.now(),
		},
		ReferralID:   ref.ID,
		ReferrerID:   ref.ReferrerID,
		CreditAmount: ref.CreditAmount,
	}
	if err := s.events.PublishReferralCredited(ctx, credited); err != nil {
		s.logger.Error("Failed to publish ReferralCredited event", zap.Error(err))
	}
}

func (s *ReferralService) notifyReferrer(ctx context.Context, ref *models.Referral) {
	referrer, err := s.store.GetUserByID(ctx, ref.ReferrerID)
	if err != nil || referrer == nil {
		s.logger.Warn("Could not load referrer for notification", zap.Int64("referrer_id", ref.ReferrerID))
		return
	}

	friend := ""
	if ref.ReferredEmail.Valid {
		friend = ref.ReferredEmail.String
	}
	msg := mailer.ReferralEarned(referrer.Name, friend, ref.CreditAmount)
	if err := s.mail.Send(ctx, "referral_earned", referrer.Email, msg.Subject, msg.Text); err != nil {
		s.logger.Warn("Failed to send referral credit email", zap.Error(err))
	}
}

// ApplyCreditsRequest spends credits against an order.
type ApplyCreditsRequest struct {
	AmountInCents int64 `json:"amount_in_cents" binding:"required"`
	OrderID       int64 `json:"order_id" binding:"required"`
}

// ApplyCreditsResponse reports which credit rows were consumed.
type ApplyCreditsResponse struct {
	AppliedInCents int64   `json:"applied_in_cents"`
	CreditIDs      []int64 `json:"credit_ids"`
}

// ApplyCredits consumes the user's oldest credits to cover the amount.
// The consumption is all-or-nothing: insufficient credit leaves every
// row untouched.
func (s *ReferralService) ApplyCredits(ctx context.Context, userID int64, req *ApplyCreditsRequest) (*ApplyCreditsResponse, error) {
	ctx, span := util.StartSpan(ctx, "ReferralService.ApplyCredits")
	defer span.End()

	if req.AmountInCents <= 0 {
		return nil, apperr.BadRequest("Credit amount must be positive")
	}

	ids, err := s.store.ConsumeCredits(ctx, userID, req.AmountInCents, req.OrderID)
	if err != nil {
		if errors.Is(err, store.ErrInsufficientCredits) {
			util.ReferralCreditsInsufficientTotal.Inc()
			return nil, apperr.BadRequest("Insufficient referral credits")
		}
		return nil, fmt.Errorf("failed to apply credits: %w", err)
	}

	util.ReferralCreditsAppliedTotal.Inc()
	s.logger.Info("Referral credits applied",
		zap.Int64("user_id", userID),
		zap.Int64("order_id", req.OrderID),
		zap.Int64("amount_in_cents", req.AmountInCents),
		zap.Int("credits_consumed", len(ids)))

	return &ApplyCreditsResponse{AppliedInCents: req.AmountInCents, CreditIDs: ids}, nil
}
