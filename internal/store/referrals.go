package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"storefront-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// GetReferralByReferrerID retrieves the referral row owned by a user
func (s *Store) GetReferralByReferrerID(ctx context.Context, referrerID int64) (*models.Referral, error) {
	var ref models.Referral
	err := s.db.GetContext(ctx, &ref,
		"SELECT * FROM referrals WHERE referrer_id = $1 ORDER BY created_at LIMIT 1", referrerID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

// GetReferralByCode retrieves a referral by its unique code
func (s *Store) GetReferralByCode(ctx context.Context, code string) (*models.Referral, error) {
	var ref models.Referral
	err := s.db.GetContext(ctx, &ref,
		"SELECT * FROM referrals WHERE referral_code = $1", code)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

// CreateReferral inserts a new pending referral
func (s *Store) CreateReferral(ctx context.Context, ref *models.Referral) error {
	query := `
		INSERT INTO referrals (referrer_id, referral_code, status, credit_amount)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	return s.db.GetContext(ctx, ref, query,
		ref.ReferrerID, ref.ReferralCode, ref.Status, ref.CreditAmount)
}

// GetReferralsByReferrerID retrieves a user's referral history, newest first
func (s *Store) GetReferralsByReferrerID(ctx context.Context, referrerID int64) ([]models.Referral, error) {
	var refs []models.Referral
	err := s.db.SelectContext(ctx, &refs,
		"SELECT * FROM referrals WHERE referrer_id = $1 ORDER BY created_at DESC", referrerID)
	return refs, err
}

// SetReferredEmail records the referred person's email if not already set
func (s *Store) SetReferredEmail(ctx context.Context, referralID int64, email string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE referrals SET referred_email = $1 WHERE id = $2 AND referred_email IS NULL",
		email, referralID)
	return err
}

// CompleteReferral marks a referral completed after the referred user's first
// purchase
func (s *Store) CompleteReferral(ctx context.Context, referralID, referredUserID, orderValue int64, completedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE referrals
		SET referred_user_id = $1, status = $2, order_value = $3, completed_at = $4
		WHERE id = $5`,
		referredUserID, models.ReferralStatusCompleted, orderValue, completedAt, referralID)
	return err
}

// MarkReferralCredited flips a completed referral to credited
func (s *Store) MarkReferralCredited(ctx context.Context, referralID int64, creditedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE referrals SET status = $1, credited_at = $2 WHERE id = $3",
		models.ReferralStatusCredited, creditedAt, referralID)
	return err
}

// CreateReferralCredit inserts a credit owed to a user
func (s *Store) CreateReferralCredit(ctx context.Context, credit *models.ReferralCredit) error {
	query := `
		INSERT INTO referral_credits (user_id, amount, source, referral_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	return s.db.GetContext(ctx, credit, query,
		credit.UserID, credit.Amount, credit.Source, credit.ReferralID)
}

// GetUnusedCredits retrieves a user's unused credits, newest first (display order)
func (s *Store) GetUnusedCredits(ctx context.Context, userID int64) ([]models.ReferralCredit, error) {
	var credits []models.ReferralCredit
	err := s.db.SelectContext(ctx, &credits,
		"SELECT * FROM referral_credits WHERE user_id = $1 AND is_used = FALSE ORDER BY created_at DESC",
		userID)
	return credits, err
}

// ErrInsufficientCredits is returned by ConsumeCredits when the user's unused
// balance cannot cover the requested amount.
var ErrInsufficientCredits = fmt.Errorf("insufficient credits available")

// ConsumeCredits marks a user's unused credits as used, oldest first, until
// the requested amount is covered. The selection and update run in one
// transaction with the credit rows locked, so concurrent calls cannot spend
// the same credit twice. Nothing is consumed on failure.
func (s *Store) ConsumeCredits(ctx context.Context, userID, amount, orderID int64) ([]int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var credits []models.ReferralCredit
	err = tx.SelectContext(ctx, &credits, `
		SELECT * FROM referral_credits
		WHERE user_id = $1 AND is_used = FALSE
		ORDER BY created_at
		FOR UPDATE`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock credits: %w", err)
	}

	remaining := amount
	var toUse []int64
	for _, c := range credits {
		if remaining <= 0 {
			break
		}
		toUse = append(toUse, c.ID)
		if c.Amount >= remaining {
			remaining = 0
		} else {
			remaining -= c.Amount
		}
	}

	if remaining > 0 {
		return nil, ErrInsufficientCredits
	}

	query, args, err := sqlx.In(`
		UPDATE referral_credits
		SET is_used = TRUE, used_at = NOW(), order_id = ?
		WHERE id IN (?)`, orderID, toUse)
	if err != nil {
		return nil, err
	}
	query = tx.Rebind(query)

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to consume credits: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return toUse, nil
}

// ReferralStats aggregates a user's referral program numbers.
type ReferralStats struct {
	TotalReferrals     int   `db:"total_referrals"`
	PendingReferrals   int   `db:"pending_referrals"`
	CompletedReferrals int   `db:"completed_referrals"`
	TotalEarned        int64 `db:"total_earned"`
	AvailableCredits   int64 `db:"available_credits"`
}

// GetReferralStats computes a user's referral statistics
func (s *Store) GetReferralStats(ctx context.Context, userID int64) (*ReferralStats, error) {
	var stats ReferralStats
	err := s.db.GetContext(ctx, &stats, `
		SELECT
			COUNT(*) AS total_referrals,
			COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0) AS pending_referrals,
			COALESCE(SUM(CASE WHEN status IN ('completed', 'credited') THEN 1 ELSE 0 END), 0) AS completed_referrals,
			COALESCE(SUM(CASE WHEN status = 'credited' THEN credit_amount ELSE 0 END), 0) AS total_earned,
			0::bigint AS available_credits
		FROM referrals
		WHERE referrer_id = $1`, userID)
	if err != nil {
		return nil, err
	}

	err = s.db.GetContext(ctx, &stats.AvailableCredits, `
		SELECT COALESCE(SUM(amount), 0)
		FROM referral_credits
		WHERE user_id = $1 AND is_used = FALSE`, userID)
	if err != nil {
		return nil, err
	}

	return &stats, nil
}
