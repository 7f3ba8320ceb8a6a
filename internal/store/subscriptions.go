package store

import (
	"context"
	"database/sql"
	"time"

	"storefront-service/internal/models"
)

// GetSubscriptionsByUserID retrieves a user's subscriptions, newest first
func (s *Store) GetSubscriptionsByUserID(ctx context.Context, userID int64) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := s.db.SelectContext(ctx, &subs,
		"SELECT * FROM subscriptions WHERE user_id = $1 ORDER BY created_at DESC", userID)
	return subs, err
}

// GetSubscriptionForUser retrieves a subscription only if owned by the user
func (s *Store) GetSubscriptionForUser(ctx context.Context, id, userID int64) (*models.Subscription, error) {
	var sub models.Subscription
	err := s.db.GetContext(ctx, &sub,
		"SELECT * FROM subscriptions WHERE id = $1 AND user_id = $2", id, userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// PauseSubscription sets a subscription paused
func (s *Store) PauseSubscription(ctx context.Context, id int64, pausedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE subscriptions SET status = $1, paused_at = $2, updated_at = NOW() WHERE id = $3",
		models.SubscriptionStatusPaused, pausedAt, id)
	return err
}

// ResumeSubscription sets a paused subscription active and clears paused_at
func (s *Store) ResumeSubscription(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE subscriptions SET status = $1, paused_at = NULL, updated_at = NOW() WHERE id = $2",
		models.SubscriptionStatusActive, id)
	return err
}

// CancelSubscription sets a subscription cancelled
func (s *Store) CancelSubscription(ctx context.Context, id int64, cancelledAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE subscriptions SET status = $1, cancelled_at = $2, updated_at = NOW() WHERE id = $3",
		models.SubscriptionStatusCancelled, cancelledAt, id)
	return err
}

// AdvanceNextBilling pushes the next billing date forward (skip a delivery)
func (s *Store) AdvanceNextBilling(ctx context.Context, id int64, next time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE subscriptions SET next_billing_date = $1, updated_at = NOW() WHERE id = $2",
		next, id)
	return err
}
