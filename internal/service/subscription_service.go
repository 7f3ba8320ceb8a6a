package service

import (
	"context"
	"fmt"
	"time"

	"storefront-service/internal/apperr"
	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

type subscriptionStore interface {
	GetSubscriptionsByUserID(ctx context.Context, userID int64) ([]models.Subscription, error)
	GetSubscriptionForUser(ctx context.Context, id, userID int64) (*models.Subscription, error)
	PauseSubscription(ctx context.Context, id int64, pausedAt time.Time) error
	ResumeSubscription(ctx context.Context, id int64) error
	CancelSubscription(ctx context.Context, id int64, cancelledAt time.Time) error
	AdvanceNextBilling(ctx context.Context, id int64, next time.Time) error
}

type subscriptionBilling interface {
	PauseSubscription(ctx context.Context, subscriptionID string) error
	ResumeSubscription(ctx context.Context, subscriptionID string) error
	CancelSubscription(ctx context.Context, subscriptionID, reason string) error
	UpdateSubscriptionPaymentMethod(ctx context.Context, subscriptionID, paymentMethodID string) error
	CreateSetupIntent(ctx context.Context, customerID string) (string, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
}

// SubscriptionService handles customer self-service subscription
// management. Every operation is scoped to the requesting user; asking
// for someone else's subscription reads as not found.
type SubscriptionService struct {
	store   subscriptionStore
	billing subscriptionBilling
	audit   *AuditLogger
	appURL  string
	logger  *zap.Logger
	now     func() time.Time
}

// NewSubscriptionService creates a new subscription service
func NewSubscriptionService(st subscriptionStore, billing subscriptionBilling, audit *AuditLogger, appURL string) *SubscriptionService {
	return &SubscriptionService{
		store:   st,
		billing: billing,
		audit:   audit,
		appURL:  appURL,
		logger:  util.GetLogger(),
		now:     time.Now,
	}
}

// List retrieves the user's subscriptions
func (s *SubscriptionService) List(ctx context.Context, userID int64) ([]models.Subscription, error) {
	subs, err := s.store.GetSubscriptionsByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return subs, nil
}

// Get retrieves one of the user's subscriptions
func (s *SubscriptionService) Get(ctx context.Context, id, userID int64) (*models.Subscription, error) {
	sub, err := s.store.GetSubscriptionForUser(ctx, id, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	if sub == nil {
		return nil, apperr.NotFound("Subscription not found")
	}
	return sub, nil
}

// Pause pauses an active subscription. Billing stops at the provider
// first; a provider failure leaves the subscription untouched.
func (s *SubscriptionService) Pause(ctx context.Context, actor Actor, id, userID int64) (*models.Subscription, error) {
	ctx, span := util.StartSpan(ctx, "SubscriptionService.Pause")
	defer span.End()

	sub, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if sub.Status != models.SubscriptionStatusActive {
		return nil, apperr.BadRequest("Cannot pause subscription with status: %s", sub.Status)
	}

	if sub.StripeSubscriptionID.Valid && sub.StripeSubscriptionID.String != "" {
		if err := s.billing.PauseSubscription(ctx, sub.StripeSubscriptionID.String); err != nil {
			return nil, apperr.Internal(err, "Failed to pause billing")
		}
	}

	if err := s.store.PauseSubscription(ctx, id, s.now()); err != nil {
		return nil, fmt.Errorf("failed to pause subscription: %w", err)
	}

	s.logger.Info("Subscription paused", zap.Int64("subscription_id", id), zap.Int64("user_id", userID))
	s.audit.Log(ctx, actor, models.AuditActionUpdate, models.AuditResourceSubscription, id, "",
		map[string]string{"status": sub.Status},
		map[string]string{"status": models.SubscriptionStatusPaused},
		fmt.Sprintf("Paused subscription %d", id))

	return s.Get(ctx, id, userID)
}

// Resume restarts a paused subscription
func (s *SubscriptionService) Resume(ctx context.Context, actor Actor, id, userID int64) (*models.Subscription, error) {
	ctx, span := util.StartSpan(ctx, "SubscriptionService.Resume")
	defer span.End()

	sub, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if sub.Status != models.SubscriptionStatusPaused {
		return nil, apperr.BadRequest("Cannot resume subscription with status: %s", sub.Status)
	}

	if sub.StripeSubscriptionID.Valid && sub.StripeSubscriptionID.String != "" {
		if err := s.billing.ResumeSubscription(ctx, sub.StripeSubscriptionID.String); err != nil {
			return nil, apperr.Internal(err, "Failed to resume billing")
		}
	}

	if err := s.store.ResumeSubscription(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to resume subscription: %w", err)
	}

	s.logger.Info("Subscription resumed", zap.Int64("subscription_id", id), zap.Int64("user_id", userID))
	s.audit.Log(ctx, actor, models.AuditActionUpdate, models.AuditResourceSubscription, id, "",
		map[string]string{"status": sub.Status},
		map[string]string{"status": models.SubscriptionStatusActive},
		fmt.Sprintf("Resumed subscription %d", id))

	return s.Get(ctx, id, userID)
}

// CancelSubscriptionRequest carries the optional cancellation reason.
type CancelSubscriptionRequest struct {
	Reason string `json:"reason,omitempty"`
}

// Cancel cancels a subscription at period end
func (s *SubscriptionService) Cancel(ctx context.Context, actor Actor, id, userID int64, req *CancelSubscriptionRequest) (*models.Subscription, error) {
	ctx, span := util.StartSpan(ctx, "SubscriptionService.Cancel")
	defer span.End()

	sub, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	switch sub.Status {
	case models.SubscriptionStatusCancelled, models.SubscriptionStatusExpired:
		return nil, apperr.BadRequest("Subscription is already %s", sub.Status)
	}

	if sub.StripeSubscriptionID.Valid && sub.StripeSubscriptionID.String != "" {
		if err := s.billing.CancelSubscription(ctx, sub.StripeSubscriptionID.String, req.Reason); err != nil {
			return nil, apperr.Internal(err, "Failed to cancel billing")
		}
	}

	if err := s.store.CancelSubscription(ctx, id, s.now()); err != nil {
		return nil, fmt.Errorf("failed to cancel subscription: %w", err)
	}

	s.logger.Info("Subscription cancelled",
		zap.Int64("subscription_id", id),
		zap.Int64("user_id", userID),
		zap.String("reason", req.Reason))
	s.audit.Log(ctx, actor, models.AuditActionCancel, models.AuditResourceSubscription, id, "",
		map[string]string{"status": sub.Status},
		map[string]string{"status": models.SubscriptionStatusCancelled, "reason": req.Reason},
		fmt.Sprintf("Cancelled subscription %d", id))

	return s.Get(ctx, id, userID)
}

// SkipNextDelivery pushes the next billing date out one interval
func (s *SubscriptionService) SkipNextDelivery(ctx context.Context, actor Actor, id, userID int64) (*models.Subscription, error) {
	ctx, span := util.StartSpan(ctx, "SubscriptionService.SkipNextDelivery")
	defer span.End()

	sub, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if sub.Status != models.SubscriptionStatusActive {
		return nil, apperr.BadRequest("Cannot skip delivery for subscription with status: %s", sub.Status)
	}

	interval := sub.IntervalDays
	if interval <= 0 {
		interval = 30
	}
	next := sub.NextBillingDate.AddDate(0, 0, interval)

	if err := s.store.AdvanceNextBilling(ctx, id, next); err != nil {
		return nil, fmt.Errorf("failed to skip delivery: %w", err)
	}

	s.logger.Info("Subscription delivery skipped",
		zap.Int64("subscription_id", id),
		zap.Time("next_billing_date", next))
	s.audit.Log(ctx, actor, models.AuditActionUpdate, models.AuditResourceSubscription, id, "",
		map[string]time.Time{"next_billing_date": sub.NextBillingDate},
		map[string]time.Time{"next_billing_date": next},
		fmt.Sprintf("Skipped next delivery for subscription %d", id))

	return s.Get(ctx, id, userID)
}

// UpdatePaymentMethodRequest attaches a confirmed payment method.
type UpdatePaymentMethodRequest struct {
	PaymentMethodID string `json:"payment_method_id" binding:"required"`
}

// UpdatePaymentMethod sets the subscription's default payment method
func (s *SubscriptionService) UpdatePaymentMethod(ctx context.Context, id, userID int64, req *UpdatePaymentMethodRequest) error {
	sub, err := s.Get(ctx, id, userID)
	if err != nil {
		return err
	}
	if !sub.StripeSubscriptionID.Valid || sub.StripeSubscriptionID.String == "" {
		return apperr.BadRequest("Subscription has no billing record")
	}

	if err := s.billing.UpdateSubscriptionPaymentMethod(ctx, sub.StripeSubscriptionID.String, req.PaymentMethodID); err != nil {
		return apperr.Internal(err, "Failed to update payment method")
	}

	s.logger.Info("Subscription payment method updated", zap.Int64("subscription_id", id))
	return nil
}

// SetupIntentResponse carries the client secret for the payment form.
type SetupIntentResponse struct {
	ClientSecret string `json:"client_secret"`
}

// CreateSetupIntent starts a payment-method update flow
func (s *SubscriptionService) CreateSetupIntent(ctx context.Context, id, userID int64) (*SetupIntentResponse, error) {
	sub, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if !sub.StripeCustomerID.Valid || sub.StripeCustomerID.String == "" {
		return nil, apperr.BadRequest("Subscription has no billing customer")
	}

	secret, err := s.billing.CreateSetupIntent(ctx, sub.StripeCustomerID.String)
	if err != nil {
		return nil, apperr.Internal(err, "Failed to create setup intent")
	}
	return &SetupIntentResponse{ClientSecret: secret}, nil
}

// PortalSessionResponse carries the billing portal redirect URL.
type PortalSessionResponse struct {
	URL string `json:"url"`
}

// CreatePortalSession opens a billing portal session for the user
func (s *SubscriptionService) CreatePortalSession(ctx context.Context, id, userID int64) (*PortalSessionResponse, error) {
	sub, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if !sub.StripeCustomerID.Valid || sub.StripeCustomerID.String == "" {
		return nil, apperr.BadRequest("Subscription has no billing customer")
	}

	url, err := s.billing.CreatePortalSession(ctx, sub.StripeCustomerID.String, s.appURL+"/account/subscriptions")
	if err != nil {
		return nil, apperr.Internal(err, "Failed to create portal session")
	}
	return &PortalSessionResponse{URL: url}, nil
}
