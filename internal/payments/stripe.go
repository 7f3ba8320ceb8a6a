package payments

import (
	"context"
	"fmt"
	"time"

	"storefront-service/internal/util"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// Client wraps the Stripe API for the storefront's payment operations:
// refunds, subscription lifecycle, billing portal and setup intents.
type Client struct {
	api *client.API
}

// NewClient creates a Stripe client
func NewClient(secretKey string) *Client {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &Client{api: api}
}

// CreateRefund issues a refund against a payment intent. Amount is in cents;
// Stripe arbitrates whether the amount is acceptable.
func (c *Client) CreateRefund(ctx context.Context, paymentIntentID string, amountInCents int64) (string, error) {
	start := time.Now()
	defer func() {
		util.PaymentProviderLatency.Observe(time.Since(start).Seconds())
	}()

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentIntentID),
		Amount:        stripe.Int64(amountInCents),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	params.Context = ctx

	r, err := c.api.Refunds.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe refund failed: %w", err)
	}
	return r.ID, nil
}

// PauseSubscription pauses collection, keeping invoices as drafts
func (c *Client) PauseSubscription(ctx context.Context, subscriptionID string) error {
	params := &stripe.SubscriptionParams{
		PauseCollection: &stripe.SubscriptionPauseCollectionParams{
			Behavior: stripe.String("keep_as_draft"),
		},
	}
	params.Context = ctx

	if _, err := c.api.Subscriptions.Update(subscriptionID, params); err != nil {
		return fmt.Errorf("stripe pause failed: %w", err)
	}
	return nil
}

// ResumeSubscription clears the pause on collection
func (c *Client) ResumeSubscription(ctx context.Context, subscriptionID string) error {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	// Unsetting pause_collection requires the empty-string form.
	params.AddExtra("pause_collection", "")

	if _, err := c.api.Subscriptions.Update(subscriptionID, params); err != nil {
		return fmt.Errorf("stripe resume failed: %w", err)
	}
	return nil
}

// CancelSubscription cancels at period end so the paid period completes
func (c *Client) CancelSubscription(ctx context.Context, subscriptionID, reason string) error {
	if reason == "" {
		reason = "Customer requested cancellation"
	}
	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
		CancellationDetails: &stripe.SubscriptionCancellationDetailsParams{
			Comment: stripe.String(reason),
		},
	}
	params.Context = ctx

	if _, err := c.api.Subscriptions.Update(subscriptionID, params); err != nil {
		return fmt.Errorf("stripe cancel failed: %w", err)
	}
	return nil
}

// UpdateSubscriptionPaymentMethod sets the default payment method on a
// subscription, after the customer confirmed it through a setup intent
func (c *Client) UpdateSubscriptionPaymentMethod(ctx context.Context, subscriptionID, paymentMethodID string) error {
	params := &stripe.SubscriptionParams{
		DefaultPaymentMethod: stripe.String(paymentMethodID),
	}
	params.Context = ctx

	if _, err := c.api.Subscriptions.Update(subscriptionID, params); err != nil {
		return fmt.Errorf("stripe payment method update failed: %w", err)
	}
	return nil
}

// CreateSetupIntent starts a payment-method update flow for a customer
func (c *Client) CreateSetupIntent(ctx context.Context, customerID string) (clientSecret string, err error) {
	params := &stripe.SetupIntentParams{
		Customer:           stripe.String(customerID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
	}
	params.Context = ctx

	si, err := c.api.SetupIntents.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe setup intent failed: %w", err)
	}
	return si.ClientSecret, nil
}

// CreatePortalSession creates a billing portal session for a customer
func (c *Client) CreatePortalSession(ctx context.Context, customerID, returnURL string) (url string, err error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	sess, err := c.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe portal session failed: %w", err)
	}
	return sess.URL, nil
}
