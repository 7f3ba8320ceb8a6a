package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"storefront-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubscriptionStore struct {
	fakeOrderStore
	subs map[int64]*models.Subscription
}

func newFakeSubscriptionStore() *fakeSubscriptionStore {
	return &fakeSubscriptionStore{
		fakeOrderStore: *newFakeOrderStore(),
		subs:           make(map[int64]*models.Subscription),
	}
}

func (f *fakeSubscriptionStore) GetSubscriptionsByUserID(ctx context.Context, userID int64) ([]models.Subscription, error) {
	var out []models.Subscription
	for _, s := range f.subs {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeSubscriptionStore) GetSubscriptionForUser(ctx context.Context, id, userID int64) (*models.Subscription, error) {
	s, ok := f.subs[id]
	if !ok || s.UserID != userID {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSubscriptionStore) PauseSubscription(ctx context.Context, id int64, pausedAt time.Time) error {
	f.subs[id].Status = models.SubscriptionStatusPaused
	f.subs[id].PausedAt = sql.NullTime{Time: pausedAt, Valid: true}
	return nil
}

func (f *fakeSubscriptionStore) ResumeSubscription(ctx context.Context, id int64) error {
	f.subs[id].Status = models.SubscriptionStatusActive
	f.subs[id].PausedAt = sql.NullTime{}
	return nil
}

func (f *fakeSubscriptionStore) CancelSubscription(ctx context.Context, id int64, cancelledAt time.Time) error {
	f.subs[id].Status = models.SubscriptionStatusCancelled
	f.subs[id].CancelledAt = sql.NullTime{Time: cancelledAt, Valid: true}
	return nil
}

func (f *fakeSubscriptionStore) AdvanceNextBilling(ctx context.Context, id int64, next time.Time) error {
	f.subs[id].NextBillingDate = next
	return nil
}

type fakeBilling struct {
	paused    []string
	resumed   []string
	cancelled []string
	pmUpdates []string
	err       error
}

func (f *fakeBilling) PauseSubscription(ctx context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	f.paused = append(f.paused, id)
	return nil
}

func (f *fakeBilling) ResumeSubscription(ctx context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	f.resumed = append(f.resumed, id)
	return nil
}

func (f *fakeBilling) CancelSubscription(ctx context.Context, id, reason string) error {
	if f.err != nil {
		return f.err
	}
	f.cancelled = append(f.cancelled, id)
	return nil
}

func (f *fakeBilling) UpdateSubscriptionPaymentMethod(ctx context.Context, id, pm string) error {
	if f.err != nil {
		return f.err
	}
	f.pmUpdates = append(f.pmUpdates, id+":"+pm)
	return nil
}

func (f *fakeBilling) CreateSetupIntent(ctx context.Context, customerID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "seti_secret_123", nil
}

func (f *fakeBilling) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "https://billing.stripe.com/session/test", nil
}

func testSubscription(id, userID int64, status string) *models.Subscription {
	return &models.Subscription{
		ID:                   id,
		UserID:               userID,
		Status:               status,
		Quantity:             1,
		PriceInCents:         3999,
		IntervalDays:         30,
		StripeSubscriptionID: sql.NullString{String: "sub_test_1", Valid: true},
		StripeCustomerID:     sql.NullString{String: "cus_test_1", Valid: true},
		NextBillingDate:      time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC),
	}
}

func newTestSubscriptionService(st *fakeSubscriptionStore) (*SubscriptionService, *fakeBilling) {
	billing := &fakeBilling{}
	svc := NewSubscriptionService(st, billing, NewAuditLogger(st), "https://optibio.example.com")
	return svc, billing
}

func TestSubscriptionOwnershipScoping(t *testing.T) {
	st := newFakeSubscriptionStore()
	st.subs[1] = testSubscription(1, 7, models.SubscriptionStatusActive)
	svc, _ := newTestSubscriptionService(st)

	// Another user's subscription reads as not found.
	_, err := svc.Get(context.Background(), 1, 8)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	sub, err := svc.Get(context.Background(), 1, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), sub.ID)
}

func TestPauseActiveSubscription(t *testing.T) {
	st := newFakeSubscriptionStore()
	st.subs[1] = testSubscription(1, 7, models.SubscriptionStatusActive)
	svc, billing := newTestSubscriptionService(st)

	sub, err := svc.Pause(context.Background(), Actor{UserID: 7, Role: "user"}, 1, 7)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusPaused, sub.Status)
	assert.True(t, sub.PausedAt.Valid)
	assert.Equal(t, []string{"sub_test_1"}, billing.paused)
}

func TestPauseNonActiveRejected(t *testing.T) {
	st := newFakeSubscriptionStore()
	st.subs[1] = testSubscription(1, 7, models.SubscriptionStatusPaused)
	svc, billing := newTestSubscriptionService(st)

	_, err := svc.Pause(context.Background(), Actor{UserID: 7, Role: "user"}, 1, 7)
	require.Error(t, err)
	assert.Empty(t, billing.paused)
}

func TestBillingFailureLeavesSubscriptionUntouched(t *testing.T) {
	st := newFakeSubscriptionStore()
	st.subs[1] = testSubscription(1, 7, models.SubscriptionStatusActive)
	svc, billing := newTestSubscriptionService(st)
	billing.err = assert.AnError

	_, err := svc.Pause(context.Background(), Actor{UserID: 7, Role: "user"}, 1, 7)
	require.Error(t, err)
	assert.Equal(t, models.SubscriptionStatusActive, st.subs[1].Status)
}

func TestResumePausedSubscription(t *testing.T) {
	st := newFakeSubscriptionStore()
	paused := testSubscription(1, 7, models.SubscriptionStatusPaused)
	paused.PausedAt = sql.NullTime{Time: time.Now(), Valid: true}
	st.subs[1] = paused
	svc, billing := newTestSubscriptionService(st)

	sub, err := svc.Resume(context.Background(), Actor{UserID: 7, Role: "user"}, 1, 7)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	assert.False(t, sub.PausedAt.Valid)
	assert.Equal(t, []string{"sub_test_1"}, billing.resumed)
}

func TestCancelAlreadyCancelledRejected(t *testing.T) {
	st := newFakeSubscriptionStore()
	st.subs[1] = testSubscription(1, 7, models.SubscriptionStatusCancelled)
	svc, billing := newTestSubscriptionService(st)

	_, err := svc.Cancel(context.Background(), Actor{UserID: 7, Role: "user"}, 1, 7, &CancelSubscriptionRequest{})
	require.Error(t, err)
	assert.Empty(t, billing.cancelled)
}

func TestCancelSubscription(t *testing.T) {
	st := newFakeSubscriptionStore()
	st.subs[1] = testSubscription(1, 7, models.SubscriptionStatusActive)
	svc, billing := newTestSubscriptionService(st)

	sub, err := svc.Cancel(context.Background(), Actor{UserID: 7, Role: "user"}, 1, 7, &CancelSubscriptionRequest{Reason: "too many bottles"})
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusCancelled, sub.Status)
	assert.True(t, sub.CancelledAt.Valid)
	assert.Equal(t, []string{"sub_test_1"}, billing.cancelled)
}

func TestSkipNextDeliveryAdvancesOneInterval(t *testing.T) {
	st := newFakeSubscriptionStore()
	st.subs[1] = testSubscription(1, 7, models.SubscriptionStatusActive)
	svc, _ := newTestSubscriptionService(st)

	sub, err := svc.SkipNextDelivery(context.Background(), Actor{UserID: 7, Role: "user"}, 1, 7)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 10, 0, 0, 0, 0, time.UTC), sub.NextBillingDate)
}

func TestSkipNextDeliveryRequiresActive(t *testing.T) {
	st := newFakeSubscriptionStore()
	st.subs[1] = testSubscription(1, 7, models.SubscriptionStatusPaused)
	svc, _ := newTestSubscriptionService(st)

	_, err := svc.SkipNextDelivery(context.Background(), Actor{UserID: 7, Role: "user"}, 1, 7)
	require.Error(t, err)
}

func TestUpdatePaymentMethod(t *testing.T) {
	st := newFakeSubscriptionStore()
	st.subs[1] = testSubscription(1, 7, models.SubscriptionStatusActive)
	svc, billing := newTestSubscriptionService(st)

	err := svc.UpdatePaymentMethod(context.Background(), 1, 7, &UpdatePaymentMethodRequest{PaymentMethodID: "pm_card_visa"})
	require.NoError(t, err)
	assert.Equal(t, []string{"sub_test_1:pm_card_visa"}, billing.pmUpdates)
}

func TestCreateSetupIntentAndPortalSession(t *testing.T) {
	st := newFakeSubscriptionStore()
	st.subs[1] = testSubscription(1, 7, models.SubscriptionStatusActive)
	svc, _ := newTestSubscriptionService(st)

	si, err := svc.CreateSetupIntent(context.Background(), 1, 7)
	require.NoError(t, err)
	assert.Equal(t, "seti_secret_123", si.ClientSecret)

	portal, err := svc.CreatePortalSession(context.Background(), 1, 7)
	require.NoError(t, err)
	assert.Contains(t, portal.URL, "billing.stripe.com")
}

func TestSetupIntentRequiresBillingCustomer(t *testing.T) {
	st := newFakeSubscriptionStore()
	sub := testSubscription(1, 7, models.SubscriptionStatusActive)
	sub.StripeCustomerID = sql.NullString{}
	st.subs[1] = sub
	svc, _ := newTestSubscriptionService(st)

	_, err := svc.CreateSetupIntent(context.Background(), 1, 7)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no billing customer")
}
