package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/store"
	"storefront-service/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	util.InitLogger("test")
}

// fakeOrderStore keeps orders in memory and applies the same guarded
// update semantics as the SQL layer.
type fakeOrderStore struct {
	orders map[int64]*models.Order
	items  map[int64][]models.OrderItem
	users  map[int64]*models.User
	audits []models.AuditLog
	stats  *store.OrderStats
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{
		orders: make(map[int64]*models.Order),
		items:  make(map[int64][]models.OrderItem),
		users:  make(map[int64]*models.User),
	}
}

func (f *fakeOrderStore) ListOrders(ctx context.Context, _ store.OrderFilter) ([]models.Order, error) {
	var out []models.Order
	for _, o := range f.orders {
		out = append(out, *o)
	}
	return out, nil
}

func (f *fakeOrderStore) CountOrders(ctx context.Context, _ store.OrderFilter) (int, error) {
	return len(f.orders), nil
}

func (f *fakeOrderStore) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrderStore) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	return f.items[orderID], nil
}

func (f *fakeOrderStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	return u, nil
}

func (f *fakeOrderStore) UpdateOrderStatusCAS(ctx context.Context, orderID int64, fromStatus string, upd store.OrderUpdate) (bool, error) {
	o, ok := f.orders[orderID]
	if !ok || o.Status != fromStatus {
		return false, nil
	}
	o.Status = upd.Status
	if upd.PaymentStatus != nil {
		o.PaymentStatus = *upd.PaymentStatus
	}
	if upd.TrackingNumber != nil {
		o.TrackingNumber = sql.NullString{String: *upd.TrackingNumber, Valid: true}
	}
	if upd.ShippingCarrier != nil {
		o.ShippingCarrier = sql.NullString{String: *upd.ShippingCarrier, Valid: true}
	}
	if upd.AdminNotes != nil {
		o.AdminNotes = sql.NullString{String: *upd.AdminNotes, Valid: true}
	}
	if upd.ShippedAt != nil {
		o.ShippedAt = sql.NullTime{Time: *upd.ShippedAt, Valid: true}
	}
	if upd.DeliveredAt != nil {
		o.DeliveredAt = sql.NullTime{Time: *upd.DeliveredAt, Valid: true}
	}
	return true, nil
}

func (f *fakeOrderStore) AppendAdminNote(ctx context.Context, orderID int64, entry string) error {
	o, ok := f.orders[orderID]
	if !ok {
		return errors.New("order not found")
	}
	if o.AdminNotes.Valid && o.AdminNotes.String != "" {
		o.AdminNotes.String += "\n\n" + entry
	} else {
		o.AdminNotes = sql.NullString{String: entry, Valid: true}
	}
	return nil
}

func (f *fakeOrderStore) GetOrderStats(ctx context.Context, todayStart time.Time) (*store.OrderStats, error) {
	if f.stats != nil {
		return f.stats, nil
	}
	return &store.OrderStats{ByStatus: map[string]int{}}, nil
}

func (f *fakeOrderStore) CreateAuditLog(ctx context.Context, entry *models.AuditLog) error {
	entry.ID = int64(len(f.audits) + 1)
	f.audits = append(f.audits, *entry)
	return nil
}

func (f *fakeOrderStore) ListAuditLogs(ctx context.Context, resourceType string, resourceID int64, limit int) ([]models.AuditLog, error) {
	return f.audits, nil
}

type fakeRefundProvider struct {
	calls   int
	lastID  string
	lastAmt int64
	err     error
}

func (f *fakeRefundProvider) CreateRefund(ctx context.Context, paymentIntentID string, amountInCents int64) (string, error) {
	f.calls++
	f.lastID = paymentIntentID
	f.lastAmt = amountInCents
	if f.err != nil {
		return "", f.err
	}
	return "re_test_123", nil
}

type fakeLocker struct {
	held     map[string]bool
	denyNext bool
}

func newFakeLocker() *fakeLocker { return &fakeLocker{held: make(map[string]bool)} }

func (f *fakeLocker) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if f.denyNext || f.held[key] {
		return false, nil
	}
	f.held[key] = true
	return true, nil
}

func (f *fakeLocker) ReleaseLock(ctx context.Context, key string) error {
	delete(f.held, key)
	return nil
}

type fakeEvents struct {
	statusChanged []*models.OrderStatusChangedEvent
	shipped       []*models.OrderShippedEvent
	cancelled     []*models.OrderCancelledEvent
	refunded      []*models.OrderRefundedEvent
}

func (f *fakeEvents) PublishOrderStatusChanged(ctx context.Context, e *models.OrderStatusChangedEvent) error {
	f.statusChanged = append(f.statusChanged, e)
	return nil
}

func (f *fakeEvents) PublishOrderShipped(ctx context.Context, e *models.OrderShippedEvent) error {
	f.shipped = append(f.shipped, e)
	return nil
}

func (f *fakeEvents) PublishOrderCancelled(ctx context.Context, e *models.OrderCancelledEvent) error {
	f.cancelled = append(f.cancelled, e)
	return nil
}

func (f *fakeEvents) PublishOrderRefunded(ctx context.Context, e *models.OrderRefundedEvent) error {
	f.refunded = append(f.refunded, e)
	return nil
}

func testOrder(id int64, status, paymentStatus string) *models.Order {
	return &models.Order{
		ID:                id,
		OrderNumber:       fmt.Sprintf("OB-%04d", id),
		Email:             "customer@example.com",
		Status:            status,
		PaymentStatus:     paymentStatus,
		TotalInCents:      5000,
		ShippingFirstName: "Jane",
		ShippingLastName:  "Doe",
		TransactionID:     sql.NullString{String: "pi_test_456", Valid: true},
		CreatedAt:         time.Now(),
	}
}

func newTestOrderService(st *fakeOrderStore) (*OrderService, *fakeRefundProvider, *fakeLocker, *fakeEvents) {
	provider := &fakeRefundProvider{}
	locker := newFakeLocker()
	events := &fakeEvents{}
	svc := NewOrderService(st, provider, locker, events, NewAuditLogger(st), 30*time.Second)
	return svc, provider, locker, events
}

func TestValidateTransition(t *testing.T) {
	allowed := []struct{ from, to string }{
		{models.OrderStatusPending, models.OrderStatusProcessing},
		{models.OrderStatusPending, models.OrderStatusCancelled},
		{models.OrderStatusProcessing, models.OrderStatusShipped},
		{models.OrderStatusProcessing, models.OrderStatusCancelled},
		{models.OrderStatusShipped, models.OrderStatusDelivered},
		{models.OrderStatusShipped, models.OrderStatusCancelled},
	}
	allowedSet := make(map[string]bool)
	for _, tc := range allowed {
		allowedSet[tc.from+">"+tc.to] = true
		assert.NoError(t, ValidateTransition(tc.from, tc.to), "%s -> %s should be allowed", tc.from, tc.to)
	}

	statuses := []string{
		models.OrderStatusPending, models.OrderStatusProcessing, models.OrderStatusShipped,
		models.OrderStatusDelivered, models.OrderStatusCancelled, models.OrderStatusRefunded,
	}
	for _, from := range statuses {
		for _, to := range statuses {
			if allowedSet[from+">"+to] {
				continue
			}
			err := ValidateTransition(from, to)
			require.Error(t, err, "%s -> %s should be rejected", from, to)
			assert.Contains(t, err.Error(), from)
			assert.Contains(t, err.Error(), to)
		}
	}
}

func TestUpdateStatusPendingToShippedRejected(t *testing.T) {
	st := newFakeOrderStore()
	st.orders[1] = testOrder(1, models.OrderStatusPending, models.PaymentStatusPaid)
	svc, _, _, events := newTestOrderService(st)

	_, err := svc.UpdateStatus(context.Background(), Actor{UserID: 9, Role: "admin"}, 1, &UpdateStatusRequest{
		Status: models.OrderStatusShipped,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Cannot change status from pending to shipped")
	assert.Equal(t, models.OrderStatusPending, st.orders[1].Status)
	assert.Empty(t, events.statusChanged)
}

func TestUpdateStatusToShippedSetsTrackingAndTimestamp(t *testing.T) {
	st := newFakeOrderStore()
	st.orders[1] = testOrder(1, models.OrderStatusProcessing, models.PaymentStatusPaid)
	svc, _, _, events := newTestOrderService(st)

	updated, err := svc.UpdateStatus(context.Background(), Actor{UserID: 9, Role: "admin"}, 1, &UpdateStatusRequest{
		Status:          models.OrderStatusShipped,
		TrackingNumber:  "9400100000000000000000",
		ShippingCarrier: "USPS",
	})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusShipped, updated.Status)
	assert.Equal(t, "9400100000000000000000", updated.TrackingNumber.String)
	assert.True(t, updated.ShippedAt.Valid)

	require.Len(t, events.shipped, 1)
	assert.Equal(t, "9400100000000000000000", events.shipped[0].TrackingNumber)
	require.Len(t, events.statusChanged, 1)
	assert.Equal(t, models.OrderStatusProcessing, events.statusChanged[0].FromStatus)
}

func TestUpdateStatusAppendsNote(t *testing.T) {
	st := newFakeOrderStore()
	order := testOrder(1, models.OrderStatusPending, models.PaymentStatusPaid)
	order.AdminNotes = sql.NullString{String: "[2026-01-01T00:00:00Z] first note", Valid: true}
	st.orders[1] = order
	svc, _, _, _ := newTestOrderService(st)

	_, err := svc.UpdateStatus(context.Background(), Actor{UserID: 9, Role: "admin"}, 1, &UpdateStatusRequest{
		Status: models.OrderStatusProcessing,
		Note:   "payment verified",
	})
	require.NoError(t, err)

	notes := st.orders[1].AdminNotes.String
	assert.Contains(t, notes, "first note")
	assert.Contains(t, notes, "payment verified")
	assert.Equal(t, 2, len(strings.Split(notes, "\n\n")))
}

func TestCancelRequiresReason(t *testing.T) {
	st := newFakeOrderStore()
	st.orders[1] = testOrder(1, models.OrderStatusPending, models.PaymentStatusPaid)
	svc, _, _, _ := newTestOrderService(st)

	err := svc.Cancel(context.Background(), Actor{UserID: 9, Role: "admin"}, 1, &CancelRequest{})
	require.Error(t, err)
	assert.Equal(t, models.OrderStatusPending, st.orders[1].Status)
}

func TestCancelTerminalStatusRejected(t *testing.T) {
	for _, status := range []string{models.OrderStatusDelivered, models.OrderStatusCancelled, models.OrderStatusRefunded} {
		t.Run(status, func(t *testing.T) {
			st := newFakeOrderStore()
			st.orders[1] = testOrder(1, status, models.PaymentStatusPaid)
			svc, _, _, _ := newTestOrderService(st)

			err := svc.Cancel(context.Background(), Actor{UserID: 9, Role: "admin"}, 1, &CancelRequest{Reason: "changed mind"})
			require.Error(t, err)
			assert.Contains(t, err.Error(), status)
		})
	}
}

func TestCancelRecordsReason(t *testing.T) {
	st := newFakeOrderStore()
	st.orders[1] = testOrder(1, models.OrderStatusProcessing, models.PaymentStatusPaid)
	svc, _, _, events := newTestOrderService(st)

	err := svc.Cancel(context.Background(), Actor{UserID: 9, Name: "Ops", Role: "admin"}, 1, &CancelRequest{Reason: "out of stock"})
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusCancelled, st.orders[1].Status)
	assert.Contains(t, st.orders[1].AdminNotes.String, "CANCELLED: out of stock")
	require.Len(t, events.cancelled, 1)
	assert.Equal(t, "out of stock", events.cancelled[0].Reason)
	require.NotEmpty(t, st.audits)
	assert.Equal(t, models.AuditActionCancel, st.audits[len(st.audits)-1].Action)
}

func TestRefundFullAmount(t *testing.T) {
	st := newFakeOrderStore()
	st.orders[1] = testOrder(1, models.OrderStatusProcessing, models.PaymentStatusPaid)
	svc, provider, _, events := newTestOrderService(st)

	resp, err := svc.Refund(context.Background(), Actor{UserID: 9, Role: "admin"}, 1, &RefundRequest{Reason: "damaged in transit"})
	require.NoError(t, err)

	assert.Equal(t, int64(5000), resp.AmountInCents)
	assert.Equal(t, 1, provider.calls)
	assert.Equal(t, "pi_test_456", provider.lastID)
	assert.Equal(t, int64(5000), provider.lastAmt)

	assert.Equal(t, models.OrderStatusRefunded, st.orders[1].Status)
	assert.Equal(t, models.PaymentStatusRefunded, st.orders[1].PaymentStatus)
	assert.Contains(t, st.orders[1].AdminNotes.String, "REFUNDED $50.00: damaged in transit")
	require.Len(t, events.refunded, 1)
	assert.Equal(t, int64(5000), events.refunded[0].AmountInCents)
}

func TestRefundPartialAmount(t *testing.T) {
	st := newFakeOrderStore()
	st.orders[1] = testOrder(1, models.OrderStatusDelivered, models.PaymentStatusPaid)
	svc, provider, _, _ := newTestOrderService(st)

	resp, err := svc.Refund(context.Background(), Actor{UserID: 9, Role: "admin"}, 1, &RefundRequest{
		Reason:        "one item missing",
		AmountInCents: 1500,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1500), resp.AmountInCents)
	assert.Equal(t, int64(1500), provider.lastAmt)
}

func TestRefundRequiresPaidStatus(t *testing.T) {
	st := newFakeOrderStore()
	st.orders[1] = testOrder(1, models.OrderStatusProcessing, models.PaymentStatusPending)
	svc, provider, _, _ := newTestOrderService(st)

	_, err := svc.Refund(context.Background(), Actor{UserID: 9, Role: "admin"}, 1, &RefundRequest{Reason: "test"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "payment status")
	assert.Equal(t, 0, provider.calls)
}

func TestRefundAlreadyRefundedRejected(t *testing.T) {
	st := newFakeOrderStore()
	st.orders[1] = testOrder(1, models.OrderStatusRefunded, models.PaymentStatusPaid)
	svc, provider, _, _ := newTestOrderService(st)

	_, err := svc.Refund(context.Background(), Actor{UserID: 9, Role: "admin"}, 1, &RefundRequest{Reason: "test"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already been refunded")
	assert.Equal(t, 0, provider.calls)
}

func TestRefundLockedOrderConflicts(t *testing.T) {
	st := newFakeOrderStore()
	st.orders[1] = testOrder(1, models.OrderStatusProcessing, models.PaymentStatusPaid)
	svc, provider, locker, _ := newTestOrderService(st)
	locker.held["refund:order:1"] = true

	_, err := svc.Refund(context.Background(), Actor{UserID: 9, Role: "admin"}, 1, &RefundRequest{Reason: "test"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already in progress")
	assert.Equal(t, 0, provider.calls)
	assert.Equal(t, models.OrderStatusProcessing, st.orders[1].Status)
}

func TestRefundProviderFailureSurfaced(t *testing.T) {
	st := newFakeOrderStore()
	st.orders[1] = testOrder(1, models.OrderStatusProcessing, models.PaymentStatusPaid)
	svc, provider, locker, _ := newTestOrderService(st)
	provider.err = errors.New("card network unavailable")

	_, err := svc.Refund(context.Background(), Actor{UserID: 9, Role: "admin"}, 1, &RefundRequest{Reason: "test"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Stripe refund failed")
	assert.Equal(t, models.OrderStatusProcessing, st.orders[1].Status)
	// Lock released so a retry can proceed.
	assert.Empty(t, locker.held)
}

func TestRefundReleasesLock(t *testing.T) {
	st := newFakeOrderStore()
	st.orders[1] = testOrder(1, models.OrderStatusProcessing, models.PaymentStatusPaid)
	svc, _, locker, _ := newTestOrderService(st)

	_, err := svc.Refund(context.Background(), Actor{UserID: 9, Role: "admin"}, 1, &RefundRequest{Reason: "test"})
	require.NoError(t, err)
	assert.Empty(t, locker.held)
}

func TestAddNoteIncludesAuthor(t *testing.T) {
	st := newFakeOrderStore()
	st.orders[1] = testOrder(1, models.OrderStatusPending, models.PaymentStatusPaid)
	svc, _, _, _ := newTestOrderService(st)

	err := svc.AddNote(context.Background(), Actor{UserID: 9, Name: "Sam", Role: "staff"}, 1, &AddNoteRequest{Note: "called customer"})
	require.NoError(t, err)
	assert.Contains(t, st.orders[1].AdminNotes.String, "Sam: called customer")
}

func TestGetOrderNotFound(t *testing.T) {
	st := newFakeOrderStore()
	svc, _, _, _ := newTestOrderService(st)

	_, err := svc.GetOrder(context.Background(), 42)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestGetStatsFillsAllStatuses(t *testing.T) {
	st := newFakeOrderStore()
	st.stats = &store.OrderStats{
		ByStatus:            map[string]int{models.OrderStatusPending: 3},
		TodayOrders:         2,
		TodayRevenueInCents: 12000,
	}
	svc, _, _, _ := newTestOrderService(st)

	stats, err := svc.GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.ByStatus[models.OrderStatusPending])
	assert.Equal(t, 0, stats.ByStatus[models.OrderStatusRefunded])
	assert.Len(t, stats.ByStatus, 6)
	assert.Equal(t, int64(12000), stats.TodayRevenueInCents)
}
