package service

import (
	"context"
	"fmt"
	"time"

	"storefront-service/internal/apperr"
	"storefront-service/internal/models"
	"storefront-service/internal/store"
	"storefront-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// orderTransitions is the fixed status transition table. Terminal states
// (delivered, cancelled, refunded) have no exits.
var orderTransitions = map[string][]string{
	models.OrderStatusPending:    {models.OrderStatusProcessing, models.OrderStatusCancelled},
	models.OrderStatusProcessing: {models.OrderStatusShipped, models.OrderStatusCancelled},
	models.OrderStatusShipped:    {models.OrderStatusDelivered, models.OrderStatusCancelled},
	models.OrderStatusDelivered:  {},
	models.OrderStatusCancelled:  {},
	models.OrderStatusRefunded:   {},
}

// ValidateTransition rejects any (current, requested) pair outside the
// transition table.
func ValidateTransition(from, to string) error {
	for _, allowed := range orderTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return apperr.BadRequest("Cannot change status from %s to %s", from, to)
}

// noteEntry formats one append-only admin note line.
func noteEntry(now time.Time, text string) string {
	return fmt.Sprintf("[%s] %s", now.UTC().Format(time.RFC3339), text)
}

// appendNote grows an admin notes blob without overwriting history.
func appendNote(existing, entry string) string {
	if existing == "" {
		return entry
	}
	return existing + "\n\n" + entry
}

// orderStore is the data access the order service needs.
type orderStore interface {
	ListOrders(ctx context.Context, f store.OrderFilter) ([]models.Order, error)
	CountOrders(ctx context.Context, f store.OrderFilter) (int, error)
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	UpdateOrderStatusCAS(ctx context.Context, orderID int64, fromStatus string, upd store.OrderUpdate) (bool, error)
	AppendAdminNote(ctx context.Context, orderID int64, entry string) error
	GetOrderStats(ctx context.Context, todayStart time.Time) (*store.OrderStats, error)
}

// refundProvider issues refunds against the payment processor.
type refundProvider interface {
	CreateRefund(ctx context.Context, paymentIntentID string, amountInCents int64) (string, error)
}

// refundLocker serializes refund processing per order.
type refundLocker interface {
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey string) error
}

// orderEventPublisher publishes order lifecycle events.
type orderEventPublisher interface {
	PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
	PublishOrderShipped(ctx context.Context, event *models.OrderShippedEvent) error
	PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error
	PublishOrderRefunded(ctx context.Context, event *models.OrderRefundedEvent) error
}

// OrderService handles the admin order lifecycle: listing, status
// transitions, cancellation and refunds.
type OrderService struct {
	store         orderStore
	payments      refundProvider
	locker        refundLocker
	events        orderEventPublisher
	audit         *AuditLogger
	refundLockTTL time.Duration
	logger        *zap.Logger
	now           func() time.Time
}

// NewOrderService creates a new order service
func NewOrderService(
	st orderStore,
	payments refundProvider,
	locker refundLocker,
	events orderEventPublisher,
	audit *AuditLogger,
	refundLockTTL time.Duration,
) *OrderService {
	return &OrderService{
		store:         st,
		payments:      payments,
		locker:        locker,
		events:        events,
		audit:         audit,
		refundLockTTL: refundLockTTL,
		logger:        util.GetLogger(),
		now:           time.Now,
	}
}

// ListOrdersRequest narrows the admin order list.
type ListOrdersRequest struct {
	Page          int    `form:"page" json:"page"`
	Limit         int    `form:"limit" json:"limit"`
	Search        string `form:"search" json:"search"`
	Status        string `form:"status" json:"status"`
	PaymentStatus string `form:"payment_status" json:"payment_status"`
	SortBy        string `form:"sort_by" json:"sort_by"`
	SortOrder     string `form:"sort_order" json:"sort_order"`
	StartDate     string `form:"start_date" json:"start_date"`
	EndDate       string `form:"end_date" json:"end_date"`
}

// Pagination echoes the applied paging parameters.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// ListOrdersResponse is one page of orders.
type ListOrdersResponse struct {
	Orders     []models.Order `json:"orders"`
	Pagination Pagination     `json:"pagination"`
}

func normalizePaging(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}

// ListOrders retrieves a filtered page of orders
func (s *OrderService) ListOrders(ctx context.Context, req *ListOrdersRequest) (*ListOrdersResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListOrders")
	defer span.End()

	page, limit := normalizePaging(req.Page, req.Limit)

	filter := store.OrderFilter{
		Search:        req.Search,
		Status:        req.Status,
		PaymentStatus: req.PaymentStatus,
		SortBy:        req.SortBy,
		SortOrder:     req.SortOrder,
		Limit:         limit,
		Offset:        (page - 1) * limit,
	}
	if req.StartDate != "" {
		if t, err := time.Parse(time.RFC3339, req.StartDate); err == nil {
			filter.StartDate = &t
		}
	}
	if req.EndDate != "" {
		if t, err := time.Parse(time.RFC3339, req.EndDate); err == nil {
			filter.EndDate = &t
		}
	}

	orders, err := s.store.ListOrders(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	total, err := s.store.CountOrders(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}

	return &ListOrdersResponse{
		Orders: orders,
		Pagination: Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: (total + limit - 1) / limit,
		},
	}, nil
}

// OrderDetail is an order with its items and, when known, the customer.
type OrderDetail struct {
	Order    *models.Order      `json:"order"`
	Items    []models.OrderItem `json:"items"`
	Customer *models.User       `json:"customer,omitempty"`
}

// GetOrder retrieves an order with items and customer info
func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (*OrderDetail, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return nil, apperr.NotFound("Order not found")
	}

	items, err := s.store.GetOrderItemsByOrderID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}

	detail := &OrderDetail{Order: order, Items: items}
	if order.UserID.Valid {
		customer, err := s.store.GetUserByID(ctx, order.UserID.Int64)
		if err != nil {
			return nil, fmt.Errorf("failed to get customer: %w", err)
		}
		detail.Customer = customer
	}

	return detail, nil
}

// UpdateStatusRequest moves an order along the lifecycle.
type UpdateStatusRequest struct {
	Status          string `json:"status" binding:"required"`
	TrackingNumber  string `json:"tracking_number,omitempty"`
	ShippingCarrier string `json:"shipping_carrier,omitempty"`
	Note            string `json:"note,omitempty"`
}

// UpdateStatus transitions an order, attaching tracking details and an
// optional note. The write is guarded on the status the admin saw, so a
// concurrent transition loses cleanly.
func (s *OrderService) UpdateStatus(ctx context.Context, actor Actor, orderID int64, req *UpdateStatusRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateStatus")
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return nil, apperr.NotFound("Order not found")
	}

	if err := ValidateTransition(order.Status, req.Status); err != nil {
		util.OrderTransitionsRejectedTotal.Inc()
		return nil, err
	}

	now := s.now()
	upd := store.OrderUpdate{Status: req.Status}
	if req.TrackingNumber != "" {
		upd.TrackingNumber = &req.TrackingNumber
	}
	if req.ShippingCarrier != "" {
		upd.ShippingCarrier = &req.ShippingCarrier
	}
	if req.Note != "" {
		notes := appendNote(order.AdminNotes.String, noteEntry(now, req.Note))
		upd.AdminNotes = &notes
	}
	switch req.Status {
	case models.OrderStatusShipped:
		upd.ShippedAt = &now
	case models.OrderStatusDelivered:
		upd.DeliveredAt = &now
	}

	ok, err := s.store.UpdateOrderStatusCAS(ctx, orderID, order.Status, upd)
	if err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}
	if !ok {
		return nil, apperr.Conflict("Order status changed concurrently, please retry")
	}

	util.OrderStatusTransitionsTotal.WithLabelValues(order.Status, req.Status).Inc()
	s.logger.Info("Order status updated",
		zap.Int64("order_id", orderID),
		zap.String("from", order.Status),
		zap.String("to", req.Status))

	s.publishStatusChanged(ctx, order, req)

	action := models.AuditActionUpdate
	if req.Status == models.OrderStatusShipped {
		action = models.AuditActionShip
	}
	s.audit.Log(ctx, actor, action, models.AuditResourceOrder, order.ID, order.OrderNumber,
		map[string]string{"status": order.Status},
		map[string]string{"status": req.Status, "tracking_number": req.TrackingNumber, "shipping_carrier": req.ShippingCarrier},
		fmt.Sprintf("Updated order %s status from %s to %s", order.OrderNumber, order.Status, req.Status))

	updated, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload order: %w", err)
	}
	return updated, nil
}

func (s *OrderService) publishStatusChanged(ctx context.Context, order *models.Order, req *UpdateStatusRequest) {
	base := models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: models.EventTypeOrderStatusChanged,
		Timestamp: s.now(),
	}

	event := &models.OrderStatusChangedEvent{
		BaseEvent:   base,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		FromStatus:  order.Status,
		ToStatus:    req.Status,
	}
	if err := s.events.PublishOrderStatusChanged(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderStatusChanged event", zap.Error(err))
	}

	if req.Status != models.OrderStatusShipped {
		return
	}
	shipped := &models.OrderShippedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderShipped,
			Timestamp: s.now(),
		},
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		Email:          order.Email,
		FirstName:      order.ShippingFirstName,
		TrackingNumber: req.TrackingNumber,
		Carrier:        req.ShippingCarrier,
	}
	if err := s.events.PublishOrderShipped(ctx, shipped); err != nil {
		s.logger.Error("Failed to publish OrderShipped event", zap.Error(err))
	}
}

// CancelRequest cancels an order with a mandatory reason.
type CancelRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// Cancel cancels a non-terminal order
func (s *OrderService) Cancel(ctx context.Context, actor Actor, orderID int64, req *CancelRequest) error {
	ctx, span := util.StartSpan(ctx, "OrderService.Cancel")
	defer span.End()

	if req.Reason == "" {
		return apperr.BadRequest("Cancellation reason is required")
	}

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return apperr.NotFound("Order not found")
	}

	switch order.Status {
	case models.OrderStatusDelivered, models.OrderStatusCancelled, models.OrderStatusRefunded:
		return apperr.BadRequest("Cannot cancel order with status: %s", order.Status)
	}

	notes := appendNote(order.AdminNotes.String, noteEntry(s.now(), "CANCELLED: "+req.Reason))
	ok, err := s.store.UpdateOrderStatusCAS(ctx, orderID, order.Status, store.OrderUpdate{
		Status:     models.OrderStatusCancelled,
		AdminNotes: &notes,
	})
	if err != nil {
		return fmt.Errorf("failed to cancel order: %w", err)
	}
	if !ok {
		return apperr.Conflict("Order status changed concurrently, please retry")
	}

	util.OrdersCancelledTotal.Inc()
	s.logger.Info("Order cancelled",
		zap.Int64("order_id", orderID),
		zap.String("reason", req.Reason))

	event := &models.OrderCancelledEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderCancelled,
			Timestamp: s.now(),
		},
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Reason:      req.Reason,
	}
	if err := s.events.PublishOrderCancelled(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCancelled event", zap.Error(err))
	}

	s.audit.Log(ctx, actor, models.AuditActionCancel, models.AuditResourceOrder, order.ID, order.OrderNumber,
		map[string]string{"status": order.Status},
		map[string]string{"status": models.OrderStatusCancelled, "reason": req.Reason},
		fmt.Sprintf("Cancelled order %s: %s", order.OrderNumber, req.Reason))

	return nil
}

// RefundRequest refunds an order, fully by default.
type RefundRequest struct {
	Reason        string `json:"reason" binding:"required"`
	AmountInCents int64  `json:"amount_in_cents,omitempty"`
}

// RefundResponse reports the refunded amount.
type RefundResponse struct {
	AmountInCents int64  `json:"amount_in_cents"`
	Message       string `json:"message"`
}

// Refund issues a refund through the payment provider and flips the order
// to refunded. A per-order lock plus a guarded status write keep a
// concurrent second refund from double-charging the provider.
func (s *OrderService) Refund(ctx context.Context, actor Actor, orderID int64, req *RefundRequest) (*RefundResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.Refund")
	defer span.End()

	if req.Reason == "" {
		return nil, apperr.BadRequest("Refund reason is required")
	}

	lockKey := fmt.Sprintf("refund:order:%d", orderID)
	acquired, err := s.locker.AcquireLock(ctx, lockKey, s.refundLockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire refund lock: %w", err)
	}
	if !acquired {
		util.RefundFailuresTotal.WithLabelValues("locked").Inc()
		return nil, apperr.Conflict("A refund for this order is already in progress")
	}
	defer func() {
		if err := s.locker.ReleaseLock(context.Background(), lockKey); err != nil {
			s.logger.Warn("Failed to release refund lock", zap.String("key", lockKey), zap.Error(err))
		}
	}()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return nil, apperr.NotFound("Order not found")
	}

	if order.PaymentStatus != models.PaymentStatusPaid {
		util.RefundFailuresTotal.WithLabelValues("not_paid").Inc()
		return nil, apperr.BadRequest("Cannot refund order with payment status: %s", order.PaymentStatus)
	}
	if order.Status == models.OrderStatusRefunded {
		util.RefundFailuresTotal.WithLabelValues("already_refunded").Inc()
		return nil, apperr.BadRequest("Order has already been refunded")
	}

	refundAmount := req.AmountInCents
	if refundAmount <= 0 {
		refundAmount = order.TotalInCents
	}

	// The amount is deliberately not checked against the charge; the
	// provider is the arbiter for partial amounts.
	if order.TransactionID.Valid && order.TransactionID.String != "" {
		if _, err := s.payments.CreateRefund(ctx, order.TransactionID.String, refundAmount); err != nil {
			util.RefundFailuresTotal.WithLabelValues("provider").Inc()
			return nil, apperr.Internal(err, "Stripe refund failed")
		}
	}

	paymentStatus := models.PaymentStatusRefunded
	notes := appendNote(order.AdminNotes.String,
		noteEntry(s.now(), fmt.Sprintf("REFUNDED $%.2f: %s", float64(refundAmount)/100, req.Reason)))

	ok, err := s.store.UpdateOrderStatusCAS(ctx, orderID, order.Status, store.OrderUpdate{
		Status:        models.OrderStatusRefunded,
		PaymentStatus: &paymentStatus,
		AdminNotes:    &notes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to mark order refunded: %w", err)
	}
	if !ok {
		// Provider refund already went through; surface loudly.
		s.logger.Error("Order moved concurrently after provider refund",
			zap.Int64("order_id", orderID),
			zap.Int64("amount_in_cents", refundAmount))
		return nil, apperr.Conflict("Order status changed during refund, reconcile manually")
	}

	util.OrdersRefundedTotal.Inc()
	util.RefundAmountCents.Add(float64(refundAmount))
	s.logger.Info("Order refunded",
		zap.Int64("order_id", orderID),
		zap.Int64("amount_in_cents", refundAmount),
		zap.String("reason", req.Reason))

	event := &models.OrderRefundedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderRefunded,
			Timestamp: s.now(),
		},
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		Email:         order.Email,
		FirstName:     order.ShippingFirstName,
		AmountInCents: refundAmount,
		Reason:        req.Reason,
	}
	if err := s.events.PublishOrderRefunded(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderRefunded event", zap.Error(err))
	}

	s.audit.Log(ctx, actor, models.AuditActionRefund, models.AuditResourceOrder, order.ID, order.OrderNumber,
		map[string]string{"status": order.Status, "payment_status": order.PaymentStatus},
		map[string]interface{}{"status": models.OrderStatusRefunded, "payment_status": models.PaymentStatusRefunded, "refund_amount": refundAmount},
		fmt.Sprintf("Refunded $%.2f for order %s: %s", float64(refundAmount)/100, order.OrderNumber, req.Reason))

	return &RefundResponse{
		AmountInCents: refundAmount,
		Message:       fmt.Sprintf("Refund of $%.2f processed successfully", float64(refundAmount)/100),
	}, nil
}

// AddNoteRequest appends one admin note.
type AddNoteRequest struct {
	Note string `json:"note" binding:"required"`
}

// AddNote appends a timestamped, attributed note to the order
func (s *OrderService) AddNote(ctx context.Context, actor Actor, orderID int64, req *AddNoteRequest) error {
	if req.Note == "" {
		return apperr.BadRequest("Note is required")
	}

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return apperr.NotFound("Order not found")
	}

	author := actor.Name
	if author == "" {
		author = "Admin"
	}
	entry := noteEntry(s.now(), author+": "+req.Note)
	if err := s.store.AppendAdminNote(ctx, orderID, entry); err != nil {
		return fmt.Errorf("failed to append note: %w", err)
	}
	return nil
}

// OrderStatsResponse is the admin dashboard summary.
type OrderStatsResponse struct {
	ByStatus            map[string]int `json:"by_status"`
	TodayOrders         int            `json:"today_orders"`
	TodayRevenueInCents int64          `json:"today_revenue_in_cents"`
}

// GetStats computes order dashboard numbers
func (s *OrderService) GetStats(ctx context.Context) (*OrderStatsResponse, error) {
	now := s.now()
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	stats, err := s.store.GetOrderStats(ctx, todayStart)
	if err != nil {
		return nil, fmt.Errorf("failed to get order stats: %w", err)
	}

	byStatus := map[string]int{
		models.OrderStatusPending:    0,
		models.OrderStatusProcessing: 0,
		models.OrderStatusShipped:    0,
		models.OrderStatusDelivered:  0,
		models.OrderStatusCancelled:  0,
		models.OrderStatusRefunded:   0,
	}
	for status, count := range stats.ByStatus {
		byStatus[status] = count
	}

	return &OrderStatsResponse{
		ByStatus:            byStatus,
		TodayOrders:         stats.TodayOrders,
		TodayRevenueInCents: stats.TodayRevenueInCents,
	}, nil
}
