package models

import "time"

// Event types
const (
	EventTypeOrderStatusChanged = "ORDER_STATUS_CHANGED"
	EventTypeOrderShipped       = "ORDER_SHIPPED"
	EventTypeOrderCancelled     = "ORDER_CANCELLED"
	EventTypeOrderRefunded      = "ORDER_REFUNDED"
	EventTypeReferralCompleted  = "REFERRAL_COMPLETED"
	EventTypeReferralCredited   = "REFERRAL_CREDITED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderStatusChangedEvent published on every admin status transition
type OrderStatusChangedEvent struct {
	BaseEvent
	OrderID     int64  `json:"order_id"`
	OrderNumber string `json:"order_number"`
	FromStatus  string `json:"from_status"`
	ToStatus    string `json:"to_status"`
}

// OrderShippedEvent published when an order moves to shipped; the email
// worker turns this into a shipping notification.
type OrderShippedEvent struct {
	BaseEvent
	OrderID        int64  `json:"order_id"`
	OrderNumber    string `json:"order_number"`
	Email          string `json:"email"`
	FirstName      string `json:"first_name"`
	TrackingNumber string `json:"tracking_number"`
	Carrier        string `json:"carrier"`
}

// OrderCancelledEvent published when an order is cancelled
type OrderCancelledEvent struct {
	BaseEvent
	OrderID     int64  `json:"order_id"`
	OrderNumber string `json:"order_number"`
	Reason      string `json:"reason"`
}

// OrderRefundedEvent published when a refund is processed
type OrderRefundedEvent struct {
	BaseEvent
	OrderID       int64  `json:"order_id"`
	OrderNumber   string `json:"order_number"`
	Email         string `json:"email"`
	FirstName     string `json:"first_name"`
	AmountInCents int64  `json:"amount_in_cents"`
	Reason        string `json:"reason"`
}

// ReferralCompletedEvent published when a referred user makes their first
// purchase
type ReferralCompletedEvent struct {
	BaseEvent
	ReferralID   int64  `json:"referral_id"`
	ReferralCode string `json:"referral_code"`
	ReferrerID   int64  `json:"referrer_id"`
	OrderValue   int64  `json:"order_value"`
}

// ReferralCreditedEvent published when the referrer's credit is issued
type ReferralCreditedEvent struct {
	BaseEvent
	ReferralID   int64 `json:"referral_id"`
	ReferrerID   int64 `json:"referrer_id"`
	CreditAmount int64 `json:"credit_amount"`
}
