package models

import (
	"database/sql"
	"time"
)

// User is the minimal account record needed for admin role checks and
// customer lookups.
type User struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	Role      string    `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// User roles
const (
	RoleUser  = "user"
	RoleStaff = "staff"
	RoleAdmin = "admin"
	RoleOwner = "owner"
)

// HasAdminAccess reports whether a role may use the admin endpoints.
func HasAdminAccess(role string) bool {
	return role == RoleStaff || role == RoleAdmin || role == RoleOwner
}

// Product carries the fields needed for order item snapshots and packing slips.
type Product struct {
	ID            int64     `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	Slug          string    `db:"slug" json:"slug"`
	SKU           string    `db:"sku" json:"sku"`
	PriceInCents  int64     `db:"price_in_cents" json:"price_in_cents"`
	StockQuantity int       `db:"stock_quantity" json:"stock_quantity"`
	IsActive      bool      `db:"is_active" json:"is_active"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Address is a shipping or billing address snapshot.
type Address struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Address1  string `json:"address1"`
	Address2  string `json:"address2,omitempty"`
	City      string `json:"city"`
	State     string `json:"state"`
	ZipCode   string `json:"zip_code"`
	Country   string `json:"country"`
	Phone     string `json:"phone,omitempty"`
	Email     string `json:"email,omitempty"`
}

// Order is a customer purchase with monetary totals in integer cents and
// address snapshots taken at checkout.
type Order struct {
	ID          int64          `db:"id" json:"id"`
	OrderNumber string         `db:"order_number" json:"order_number"`
	UserID      sql.NullInt64  `db:"user_id" json:"user_id,omitempty"`
	Email       string         `db:"email" json:"email"`
	Status      string         `db:"status" json:"status"`

	SubtotalInCents int64 `db:"subtotal_in_cents" json:"subtotal_in_cents"`
	ShippingInCents int64 `db:"shipping_in_cents" json:"shipping_in_cents"`
	TaxInCents      int64 `db:"tax_in_cents" json:"tax_in_cents"`
	DiscountInCents int64 `db:"discount_in_cents" json:"discount_in_cents"`
	TotalInCents    int64 `db:"total_in_cents" json:"total_in_cents"`

	ShippingFirstName string         `db:"shipping_first_name" json:"shipping_first_name"`
	ShippingLastName  string         `db:"shipping_last_name" json:"shipping_last_name"`
	ShippingAddress1  string         `db:"shipping_address1" json:"shipping_address1"`
	ShippingAddress2  sql.NullString `db:"shipping_address2" json:"shipping_address2,omitempty"`
	ShippingCity      string         `db:"shipping_city" json:"shipping_city"`
	ShippingState     string         `db:"shipping_state" json:"shipping_state"`
	ShippingZipCode   string         `db:"shipping_zip_code" json:"shipping_zip_code"`
	ShippingCountry   string         `db:"shipping_country" json:"shipping_country"`
	ShippingPhone     sql.NullString `db:"shipping_phone" json:"shipping_phone,omitempty"`

	BillingFirstName string         `db:"billing_first_name" json:"billing_first_name"`
	BillingLastName  string         `db:"billing_last_name" json:"billing_last_name"`
	BillingAddress1  string         `db:"billing_address1" json:"billing_address1"`
	BillingAddress2  sql.NullString `db:"billing_address2" json:"billing_address2,omitempty"`
	BillingCity      string         `db:"billing_city" json:"billing_city"`
	BillingState     string         `db:"billing_state" json:"billing_state"`
	BillingZipCode   string         `db:"billing_zip_code" json:"billing_zip_code"`
	BillingCountry   string         `db:"billing_country" json:"billing_country"`

	PaymentMethod sql.NullString `db:"payment_method" json:"payment_method,omitempty"`
	PaymentStatus string         `db:"payment_status" json:"payment_status"`
	TransactionID sql.NullString `db:"transaction_id" json:"transaction_id,omitempty"`

	TrackingNumber  sql.NullString `db:"tracking_number" json:"tracking_number,omitempty"`
	ShippingCarrier sql.NullString `db:"shipping_carrier" json:"shipping_carrier,omitempty"`

	CustomerNotes sql.NullString `db:"customer_notes" json:"customer_notes,omitempty"`
	AdminNotes    sql.NullString `db:"admin_notes" json:"admin_notes,omitempty"`

	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updated_at"`
	PaidAt      sql.NullTime `db:"paid_at" json:"paid_at,omitempty"`
	ShippedAt   sql.NullTime `db:"shipped_at" json:"shipped_at,omitempty"`
	DeliveredAt sql.NullTime `db:"delivered_at" json:"delivered_at,omitempty"`
}

// ShippingAddress returns the order's shipping snapshot as an Address.
func (o *Order) ShippingAddress() Address {
	return Address{
		FirstName: o.ShippingFirstName,
		LastName:  o.ShippingLastName,
		Address1:  o.ShippingAddress1,
		Address2:  o.ShippingAddress2.String,
		City:      o.ShippingCity,
		State:     o.ShippingState,
		ZipCode:   o.ShippingZipCode,
		Country:   o.ShippingCountry,
		Phone:     o.ShippingPhone.String,
		Email:     o.Email,
	}
}

// Order statuses
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
	OrderStatusRefunded   = "refunded"
)

// Payment statuses
const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusFailed   = "failed"
	PaymentStatusRefunded = "refunded"
)

// OrderItem snapshots product name, variant, SKU and price at time of
// purchase. Immutable after creation.
type OrderItem struct {
	ID           int64          `db:"id" json:"id"`
	OrderID      int64          `db:"order_id" json:"order_id"`
	ProductID    int64          `db:"product_id" json:"product_id"`
	VariantID    sql.NullInt64  `db:"variant_id" json:"variant_id,omitempty"`
	ProductName  string         `db:"product_name" json:"product_name"`
	VariantName  sql.NullString `db:"variant_name" json:"variant_name,omitempty"`
	SKU          sql.NullString `db:"sku" json:"sku,omitempty"`
	Quantity     int            `db:"quantity" json:"quantity"`
	PriceInCents int64          `db:"price_in_cents" json:"price_in_cents"`
	TotalInCents int64          `db:"total_in_cents" json:"total_in_cents"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
}

// DiscountCode is a redeemable coupon. Codes are stored uppercase.
type DiscountCode struct {
	ID                 int64          `db:"id" json:"id"`
	Code               string         `db:"code" json:"code"`
	Description        sql.NullString `db:"description" json:"description,omitempty"`
	DiscountType       string         `db:"discount_type" json:"discount_type"`
	DiscountValue      int64          `db:"discount_value" json:"discount_value"`
	MinPurchaseInCents int64          `db:"min_purchase_in_cents" json:"min_purchase_in_cents"`
	MaxUsesTotal       sql.NullInt64  `db:"max_uses_total" json:"max_uses_total,omitempty"`
	MaxUsesPerCustomer int            `db:"max_uses_per_customer" json:"max_uses_per_customer"`
	UsedCount          int            `db:"used_count" json:"used_count"`
	IsActive           bool           `db:"is_active" json:"is_active"`
	StartsAt           sql.NullTime   `db:"starts_at" json:"starts_at,omitempty"`
	ExpiresAt          sql.NullTime   `db:"expires_at" json:"expires_at,omitempty"`
	CreatedAt          time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at" json:"updated_at"`
}

// Discount types
const (
	DiscountTypePercentage = "percentage"
	DiscountTypeFixed      = "fixed"
)

// Derived discount display statuses
const (
	DiscountStatusInactive  = "Inactive"
	DiscountStatusExpired   = "Expired"
	DiscountStatusScheduled = "Scheduled"
	DiscountStatusActive    = "Active"
)

// Referral tracks one referrer's code and its progression.
type Referral struct {
	ID             int64          `db:"id" json:"id"`
	ReferrerID     int64          `db:"referrer_id" json:"referrer_id"`
	ReferralCode   string         `db:"referral_code" json:"referral_code"`
	ReferredUserID sql.NullInt64  `db:"referred_user_id" json:"referred_user_id,omitempty"`
	ReferredEmail  sql.NullString `db:"referred_email" json:"referred_email,omitempty"`
	Status         string         `db:"status" json:"status"`
	OrderValue     sql.NullInt64  `db:"order_value" json:"order_value,omitempty"`
	CreditAmount   int64          `db:"credit_amount" json:"credit_amount"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	CompletedAt    sql.NullTime   `db:"completed_at" json:"completed_at,omitempty"`
	CreditedAt     sql.NullTime   `db:"credited_at" json:"credited_at,omitempty"`
}

// Referral statuses
const (
	ReferralStatusPending   = "pending"
	ReferralStatusCompleted = "completed"
	ReferralStatusCredited  = "credited"
)

// ReferralCredit is a monetary credit owed to a user. Credits are consumed
// oldest-first.
type ReferralCredit struct {
	ID         int64         `db:"id" json:"id"`
	UserID     int64         `db:"user_id" json:"user_id"`
	Amount     int64         `db:"amount" json:"amount"`
	Source     string        `db:"source" json:"source"`
	ReferralID sql.NullInt64 `db:"referral_id" json:"referral_id,omitempty"`
	IsUsed     bool          `db:"is_used" json:"is_used"`
	UsedAt     sql.NullTime  `db:"used_at" json:"used_at,omitempty"`
	OrderID    sql.NullInt64 `db:"order_id" json:"order_id,omitempty"`
	ExpiresAt  sql.NullTime  `db:"expires_at" json:"expires_at,omitempty"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
}

// Subscription is a recurring product delivery tied to a Stripe subscription.
type Subscription struct {
	ID                   int64          `db:"id" json:"id"`
	UserID               int64          `db:"user_id" json:"user_id"`
	PlanID               int64          `db:"plan_id" json:"plan_id"`
	ProductID            int64          `db:"product_id" json:"product_id"`
	VariantID            sql.NullInt64  `db:"variant_id" json:"variant_id,omitempty"`
	Status               string         `db:"status" json:"status"`
	Quantity             int            `db:"quantity" json:"quantity"`
	PriceInCents         int64          `db:"price_in_cents" json:"price_in_cents"`
	IntervalDays         int            `db:"interval_days" json:"interval_days"`
	StripeSubscriptionID sql.NullString `db:"stripe_subscription_id" json:"stripe_subscription_id,omitempty"`
	StripeCustomerID     sql.NullString `db:"stripe_customer_id" json:"stripe_customer_id,omitempty"`
	StripePriceID        sql.NullString `db:"stripe_price_id" json:"stripe_price_id,omitempty"`
	NextBillingDate      time.Time      `db:"next_billing_date" json:"next_billing_date"`
	LastBillingDate      sql.NullTime   `db:"last_billing_date" json:"last_billing_date,omitempty"`
	CancelledAt          sql.NullTime   `db:"cancelled_at" json:"cancelled_at,omitempty"`
	PausedAt             sql.NullTime   `db:"paused_at" json:"paused_at,omitempty"`
	CreatedAt            time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time      `db:"updated_at" json:"updated_at"`
}

// Subscription statuses
const (
	SubscriptionStatusActive    = "active"
	SubscriptionStatusPaused    = "paused"
	SubscriptionStatusCancelled = "cancelled"
	SubscriptionStatusExpired   = "expired"
)

// AuditLog is an immutable record of an admin action.
type AuditLog struct {
	ID                int64          `db:"id" json:"id"`
	UserID            int64          `db:"user_id" json:"user_id"`
	UserName          sql.NullString `db:"user_name" json:"user_name,omitempty"`
	UserRole          string         `db:"user_role" json:"user_role"`
	Action            string         `db:"action" json:"action"`
	ResourceType      string         `db:"resource_type" json:"resource_type"`
	ResourceID        sql.NullInt64  `db:"resource_id" json:"resource_id,omitempty"`
	ResourceName      sql.NullString `db:"resource_name" json:"resource_name,omitempty"`
	PreviousValue     sql.NullString `db:"previous_value" json:"previous_value,omitempty"`
	NewValue          sql.NullString `db:"new_value" json:"new_value,omitempty"`
	ChangeDescription string         `db:"change_description" json:"change_description"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
}

// Audit actions
const (
	AuditActionCreate = "create"
	AuditActionUpdate = "update"
	AuditActionDelete = "delete"
	AuditActionRefund = "refund"
	AuditActionCancel = "cancel"
	AuditActionShip   = "ship"
)

// Audit resource types
const (
	AuditResourceOrder        = "order"
	AuditResourceDiscount     = "discount"
	AuditResourceSubscription = "subscription"
	AuditResourceShipment     = "shipment"
)
