package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"storefront-service/internal/apperr"
	"storefront-service/internal/models"
	"storefront-service/internal/shipping"
	"storefront-service/internal/store"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

// warehouseAddress is the fulfillment origin for every shipment.
var warehouseAddress = models.Address{
	FirstName: "OptiBio",
	LastName:  "Supplements",
	Address1:  "131 Heartland Blvd",
	City:      "Edgewood",
	State:     "NY",
	ZipCode:   "11717",
	Country:   "US",
}

type shippingProvider interface {
	ValidateAddress(ctx context.Context, addr models.Address) (*shipping.AddressValidation, error)
	CreateShipment(ctx context.Context, from, to models.Address, parcel shipping.Parcel) (*shipping.Shipment, error)
	BuyLabel(ctx context.Context, shipmentID, rateID string) (*shipping.PurchasedLabel, error)
	CreateTracker(ctx context.Context, trackingNumber, carrier string) (*shipping.TrackingInfo, error)
	RefundLabel(ctx context.Context, shipmentID string) (bool, string, error)
}

type shippingOrderStore interface {
	ListOrders(ctx context.Context, f store.OrderFilter) ([]models.Order, error)
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error)
}

// orderShipper moves an order to shipped with tracking attached.
type orderShipper interface {
	UpdateStatus(ctx context.Context, actor Actor, orderID int64, req *UpdateStatusRequest) (*models.Order, error)
}

// ShippingService wraps the carrier API with order-aware operations.
type ShippingService struct {
	provider shippingProvider
	store    shippingOrderStore
	orders   orderShipper
	logger   *zap.Logger
}

// NewShippingService creates a new shipping service
func NewShippingService(provider shippingProvider, st shippingOrderStore, orders orderShipper) *ShippingService {
	return &ShippingService{
		provider: provider,
		store:    st,
		orders:   orders,
		logger:   util.GetLogger(),
	}
}

// ValidateAddress runs carrier delivery verification on an address
func (s *ShippingService) ValidateAddress(ctx context.Context, addr models.Address) (*shipping.AddressValidation, error) {
	if addr.Address1 == "" || addr.City == "" || addr.State == "" || addr.ZipCode == "" {
		return nil, apperr.BadRequest("Street, city, state and zip code are required")
	}
	return s.provider.ValidateAddress(ctx, addr)
}

// RatesRequest asks for carrier quotes to a destination.
type RatesRequest struct {
	To        models.Address `json:"to" binding:"required"`
	ItemCount int            `json:"item_count" binding:"required"`
}

// GetRates requests carrier quotes, cheapest first
func (s *ShippingService) GetRates(ctx context.Context, req *RatesRequest) ([]shipping.Rate, error) {
	ctx, span := util.StartSpan(ctx, "ShippingService.GetRates")
	defer span.End()

	start := time.Now()
	parcel := shipping.ParcelForItemCount(req.ItemCount)
	shipment, err := s.provider.CreateShipment(ctx, warehouseAddress, req.To, parcel)
	util.ShippingRateRequestLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, apperr.Internal(err, "Failed to fetch shipping rates")
	}

	rates := shipment.Rates
	shipping.SortRatesByPrice(rates)
	return rates, nil
}

// LowestRateRequest asks for the cheapest quote, optionally restricted
// to an allowed-carrier list.
type LowestRateRequest struct {
	To        models.Address `json:"to" binding:"required"`
	ItemCount int            `json:"item_count" binding:"required"`
	Carriers  []string       `json:"carriers,omitempty"`
}

// GetLowestRate returns the cheapest matching quote
func (s *ShippingService) GetLowestRate(ctx context.Context, req *LowestRateRequest) (*shipping.Rate, error) {
	rates, err := s.GetRates(ctx, &RatesRequest{To: req.To, ItemCount: req.ItemCount})
	if err != nil {
		return nil, err
	}

	lowest := shipping.LowestRate(rates, req.Carriers)
	if lowest == nil {
		return nil, apperr.NotFound("No shipping rates available for the requested carriers")
	}
	return lowest, nil
}

// CreateShipmentRequest buys a label for an order.
type CreateShipmentRequest struct {
	PreferredCarrier string `json:"preferred_carrier,omitempty"`
	PreferredService string `json:"preferred_service,omitempty"`
}

// CreateShipmentResponse is the purchased label plus the updated order.
type CreateShipmentResponse struct {
	Label *shipping.PurchasedLabel `json:"label"`
	Order *models.Order            `json:"order"`
}

// CreateShipment quotes, selects and buys a label for a processing
// order, then moves the order to shipped with the tracking number
// attached. The order transition runs through the normal status rules.
func (s *ShippingService) CreateShipment(ctx context.Context, actor Actor, orderID int64, req *CreateShipmentRequest) (*CreateShipmentResponse, error) {
	ctx, span := util.StartSpan(ctx, "ShippingService.CreateShipment")
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return nil, apperr.NotFound("Order not found")
	}
	if order.Status != models.OrderStatusProcessing {
		return nil, apperr.BadRequest("Cannot ship order with status: %s", order.Status)
	}

	items, err := s.store.GetOrderItemsByOrderID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}
	itemCount := 0
	for _, item := range items {
		itemCount += item.Quantity
	}

	parcel := shipping.ParcelForItemCount(itemCount)
	shipment, err := s.provider.CreateShipment(ctx, warehouseAddress, order.ShippingAddress(), parcel)
	if err != nil {
		return nil, apperr.Internal(err, "Failed to create shipment")
	}

	rate := shipping.SelectRate(shipment.Rates, req.PreferredCarrier, req.PreferredService)
	if rate == nil {
		return nil, apperr.NotFound("No shipping rates available for this order")
	}

	label, err := s.provider.BuyLabel(ctx, shipment.ID, rate.ID)
	if err != nil {
		return nil, apperr.Internal(err, "Failed to purchase shipping label")
	}

	util.ShippingLabelsPurchasedTotal.WithLabelValues(label.Carrier).Inc()
	s.logger.Info("Shipping label purchased",
		zap.Int64("order_id", orderID),
		zap.String("carrier", label.Carrier),
		zap.String("tracking_number", label.TrackingNumber),
		zap.Int64("rate_in_cents", label.RateInCents))

	updated, err := s.orders.UpdateStatus(ctx, actor, orderID, &UpdateStatusRequest{
		Status:          models.OrderStatusShipped,
		TrackingNumber:  label.TrackingNumber,
		ShippingCarrier: label.Carrier,
		Note: fmt.Sprintf("Label purchased: %s %s, $%.2f",
			label.Carrier, label.Service, float64(label.RateInCents)/100),
	})
	if err != nil {
		// Label is bought but the order did not move; the admin has to
		// reconcile by hand.
		s.logger.Error("Label purchased but order transition failed",
			zap.Int64("order_id", orderID),
			zap.String("shipment_id", label.ShipmentID),
			zap.Error(err))
		return nil, err
	}

	return &CreateShipmentResponse{Label: label, Order: updated}, nil
}

// GetTracking fetches tracking state for an order's shipment
func (s *ShippingService) GetTracking(ctx context.Context, orderID int64) (*shipping.TrackingInfo, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return nil, apperr.NotFound("Order not found")
	}
	if !order.TrackingNumber.Valid || order.TrackingNumber.String == "" {
		return nil, apperr.NotFound("Order has no tracking number")
	}

	info, err := s.provider.CreateTracker(ctx, order.TrackingNumber.String, order.ShippingCarrier.String)
	if err != nil {
		return nil, apperr.Internal(err, "Failed to fetch tracking information")
	}
	return info, nil
}

// RefundLabelResponse reports a label refund request outcome.
type RefundLabelResponse struct {
	Accepted bool   `json:"accepted"`
	Message  string `json:"message"`
}

// RefundLabel requests a refund for an unused label
func (s *ShippingService) RefundLabel(ctx context.Context, shipmentID string) (*RefundLabelResponse, error) {
	if shipmentID == "" {
		return nil, apperr.BadRequest("Shipment ID is required")
	}

	accepted, message, err := s.provider.RefundLabel(ctx, shipmentID)
	if err != nil {
		return nil, apperr.Internal(err, "Failed to refund shipping label")
	}

	s.logger.Info("Label refund requested",
		zap.String("shipment_id", shipmentID),
		zap.Bool("accepted", accepted))

	return &RefundLabelResponse{Accepted: accepted, Message: message}, nil
}

// GetPendingShipments lists paid processing orders awaiting labels,
// oldest first.
func (s *ShippingService) GetPendingShipments(ctx context.Context, limit int) ([]models.Order, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	orders, err := s.store.ListOrders(ctx, store.OrderFilter{
		Status:    models.OrderStatusProcessing,
		SortBy:    "created_at",
		SortOrder: "asc",
		Limit:     limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pending shipments: %w", err)
	}
	return orders, nil
}

// GetPackingSlip renders a plain-text packing slip for an order
func (s *ShippingService) GetPackingSlip(ctx context.Context, orderID int64) (string, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return "", fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return "", apperr.NotFound("Order not found")
	}

	items, err := s.store.GetOrderItemsByOrderID(ctx, orderID)
	if err != nil {
		return "", fmt.Errorf("failed to get order items: %w", err)
	}

	return RenderPackingSlip(order, items), nil
}

// RenderPackingSlip formats a packing slip as fixed-width text.
func RenderPackingSlip(order *models.Order, items []models.OrderItem) string {
	var b strings.Builder

	b.WriteString("OPTIBIO SUPPLEMENTS\n")
	fmt.Fprintf(&b, "%s, %s, %s %s\n", warehouseAddress.Address1, warehouseAddress.City, warehouseAddress.State, warehouseAddress.ZipCode)
	b.WriteString(strings.Repeat("=", 48) + "\n\n")

	fmt.Fprintf(&b, "PACKING SLIP - Order %s\n", order.OrderNumber)
	fmt.Fprintf(&b, "Date: %s\n\n", order.CreatedAt.Format("Jan 2, 2006"))

	b.WriteString("SHIP TO:\n")
	fmt.Fprintf(&b, "%s %s\n", order.ShippingFirstName, order.ShippingLastName)
	fmt.Fprintf(&b, "%s\n", order.ShippingAddress1)
	if order.ShippingAddress2.Valid && order.ShippingAddress2.String != "" {
		fmt.Fprintf(&b, "%s\n", order.ShippingAddress2.String)
	}
	fmt.Fprintf(&b, "%s, %s %s\n\n", order.ShippingCity, order.ShippingState, order.ShippingZipCode)

	b.WriteString("ITEMS:\n")
	fmt.Fprintf(&b, "%-6s %s\n", "QTY", "PRODUCT")
	b.WriteString(strings.Repeat("-", 48) + "\n")
	for _, item := range items {
		name := item.ProductName
		if item.VariantName.Valid && item.VariantName.String != "" {
			name += " (" + item.VariantName.String + ")"
		}
		fmt.Fprintf(&b, "%-6d %s\n", item.Quantity, name)
		if item.SKU.Valid && item.SKU.String != "" {
			fmt.Fprintf(&b, "%-6s SKU: %s\n", "", item.SKU.String)
		}
	}
	b.WriteString(strings.Repeat("-", 48) + "\n\n")

	if order.CustomerNotes.Valid && order.CustomerNotes.String != "" {
		fmt.Fprintf(&b, "CUSTOMER NOTES:\n%s\n\n", order.CustomerNotes.String)
	}

	b.WriteString("Thank you for your order!\n")
	return b.String()
}
