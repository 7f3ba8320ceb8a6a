package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/shipping"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeShippingProvider struct {
	rates        []shipping.Rate
	createErr    error
	buyErr       error
	boughtRateID string
	refunds      map[string]bool
}

func (f *fakeShippingProvider) ValidateAddress(ctx context.Context, addr models.Address) (*shipping.AddressValidation, error) {
	return &shipping.AddressValidation{Valid: true, VerifiedAddress: &addr}, nil
}

func (f *fakeShippingProvider) CreateShipment(ctx context.Context, from, to models.Address, parcel shipping.Parcel) (*shipping.Shipment, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &shipping.Shipment{ID: "shp_test", Rates: f.rates}, nil
}

func (f *fakeShippingProvider) BuyLabel(ctx context.Context, shipmentID, rateID string) (*shipping.PurchasedLabel, error) {
	if f.buyErr != nil {
		return nil, f.buyErr
	}
	f.boughtRateID = rateID
	var rate shipping.Rate
	for _, r := range f.rates {
		if r.ID == rateID {
			rate = r
		}
	}
	return &shipping.PurchasedLabel{
		ShipmentID:     shipmentID,
		TrackingNumber: "9400100000000000000000",
		TrackingURL:    "https://track.example.com/9400100000000000000000",
		LabelURL:       "https://labels.example.com/shp_test.png",
		Carrier:        rate.Carrier,
		Service:        rate.Service,
		RateInCents:    rate.RateInCents,
	}, nil
}

func (f *fakeShippingProvider) CreateTracker(ctx context.Context, trackingNumber, carrier string) (*shipping.TrackingInfo, error) {
	return &shipping.TrackingInfo{
		TrackingNumber: trackingNumber,
		Carrier:        carrier,
		Status:         "in_transit",
	}, nil
}

func (f *fakeShippingProvider) RefundLabel(ctx context.Context, shipmentID string) (bool, string, error) {
	if f.refunds == nil {
		f.refunds = make(map[string]bool)
	}
	f.refunds[shipmentID] = true
	return true, "Refund status: submitted", nil
}

func quoteRates() []shipping.Rate {
	return []shipping.Rate{
		{ID: "rate_ups", Carrier: "UPS", Service: "Ground", RateInCents: 899},
		{ID: "rate_usps", Carrier: "USPS", Service: "Priority", RateInCents: 749},
	}
}

func newTestShippingService(st *fakeOrderStore, provider *fakeShippingProvider) *ShippingService {
	orders, _, _, _ := newTestOrderService(st)
	return NewShippingService(provider, st, orders)
}

func TestGetRatesSortedCheapestFirst(t *testing.T) {
	st := newFakeOrderStore()
	svc := newTestShippingService(st, &fakeShippingProvider{rates: quoteRates()})

	rates, err := svc.GetRates(context.Background(), &RatesRequest{
		To:        models.Address{Address1: "1 Main St", City: "Albany", State: "NY", ZipCode: "12207"},
		ItemCount: 2,
	})
	require.NoError(t, err)
	require.Len(t, rates, 2)
	assert.Equal(t, "rate_usps", rates[0].ID)
}

func TestGetLowestRateCarrierFilter(t *testing.T) {
	st := newFakeOrderStore()
	svc := newTestShippingService(st, &fakeShippingProvider{rates: quoteRates()})
	to := models.Address{Address1: "1 Main St", City: "Albany", State: "NY", ZipCode: "12207"}

	lowest, err := svc.GetLowestRate(context.Background(), &LowestRateRequest{To: to, ItemCount: 1, Carriers: []string{"UPS"}})
	require.NoError(t, err)
	assert.Equal(t, "rate_ups", lowest.ID)

	_, err = svc.GetLowestRate(context.Background(), &LowestRateRequest{To: to, ItemCount: 1, Carriers: []string{"DHL"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No shipping rates available")
}

func TestCreateShipmentBuysLabelAndShipsOrder(t *testing.T) {
	st := newFakeOrderStore()
	st.orders[1] = testOrder(1, models.OrderStatusProcessing, models.PaymentStatusPaid)
	st.orders[1].ShippingAddress1 = "1 Main St"
	st.orders[1].ShippingCity = "Albany"
	st.orders[1].ShippingState = "NY"
	st.orders[1].ShippingZipCode = "12207"
	st.items[1] = []models.OrderItem{{OrderID: 1, ProductName: "Omega-3", Quantity: 2, PriceInCents: 2500}}

	provider := &fakeShippingProvider{rates: quoteRates()}
	svc := newTestShippingService(st, provider)

	resp, err := svc.CreateShipment(context.Background(), Actor{UserID: 9, Role: "admin"}, 1, &CreateShipmentRequest{
		PreferredCarrier: "USPS",
		PreferredService: "Priority",
	})
	require.NoError(t, err)

	assert.Equal(t, "rate_usps", provider.boughtRateID)
	assert.Equal(t, "9400100000000000000000", resp.Label.TrackingNumber)
	assert.Equal(t, models.OrderStatusShipped, resp.Order.Status)
	assert.Equal(t, "USPS", resp.Order.ShippingCarrier.String)
	assert.True(t, resp.Order.ShippedAt.Valid)
}

func TestCreateShipmentRejectsNonProcessingOrder(t *testing.T) {
	for _, status := range []string{models.OrderStatusPending, models.OrderStatusShipped, models.OrderStatusCancelled} {
		t.Run(status, func(t *testing.T) {
			st := newFakeOrderStore()
			st.orders[1] = testOrder(1, status, models.PaymentStatusPaid)
			svc := newTestShippingService(st, &fakeShippingProvider{rates: quoteRates()})

			_, err := svc.CreateShipment(context.Background(), Actor{UserID: 9, Role: "admin"}, 1, &CreateShipmentRequest{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), status)
		})
	}
}

func TestCreateShipmentLabelPurchaseFailure(t *testing.T) {
	st := newFakeOrderStore()
	st.orders[1] = testOrder(1, models.OrderStatusProcessing, models.PaymentStatusPaid)
	st.items[1] = []models.OrderItem{{OrderID: 1, ProductName: "Omega-3", Quantity: 1}}

	svc := newTestShippingService(st, &fakeShippingProvider{
		rates:  quoteRates(),
		buyErr: errors.New("carrier account suspended"),
	})

	_, err := svc.CreateShipment(context.Background(), Actor{UserID: 9, Role: "admin"}, 1, &CreateShipmentRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to purchase shipping label")
	assert.Equal(t, models.OrderStatusProcessing, st.orders[1].Status)
}

func TestGetTrackingRequiresTrackingNumber(t *testing.T) {
	st := newFakeOrderStore()
	st.orders[1] = testOrder(1, models.OrderStatusProcessing, models.PaymentStatusPaid)
	svc := newTestShippingService(st, &fakeShippingProvider{})

	_, err := svc.GetTracking(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no tracking number")
}

func TestRenderPackingSlip(t *testing.T) {
	order := testOrder(1, models.OrderStatusProcessing, models.PaymentStatusPaid)
	order.ShippingAddress1 = "1 Main St"
	order.ShippingCity = "Albany"
	order.ShippingState = "NY"
	order.ShippingZipCode = "12207"
	order.CreatedAt = time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)

	items := []models.OrderItem{
		{ProductName: "Omega-3 Fish Oil", Quantity: 2},
		{ProductName: "Vitamin D3", Quantity: 1},
	}

	slip := RenderPackingSlip(order, items)
	assert.Contains(t, slip, "PACKING SLIP - Order OB-0001")
	assert.Contains(t, slip, "Jane Doe")
	assert.Contains(t, slip, "1 Main St")
	assert.Contains(t, slip, "Omega-3 Fish Oil")
	assert.Contains(t, slip, "Vitamin D3")
	assert.Contains(t, slip, "Mar 5, 2026")
	// No prices on a packing slip.
	assert.NotContains(t, slip, "$")
}
