package shipping

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"storefront-service/internal/models"
)

// Client is a thin EasyPost REST client covering address verification,
// rate shopping, label purchase, tracking and label refunds.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates an EasyPost client
func NewClient(apiKey, baseURL string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// wire types (EasyPost JSON shapes)

type apiAddress struct {
	Name          string            `json:"name,omitempty"`
	Company       string            `json:"company,omitempty"`
	Street1       string            `json:"street1"`
	Street2       string            `json:"street2,omitempty"`
	City          string            `json:"city"`
	State         string            `json:"state"`
	Zip           string            `json:"zip"`
	Country       string            `json:"country"`
	Phone         string            `json:"phone,omitempty"`
	Email         string            `json:"email,omitempty"`
	Verifications *apiVerifications `json:"verifications,omitempty"`
}

type apiVerifications struct {
	Delivery *apiVerification `json:"delivery,omitempty"`
}

type apiVerification struct {
	Success bool `json:"success"`
	Errors  []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Parcel holds box dimensions in inches and weight in ounces.
type Parcel struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Weight float64 `json:"weight"`
}

type apiRate struct {
	ID           string `json:"id"`
	Carrier      string `json:"carrier"`
	Service      string `json:"service"`
	Rate         string `json:"rate"`
	DeliveryDays *int   `json:"delivery_days"`
	DeliveryDate string `json:"delivery_date"`
}

type apiShipment struct {
	ID           string    `json:"id"`
	Rates        []apiRate `json:"rates"`
	TrackingCode string    `json:"tracking_code"`
	SelectedRate *apiRate  `json:"selected_rate"`
	Tracker      *struct {
		PublicURL string `json:"public_url"`
	} `json:"tracker"`
	PostageLabel *struct {
		LabelURL string `json:"label_url"`
	} `json:"postage_label"`
	RefundStatus string `json:"refund_status"`
}

type apiTracker struct {
	TrackingCode    string `json:"tracking_code"`
	Carrier         string `json:"carrier"`
	Status          string `json:"status"`
	StatusDetail    string `json:"status_detail"`
	EstDeliveryDate string `json:"est_delivery_date"`
	TrackingDetails []struct {
		Datetime         string `json:"datetime"`
		Message          string `json:"message"`
		Status           string `json:"status"`
		TrackingLocation *struct {
			City  string `json:"city"`
			State string `json:"state"`
		} `json:"tracking_location"`
	} `json:"tracking_details"`
}

// public result types

// Rate is a carrier quote with the price normalized to cents.
type Rate struct {
	ID           string `json:"id"`
	Carrier      string `json:"carrier"`
	Service      string `json:"service"`
	RateInCents  int64  `json:"rate_in_cents"`
	DeliveryDays *int   `json:"delivery_days,omitempty"`
	DeliveryDate string `json:"delivery_date,omitempty"`
}

// Shipment references a created-but-unbought shipment and its quotes.
type Shipment struct {
	ID    string `json:"id"`
	Rates []Rate `json:"rates"`
}

// PurchasedLabel is the result of buying a rate.
type PurchasedLabel struct {
	ShipmentID        string `json:"shipment_id"`
	TrackingNumber    string `json:"tracking_number"`
	TrackingURL       string `json:"tracking_url"`
	LabelURL          string `json:"label_url"`
	Carrier           string `json:"carrier"`
	Service           string `json:"service"`
	RateInCents       int64  `json:"rate_in_cents"`
	EstDeliveryDate   string `json:"est_delivery_date,omitempty"`
}

// AddressValidation is the outcome of delivery verification.
type AddressValidation struct {
	Valid           bool            `json:"valid"`
	VerifiedAddress *models.Address `json:"verified_address,omitempty"`
	Errors          []string        `json:"errors,omitempty"`
}

// TrackingEvent is one scan in a shipment's history.
type TrackingEvent struct {
	Datetime string `json:"datetime"`
	Message  string `json:"message"`
	Status   string `json:"status"`
	Location string `json:"location,omitempty"`
}

// TrackingInfo is the current state of a tracked shipment.
type TrackingInfo struct {
	TrackingNumber  string          `json:"tracking_number"`
	Carrier         string          `json:"carrier"`
	Status          string          `json:"status"`
	StatusDetail    string          `json:"status_detail"`
	EstDeliveryDate string          `json:"est_delivery_date,omitempty"`
	Events          []TrackingEvent `json:"events"`
}

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.apiKey, "")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("easypost request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read easypost response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("easypost error (%d): %s", resp.StatusCode, apiErr.Error.Message)
		}
		return fmt.Errorf("easypost error (%d)", resp.StatusCode)
	}

	return json.Unmarshal(raw, out)
}

func toAPIAddress(a models.Address) apiAddress {
	country := a.Country
	if country == "" {
		country = "US"
	}
	return apiAddress{
		Name:    a.FirstName + " " + a.LastName,
		Street1: a.Address1,
		Street2: a.Address2,
		City:    a.City,
		State:   a.State,
		Zip:     a.ZipCode,
		Country: country,
		Phone:   a.Phone,
		Email:   a.Email,
	}
}

func centsFromRate(rate string) int64 {
	f, err := strconv.ParseFloat(rate, 64)
	if err != nil {
		return 0
	}
	return int64(f*100 + 0.5)
}

func fromAPIRate(r apiRate) Rate {
	return Rate{
		ID:           r.ID,
		Carrier:      r.Carrier,
		Service:      r.Service,
		RateInCents:  centsFromRate(r.Rate),
		DeliveryDays: r.DeliveryDays,
		DeliveryDate: r.DeliveryDate,
	}
}

// ValidateAddress runs delivery verification on an address
func (c *Client) ValidateAddress(ctx context.Context, addr models.Address) (*AddressValidation, error) {
	body := map[string]interface{}{
		"address": toAPIAddress(addr),
		"verify":  []string{"delivery"},
	}

	var result apiAddress
	if err := c.post(ctx, "/addresses", body, &result); err != nil {
		return nil, err
	}

	if result.Verifications != nil && result.Verifications.Delivery != nil && result.Verifications.Delivery.Success {
		verified := addr
		if result.Street1 != "" {
			verified.Address1 = result.Street1
		}
		if result.Street2 != "" {
			verified.Address2 = result.Street2
		}
		if result.City != "" {
			verified.City = result.City
		}
		if result.State != "" {
			verified.State = result.State
		}
		if result.Zip != "" {
			verified.ZipCode = result.Zip
		}
		if result.Country != "" {
			verified.Country = result.Country
		}
		return &AddressValidation{Valid: true, VerifiedAddress: &verified}, nil
	}

	errs := []string{"Address could not be verified"}
	if result.Verifications != nil && result.Verifications.Delivery != nil && len(result.Verifications.Delivery.Errors) > 0 {
		errs = errs[:0]
		for _, e := range result.Verifications.Delivery.Errors {
			errs = append(errs, e.Message)
		}
	}
	return &AddressValidation{Valid: false, Errors: errs}, nil
}

// CreateShipment creates a shipment and returns carrier quotes
func (c *Client) CreateShipment(ctx context.Context, from, to models.Address, parcel Parcel) (*Shipment, error) {
	body := map[string]interface{}{
		"shipment": map[string]interface{}{
			"from_address": toAPIAddress(from),
			"to_address":   toAPIAddress(to),
			"parcel":       parcel,
		},
	}

	var result apiShipment
	if err := c.post(ctx, "/shipments", body, &result); err != nil {
		return nil, fmt.Errorf("failed to create shipment: %w", err)
	}

	shipment := &Shipment{ID: result.ID, Rates: make([]Rate, 0, len(result.Rates))}
	for _, r := range result.Rates {
		shipment.Rates = append(shipment.Rates, fromAPIRate(r))
	}
	return shipment, nil
}

// BuyLabel purchases the given rate for a shipment
func (c *Client) BuyLabel(ctx context.Context, shipmentID, rateID string) (*PurchasedLabel, error) {
	body := map[string]interface{}{
		"rate": map[string]string{"id": rateID},
	}

	var result apiShipment
	if err := c.post(ctx, "/shipments/"+shipmentID+"/buy", body, &result); err != nil {
		return nil, fmt.Errorf("failed to buy label: %w", err)
	}

	label := &PurchasedLabel{
		ShipmentID:     result.ID,
		TrackingNumber: result.TrackingCode,
	}
	if result.Tracker != nil {
		label.TrackingURL = result.Tracker.PublicURL
	}
	if result.PostageLabel != nil {
		label.LabelURL = result.PostageLabel.LabelURL
	}
	if result.SelectedRate != nil {
		label.Carrier = result.SelectedRate.Carrier
		label.Service = result.SelectedRate.Service
		label.RateInCents = centsFromRate(result.SelectedRate.Rate)
		label.EstDeliveryDate = result.SelectedRate.DeliveryDate
	}
	return label, nil
}

// CreateTracker fetches tracking state for a shipment
func (c *Client) CreateTracker(ctx context.Context, trackingNumber, carrier string) (*TrackingInfo, error) {
	tracker := map[string]string{"tracking_code": trackingNumber}
	if carrier != "" {
		tracker["carrier"] = carrier
	}

	var result apiTracker
	if err := c.post(ctx, "/trackers", map[string]interface{}{"tracker": tracker}, &result); err != nil {
		return nil, fmt.Errorf("failed to create tracker: %w", err)
	}

	info := &TrackingInfo{
		TrackingNumber:  result.TrackingCode,
		Carrier:         result.Carrier,
		Status:          result.Status,
		StatusDetail:    result.StatusDetail,
		EstDeliveryDate: result.EstDeliveryDate,
	}
	if info.TrackingNumber == "" {
		info.TrackingNumber = trackingNumber
	}
	if info.Carrier == "" {
		info.Carrier = carrier
	}
	for _, d := range result.TrackingDetails {
		ev := TrackingEvent{
			Datetime: d.Datetime,
			Message:  d.Message,
			Status:   d.Status,
		}
		if d.TrackingLocation != nil {
			ev.Location = d.TrackingLocation.City + ", " + d.TrackingLocation.State
		}
		info.Events = append(info.Events, ev)
	}
	return info, nil
}

// RefundLabel requests a refund for an unused label. Success means the
// carrier accepted the request, not that money moved yet.
func (c *Client) RefundLabel(ctx context.Context, shipmentID string) (bool, string, error) {
	var result apiShipment
	if err := c.post(ctx, "/shipments/"+shipmentID+"/refund", map[string]interface{}{}, &result); err != nil {
		return false, "", fmt.Errorf("failed to refund label: %w", err)
	}

	ok := result.RefundStatus == "submitted" || result.RefundStatus == "refunded"
	return ok, fmt.Sprintf("Refund status: %s", result.RefundStatus), nil
}
