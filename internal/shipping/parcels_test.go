package shipping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParcelForItemCount(t *testing.T) {
	tests := []struct {
		items  int
		parcel Parcel
	}{
		{0, parcelSingle},
		{1, parcelSingle},
		{2, parcelDouble},
		{3, parcelTriple},
		{4, parcelBulk},
		{12, parcelBulk},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.parcel, ParcelForItemCount(tc.items), "items=%d", tc.items)
	}
}

func sampleRates() []Rate {
	return []Rate{
		{ID: "rate_ups", Carrier: "UPS", Service: "Ground", RateInCents: 899},
		{ID: "rate_usps_pri", Carrier: "USPS", Service: "Priority", RateInCents: 749},
		{ID: "rate_fedex", Carrier: "FedEx", Service: "Home Delivery", RateInCents: 950},
		{ID: "rate_usps_first", Carrier: "USPS", Service: "First", RateInCents: 512},
	}
}

func TestSortRatesByPrice(t *testing.T) {
	rates := sampleRates()
	SortRatesByPrice(rates)

	assert.Equal(t, "rate_usps_first", rates[0].ID)
	assert.Equal(t, "rate_fedex", rates[3].ID)
}

func TestLowestRate(t *testing.T) {
	rates := sampleRates()

	lowest := LowestRate(rates, nil)
	require.NotNil(t, lowest)
	assert.Equal(t, "rate_usps_first", lowest.ID)

	ups := LowestRate(rates, []string{"UPS", "FedEx"})
	require.NotNil(t, ups)
	assert.Equal(t, "rate_ups", ups.ID)

	assert.Nil(t, LowestRate(rates, []string{"DHL"}))
	assert.Nil(t, LowestRate(nil, nil))
}

func TestSelectRatePreferenceOrder(t *testing.T) {
	rates := sampleRates()

	exact := SelectRate(rates, "USPS", "Priority")
	require.NotNil(t, exact)
	assert.Equal(t, "rate_usps_pri", exact.ID)

	// Service mismatch falls back to any rate from the carrier.
	carrierOnly := SelectRate(rates, "UPS", "Next Day Air")
	require.NotNil(t, carrierOnly)
	assert.Equal(t, "rate_ups", carrierOnly.ID)

	// Unknown carrier falls back to the cheapest quote.
	cheapest := SelectRate(rates, "DHL", "Express")
	require.NotNil(t, cheapest)
	assert.Equal(t, "rate_usps_first", cheapest.ID)

	assert.Nil(t, SelectRate(nil, "USPS", "Priority"))
}

func TestCentsFromRate(t *testing.T) {
	assert.Equal(t, int64(749), centsFromRate("7.49"))
	assert.Equal(t, int64(500), centsFromRate("5.00"))
	assert.Equal(t, int64(1010), centsFromRate("10.1"))
	assert.Equal(t, int64(0), centsFromRate("not-a-number"))
}
