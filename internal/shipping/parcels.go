package shipping

import "sort"

// Parcel presets for supplement-bottle orders. Dimensions in inches,
// weight in ounces including packaging.
var (
	parcelSingle = Parcel{Length: 6, Width: 4, Height: 4, Weight: 8}
	parcelDouble = Parcel{Length: 8, Width: 5, Height: 4, Weight: 14}
	parcelTriple = Parcel{Length: 8, Width: 6, Height: 5, Weight: 20}
	parcelBulk   = Parcel{Length: 10, Width: 8, Height: 6, Weight: 32}
)

// ParcelForItemCount selects the box preset for an order's item count.
func ParcelForItemCount(itemCount int) Parcel {
	switch {
	case itemCount <= 1:
		return parcelSingle
	case itemCount == 2:
		return parcelDouble
	case itemCount == 3:
		return parcelTriple
	default:
		return parcelBulk
	}
}

// SortRatesByPrice orders rates cheapest first.
func SortRatesByPrice(rates []Rate) {
	sort.SliceStable(rates, func(i, j int) bool {
		return rates[i].RateInCents < rates[j].RateInCents
	})
}

// LowestRate returns the cheapest rate, optionally restricted to an
// allowed-carrier list. Returns nil when nothing matches.
func LowestRate(rates []Rate, carriers []string) *Rate {
	sorted := make([]Rate, len(rates))
	copy(sorted, rates)
	SortRatesByPrice(sorted)

	if len(carriers) == 0 {
		if len(sorted) == 0 {
			return nil
		}
		return &sorted[0]
	}

	allowed := make(map[string]bool, len(carriers))
	for _, c := range carriers {
		allowed[c] = true
	}
	for i := range sorted {
		if allowed[sorted[i].Carrier] {
			return &sorted[i]
		}
	}
	return nil
}

// SelectRate picks a rate by preference: exact carrier+service match first,
// then carrier alone, then the cheapest quote.
func SelectRate(rates []Rate, preferredCarrier, preferredService string) *Rate {
	if len(rates) == 0 {
		return nil
	}

	if preferredCarrier != "" && preferredService != "" {
		for i := range rates {
			if rates[i].Carrier == preferredCarrier && rates[i].Service == preferredService {
				return &rates[i]
			}
		}
	}
	if preferredCarrier != "" {
		for i := range rates {
			if rates[i].Carrier == preferredCarrier {
				return &rates[i]
			}
		}
	}

	return LowestRate(rates, nil)
}
