package models

// ListingFilter narrows a catalog's listings. A nil or empty filter allows everything.
type ListingFilter struct {
	PropertyTypes []PropertyType `json:"property_types"`
	TradeTypes    []TradeType    `json:"trade_types"`
	Platforms     []Platform     `json:"platforms"`
	MinPrice      *int           `json:"min_price"`
	MaxPrice      *int           `json:"max_price"`
	MinArea       *float64       `json:"min_area"`
	MaxArea       *float64       `json:"max_area"`
}

// Allows checks if a listing matches the filter criteria
func (f *ListingFilter) Allows(listing *Listing) bool {
	if f == nil {
		return true
	}

	if len(f.PropertyTypes) > 0 && !contains(f.PropertyTypes, listing.PropertyType) {
		return false
	}
	if len(f.TradeTypes) > 0 && !contains(f.TradeTypes, listing.TradeType) {
		return false
	}
	if len(f.Platforms) > 0 && !contains(f.Platforms, listing.Platform) {
		return false
	}

	// Price 0 is unknown, so a price bound excludes it
	if f.MinPrice != nil || f.MaxPrice != nil {
		if listing.Price == 0 {
			return false
		}
		if f.MinPrice != nil && listing.Price < *f.MinPrice {
			return false
		}
		if f.MaxPrice != nil && listing.Price > *f.MaxPrice {
			return false
		}
	}

	if f.MinArea != nil || f.MaxArea != nil {
		if listing.Area == 0 {
			return false
		}
		if f.MinArea != nil && listing.Area < *f.MinArea {
			return false
		}
		if f.MaxArea != nil && listing.Area > *f.MaxArea {
			return false
		}
	}

	return true
}

// Apply returns the listings the filter allows, preserving order.
func (f *ListingFilter) Apply(listings []Listing) []Listing {
	out := make([]Listing, 0, len(listings))
	for i := range listings {
		if f.Allows(&listings[i]) {
			out = append(out, listings[i])
		}
	}
	return out
}

func contains[T comparable](set []T, v T) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
