package models

import (
	"time"

	"github.com/paulmach/orb"
)

// Platform identifies the site a listing was collected from.
type Platform string

const (
	PlatformNaver   Platform = "naver"
	PlatformZigbang Platform = "zigbang"
	PlatformDabang  Platform = "dabang"
	PlatformKB      Platform = "kb"
	PlatformHogang  Platform = "hogang"
)

// Platforms lists every supported platform in the order catalogs report them.
var Platforms = []Platform{PlatformNaver, PlatformZigbang, PlatformDabang, PlatformKB, PlatformHogang}

// IsSupported reports whether p is one of the known platforms.
func (p Platform) IsSupported() bool {
	for _, known := range Platforms {
		if p == known {
			return true
		}
	}
	return false
}

// TradeType is the kind of transaction a listing advertises.
type TradeType string

const (
	TradeSale         TradeType = "sale"
	TradeLeaseDeposit TradeType = "lease_deposit"
	TradeMonthlyRent  TradeType = "monthly_rent"
	TradeShortTerm    TradeType = "short_term"
)

// TradeTypes is the closed set of trade types.
var TradeTypes = []TradeType{TradeSale, TradeLeaseDeposit, TradeMonthlyRent, TradeShortTerm}

// RawRecord is a platform record exactly as the collector produced it.
type RawRecord = map[string]any

// Listing is one advertised property from one platform in canonical form.
// Listings are never modified after normalization.
type Listing struct {
	ID           string       `json:"id"`
	Platform     Platform     `json:"platform"`
	PropertyType PropertyType `json:"property_type"`
	TradeType    TradeType    `json:"trade_type"`
	Title        string       `json:"title"`
	Address      string       `json:"address"`
	Price        int          `json:"price"`
	Area         float64      `json:"area"`
	Floor        string       `json:"floor"`
	Description  string       `json:"description"`
	URL          string       `json:"url"`
	Latitude     *float64     `json:"lat"`
	Longitude    *float64     `json:"lon"`
	MonthlyRent  int          `json:"monthly_rent,omitempty"`
	CollectedAt  time.Time    `json:"collected_at"`
	Synthetic    bool         `json:"synthetic,omitempty"`
	Raw          RawRecord    `json:"raw,omitempty"`
}

// Point returns the listing coordinates. ok is false when the listing has none.
func (l *Listing) Point() (p orb.Point, ok bool) {
	if l.Latitude == nil || l.Longitude == nil {
		return orb.Point{}, false
	}
	return orb.Point{*l.Longitude, *l.Latitude}, true
}

// HasCoordinates reports whether both latitude and longitude are set.
func (l *Listing) HasCoordinates() bool {
	_, ok := l.Point()
	return ok
}

// DuplicateCluster groups the ids of listings that describe the same physical unit.
type DuplicateCluster struct {
	CanonicalID string   `json:"canonical_id"`
	MemberIDs   []string `json:"member_ids"`
}

// Size returns the number of listings in the cluster.
func (c DuplicateCluster) Size() int {
	return len(c.MemberIDs)
}
