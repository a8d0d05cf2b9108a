package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr[T any](v T) *T { return &v }

func TestParsePropertyType(t *testing.T) {
	tests := []struct {
		label    string
		expected PropertyType
		ok       bool
	}{
		{"아파트", TypeApartment, true},
		{" 오피스텔 ", TypeOfficetel, true},
		{"단독/다가구", TypeDetached, true},
		{"one-room", TypeOneRoom, true},
		{"apartment", TypeApartment, true},
		{"knowledge_center", TypeKnowledgeCenter, true},
		{"", TypeOther, true},
		{"우주정거장", TypeOther, false},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, ok := ParsePropertyType(tt.label)
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestParseTradeType(t *testing.T) {
	tests := []struct {
		label    string
		expected TradeType
		ok       bool
	}{
		{"매매", TradeSale, true},
		{"전세", TradeLeaseDeposit, true},
		{"월세", TradeMonthlyRent, true},
		{"단기", TradeShortTerm, true},
		{"", TradeSale, true},
		{"경매", TradeSale, false},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, ok := ParseTradeType(tt.label)
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestPlatformIsSupported(t *testing.T) {
	assert.True(t, PlatformNaver.IsSupported())
	assert.True(t, PlatformHogang.IsSupported())
	assert.False(t, Platform("craigslist").IsSupported())
}

func TestListingPoint(t *testing.T) {
	l := Listing{Latitude: ptr(37.5), Longitude: ptr(127.05)}
	p, ok := l.Point()
	assert.True(t, ok)
	assert.Equal(t, 127.05, p.Lon())
	assert.Equal(t, 37.5, p.Lat())

	l.Longitude = nil
	assert.False(t, l.HasCoordinates())
}

func TestListingFilter_Allows(t *testing.T) {
	listing := &Listing{
		Platform:     PlatformNaver,
		PropertyType: TypeApartment,
		TradeType:    TradeSale,
		Price:        50000,
		Area:         84.5,
	}

	tests := []struct {
		name     string
		filter   *ListingFilter
		expected bool
	}{
		{"nil filter", nil, true},
		{"empty filter", &ListingFilter{}, true},
		{"type match", &ListingFilter{PropertyTypes: []PropertyType{TypeApartment}}, true},
		{"type mismatch", &ListingFilter{PropertyTypes: []PropertyType{TypeVilla}}, false},
		{"trade mismatch", &ListingFilter{TradeTypes: []TradeType{TradeMonthlyRent}}, false},
		{"platform mismatch", &ListingFilter{Platforms: []Platform{PlatformKB}}, false},
		{"price in range", &ListingFilter{MinPrice: ptr(30000), MaxPrice: ptr(60000)}, true},
		{"price below min", &ListingFilter{MinPrice: ptr(60000)}, false},
		{"price above max", &ListingFilter{MaxPrice: ptr(40000)}, false},
		{"area in range", &ListingFilter{MinArea: ptr(60.0), MaxArea: ptr(85.0)}, true},
		{"area above max", &ListingFilter{MaxArea: ptr(60.0)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.filter.Allows(listing))
		})
	}
}

func TestListingFilter_UnknownValues(t *testing.T) {
	unknown := &Listing{PropertyType: TypeApartment}
	f := &ListingFilter{MaxPrice: ptr(100000)}
	assert.False(t, f.Allows(unknown), "price bound should exclude unknown price")

	f = &ListingFilter{MinArea: ptr(10.0)}
	assert.False(t, f.Allows(unknown), "area bound should exclude unknown area")
}

func TestListingFilter_Apply(t *testing.T) {
	listings := []Listing{
		{ID: "NAVER_1", Platform: PlatformNaver},
		{ID: "ZIGBANG_1", Platform: PlatformZigbang},
		{ID: "NAVER_2", Platform: PlatformNaver},
	}
	f := &ListingFilter{Platforms: []Platform{PlatformNaver}}

	got := f.Apply(listings)
	assert.Len(t, got, 2)
	assert.Equal(t, "NAVER_1", got[0].ID)
	assert.Equal(t, "NAVER_2", got[1].ID)
}
