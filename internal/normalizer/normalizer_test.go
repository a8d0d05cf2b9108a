package normalizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estatemerge/internal/models"
)

func newTestNormalizer(workers int) *Normalizer {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return New(workers, logger)
}

func TestNormalize_Naver(t *testing.T) {
	n := newTestNormalizer(1)

	raw := models.RawRecord{
		"article_id":   "2412345678",
		"type":         "아파트",
		"trade_type":   "매매",
		"title":        "강남파크뷰",
		"address":      "서울 강남구 삼성동 1",
		"price":        "5억",
		"area":         "84.5㎡",
		"floor":        "12/25",
		"lat":          37.5145,
		"lon":          127.0565,
		"description":  "남향, 역세권",
		"naver_link":   "https://new.land.naver.com/articles/2412345678",
		"collected_at": "2024-01-15T10:30:00",
	}

	listing, warnings, err := n.Normalize(raw, models.PlatformNaver)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Equal(t, "NAVER_2412345678", listing.ID)
	assert.Equal(t, models.PlatformNaver, listing.Platform)
	assert.Equal(t, models.TypeApartment, listing.PropertyType)
	assert.Equal(t, models.TradeSale, listing.TradeType)
	assert.Equal(t, 50000, listing.Price)
	assert.Equal(t, 84.5, listing.Area)
	assert.Equal(t, "12/25", listing.Floor)
	assert.Equal(t, "https://new.land.naver.com/articles/2412345678", listing.URL)
	require.True(t, listing.HasCoordinates())
	assert.Equal(t, 37.5145, *listing.Latitude)
	assert.Equal(t, 127.0565, *listing.Longitude)
	assert.Equal(t, 2024, listing.CollectedAt.Year())
	assert.Equal(t, "2412345678", listing.Raw["article_id"])
}

func TestNormalize_ZigbangMonthlyRent(t *testing.T) {
	n := newTestNormalizer(1)

	raw := models.RawRecord{
		"id":           "ZIGBANG_998",
		"type":         "원룸",
		"trade_type":   "월세",
		"title":        "삼성역 원룸",
		"price":        "1,000",
		"monthly_rent": float64(65),
		"area":         "7평",
		"lat":          "37.5088",
		"lng":          "127.0631",
	}

	listing, warnings, err := n.Normalize(raw, models.PlatformZigbang)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Equal(t, "ZIGBANG_998", listing.ID, "existing platform prefix is kept")
	assert.Equal(t, models.TypeOneRoom, listing.PropertyType)
	assert.Equal(t, models.TradeMonthlyRent, listing.TradeType)
	assert.Equal(t, 1000, listing.Price)
	assert.Equal(t, 65, listing.MonthlyRent)
	assert.InDelta(t, 23.14, listing.Area, 0.01)
	assert.True(t, listing.HasCoordinates())
}

func TestNormalize_Rejection(t *testing.T) {
	n := newTestNormalizer(1)

	_, _, err := n.Normalize(models.RawRecord{"id": "1", "title": "  ", "price": "1억"}, models.PlatformDabang)
	assert.ErrorIs(t, err, ErrInvalidRecord)

	_, _, err = n.Normalize(models.RawRecord{"id": "1", "address": "서울"}, models.PlatformDabang)
	assert.NoError(t, err, "address alone is enough")
}

func TestNormalize_UnsupportedPlatform(t *testing.T) {
	n := newTestNormalizer(1)
	_, _, err := n.Normalize(models.RawRecord{"title": "x"}, models.Platform("peterpan"))
	assert.ErrorIs(t, err, ErrUnsupportedPlatform)
}

func TestNormalize_ParseWarnings(t *testing.T) {
	n := newTestNormalizer(1)

	raw := models.RawRecord{
		"id":         "77",
		"title":      "역삼 빌라",
		"type":       "요트",
		"trade_type": "경매",
		"price":      "가격문의",
		"area":       "넓음",
		"lat":        37.5,
	}

	listing, warnings, err := n.Normalize(raw, models.PlatformKB)
	require.NoError(t, err)

	fields := make(map[Field]bool)
	for _, w := range warnings {
		fields[w.Field] = true
		assert.Equal(t, "KB_77", w.RecordID)
	}
	assert.True(t, fields[FieldPrice])
	assert.True(t, fields[FieldArea])
	assert.True(t, fields[FieldType])
	assert.True(t, fields[FieldTradeType])
	assert.True(t, fields[FieldLatitude])

	assert.Equal(t, 0, listing.Price)
	assert.Equal(t, 0.0, listing.Area)
	assert.Equal(t, models.TypeOther, listing.PropertyType)
	assert.Equal(t, models.TradeSale, listing.TradeType)
	assert.False(t, listing.HasCoordinates(), "partial coordinates are dropped")

	var pe *ParseError
	assert.True(t, errors.As(warnings[0], &pe))
}

func TestNormalize_OversizedPriceBecomesWarning(t *testing.T) {
	n := newTestNormalizer(1)

	for _, price := range []any{json.Number("1e20"), "1e20", "922337203685478억"} {
		listing, warnings, err := n.Normalize(models.RawRecord{"id": "9", "title": "삼성 타워", "price": price}, models.PlatformNaver)
		require.NoError(t, err)

		assert.Equal(t, 0, listing.Price, "%v", price)
		require.Len(t, warnings, 1, "%v", price)
		assert.Equal(t, FieldPrice, warnings[0].Field)
	}
}

func TestNormalize_Coordinates(t *testing.T) {
	n := newTestNormalizer(1)

	tests := []struct {
		name   string
		lat    any
		lng    any
		expect bool
	}{
		{"both present", 37.5, 127.0, true},
		{"zero pair is absent", 0.0, 0.0, false},
		{"blank strings", "", "", false},
		{"out of range", 137.5, 127.0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := models.RawRecord{"id": "1", "title": "t", "lat": tt.lat, "lng": tt.lng}
			listing, _, err := n.Normalize(raw, models.PlatformDabang)
			require.NoError(t, err)
			assert.Equal(t, tt.expect, listing.HasCoordinates())
		})
	}
}

func TestNormalize_GeneratedID(t *testing.T) {
	n := newTestNormalizer(1)
	raw := models.RawRecord{"title": "무번호 매물", "price": "3억"}

	first, _, err := n.Normalize(raw, models.PlatformHogang)
	require.NoError(t, err)
	second, _, err := n.Normalize(raw, models.PlatformHogang)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "generated ids are stable")
	assert.Contains(t, first.ID, "HOGANG_")
}

func TestNormalizeBatch_PreservesOrder(t *testing.T) {
	n := newTestNormalizer(4)

	var records []models.RawRecord
	for i := 0; i < 50; i++ {
		records = append(records, models.RawRecord{"id": fmt.Sprint(i), "title": fmt.Sprintf("매물 %d", i)})
	}
	records = append(records, models.RawRecord{"id": "bad"})

	result := n.NormalizeBatch(context.Background(), models.PlatformZigbang, records)

	require.Len(t, result.Listings, 50)
	assert.Equal(t, 1, result.Rejected)
	assert.Equal(t, 0, result.Unprocessed)
	for i, l := range result.Listings {
		assert.Equal(t, fmt.Sprintf("ZIGBANG_%d", i), l.ID)
	}
}

func TestNormalizeBatch_Cancelled(t *testing.T) {
	n := newTestNormalizer(2)
	records := []models.RawRecord{{"title": "a"}, {"title": "b"}, {"title": "c"}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := n.NormalizeBatch(ctx, models.PlatformNaver, records)
	assert.Empty(t, result.Listings)
	assert.Equal(t, 3, result.Unprocessed)
}

func TestNormalizeBatch_Empty(t *testing.T) {
	n := newTestNormalizer(2)
	result := n.NormalizeBatch(context.Background(), models.PlatformNaver, nil)
	assert.Empty(t, result.Listings)
	assert.Zero(t, result.Rejected)
}
