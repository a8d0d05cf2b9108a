package stats

import (
	"math"
	"os"
	"sort"

	"github.com/sirupsen/logrus"

	"estatemerge/internal/models"
)

// qualityPoints is the number of tracked fields per listing; coordinates count twice.
const qualityPoints = 8

type bucket struct {
	label string
	upper float64 // inclusive; the last bucket is unbounded
}

var priceBuckets = []bucket{
	{"1억 이하", 10000},
	{"1억~3억", 30000},
	{"3억~5억", 50000},
	{"5억~10억", 100000},
	{"10억 초과", math.Inf(1)},
}

var areaBuckets = []bucket{
	{"40㎡ 이하", 40},
	{"40~60㎡", 60},
	{"60~85㎡", 85},
	{"85~120㎡", 120},
	{"120㎡ 초과", math.Inf(1)},
}

// Aggregator computes catalog statistics.
type Aggregator struct {
	logger *logrus.Logger
}

// NewAggregator creates an aggregator. A nil logger logs JSON to stdout.
func NewAggregator(logger *logrus.Logger) *Aggregator {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	return &Aggregator{logger: logger}
}

// Aggregate summarises deduplicated listings. platformStats holds the raw
// per-platform contribution counts and is reported unchanged as by_platform.
func (a *Aggregator) Aggregate(listings []models.Listing, platformStats map[models.Platform]int) models.Statistics {
	stats := models.Statistics{
		ByType:       make(map[models.PropertyType]int),
		ByTrade:      make(map[models.TradeType]int),
		ByPlatform:   make(map[models.Platform]int, len(platformStats)),
		ByPriceRange: emptyBuckets(priceBuckets),
		ByAreaRange:  emptyBuckets(areaBuckets),
		DataQuality:  make(map[models.Platform]float64),
	}
	for p, n := range platformStats {
		stats.ByPlatform[p] = n
	}

	var prices []int
	var areas []float64
	qualityTotal := make(map[models.Platform]int)
	qualityCount := make(map[models.Platform]int)

	for i := range listings {
		l := &listings[i]
		stats.ByType[l.PropertyType]++
		stats.ByTrade[l.TradeType]++

		// 0 means unknown, so it is left out of buckets and figures
		if l.Price > 0 {
			prices = append(prices, l.Price)
			stats.ByPriceRange[bucketFor(priceBuckets, float64(l.Price))]++
		}
		if l.Area > 0 {
			areas = append(areas, l.Area)
			stats.ByAreaRange[bucketFor(areaBuckets, l.Area)]++
		}

		qualityTotal[l.Platform] += QualityPoints(l)
		qualityCount[l.Platform]++
	}

	stats.PriceStats = priceStats(prices)
	stats.AreaStats = areaStats(areas)

	for p, count := range qualityCount {
		stats.DataQuality[p] = round2(float64(qualityTotal[p]) / float64(count*qualityPoints) * 100)
	}

	a.logger.WithFields(logrus.Fields{
		"listings":   len(listings),
		"with_price": len(prices),
		"with_area":  len(areas),
		"platforms":  len(qualityCount),
	}).Debug("Aggregated catalog statistics")

	return stats
}

// QualityPoints counts the populated tracked fields of a listing, out of eight.
func QualityPoints(l *models.Listing) int {
	points := 0
	for _, present := range []bool{
		l.Title != "",
		l.Address != "",
		l.Price > 0,
		l.Area > 0,
		l.Description != "",
		l.URL != "",
	} {
		if present {
			points++
		}
	}
	if l.HasCoordinates() {
		points += 2
	}
	return points
}

func priceStats(values []int) *models.PriceStats {
	if len(values) == 0 {
		return nil
	}
	sorted := append([]int(nil), values...)
	sort.Ints(sorted)

	total := 0
	for _, v := range sorted {
		total += v
	}
	return &models.PriceStats{
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Avg:    round2(float64(total) / float64(len(sorted))),
		Median: sorted[len(sorted)/2], // upper middle for an even count
	}
}

func areaStats(values []float64) *models.AreaStats {
	if len(values) == 0 {
		return nil
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var total float64
	for _, v := range sorted {
		total += v
	}
	return &models.AreaStats{
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Avg:    round2(total / float64(len(sorted))),
		Median: sorted[len(sorted)/2],
	}
}

func emptyBuckets(buckets []bucket) map[string]int {
	out := make(map[string]int, len(buckets))
	for _, b := range buckets {
		out[b.label] = 0
	}
	return out
}

func bucketFor(buckets []bucket, v float64) string {
	for _, b := range buckets {
		if v <= b.upper {
			return b.label
		}
	}
	return buckets[len(buckets)-1].label
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
