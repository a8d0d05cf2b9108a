package models

import "time"

// Catalog is the single output of an integration run.
type Catalog struct {
	RunID              string             `json:"run_id"`
	Area               string             `json:"area"`
	IntegrationTime    time.Time          `json:"integration_time"`
	TotalProperties    int                `json:"total_properties"`
	PlatformStats      map[Platform]int   `json:"platform_stats"`
	Statistics         Statistics         `json:"statistics"`
	Properties         []Listing          `json:"properties"`
	Duplicates         []DuplicateCluster `json:"duplicates"`
	RejectedRecords    map[Platform]int   `json:"rejected_records"`
	ParseErrors        int                `json:"parse_errors"`
	Warnings           []string           `json:"warnings"`
	Truncated          bool               `json:"truncated"`
	UnprocessedRecords int                `json:"unprocessed_records"`
	SyntheticSources   []Platform         `json:"synthetic_sources,omitempty"`
}

// Statistics summarises the deduplicated listings of a catalog.
type Statistics struct {
	ByType       map[PropertyType]int `json:"by_type"`
	ByTrade      map[TradeType]int    `json:"by_trade"`
	ByPlatform   map[Platform]int     `json:"by_platform"`
	ByPriceRange map[string]int       `json:"by_price_range"`
	ByAreaRange  map[string]int       `json:"by_area_range"`
	PriceStats   *PriceStats          `json:"price_stats"`
	AreaStats    *AreaStats           `json:"area_stats"`
	DataQuality  map[Platform]float64 `json:"data_quality"`
}

// PriceStats holds price figures in manwon. Nil when no listing has a price.
type PriceStats struct {
	Min    int     `json:"min"`
	Max    int     `json:"max"`
	Avg    float64 `json:"avg"`
	Median int     `json:"median"`
}

// AreaStats holds area figures in square meters. Nil when no listing has an area.
type AreaStats struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Avg    float64 `json:"avg"`
	Median float64 `json:"median"`
}

// RunSummary describes a persisted catalog without its listings.
type RunSummary struct {
	RunID           string    `json:"run_id"`
	Area            string    `json:"area"`
	IntegrationTime time.Time `json:"integration_time"`
	TotalProperties int       `json:"total_properties"`
	Truncated       bool      `json:"truncated"`
}
