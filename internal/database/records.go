package database

import (
	"time"

	"gorm.io/datatypes"
)

// CatalogRun is one stored integration run. Catalog holds the catalog
// document without its properties, which live in ListingRecord rows.
type CatalogRun struct {
	ID                 string          `gorm:"primaryKey;type:text"`
	Area               string          `gorm:"type:text;not null"`
	IntegrationTime    time.Time       `gorm:"index;not null"`
	TotalProperties    int             `gorm:"not null"`
	Truncated          bool            `gorm:"not null;default:false"`
	UnprocessedRecords int             `gorm:"not null;default:0"`
	Catalog            datatypes.JSON  `gorm:"not null"`
	Listings           []ListingRecord `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE"`
	CreatedAt          time.Time
}

func (CatalogRun) TableName() string {
	return "catalog_runs"
}

// ListingRecord is one canonical listing of a run.
type ListingRecord struct {
	ID           uint   `gorm:"primaryKey"`
	RunID        string `gorm:"type:text;index;not null"`
	Position     int    `gorm:"not null"`
	ListingID    string `gorm:"type:text;index;not null"`
	Platform     string `gorm:"type:text;index;not null"`
	PropertyType string `gorm:"type:text"`
	TradeType    string `gorm:"type:text"`
	Price        int
	Area         float64
	Latitude     *float64
	Longitude    *float64
	Synthetic    bool
	Data         datatypes.JSON `gorm:"not null"`
}

func (ListingRecord) TableName() string {
	return "catalog_listings"
}
