package database

import "fmt"

func (s *Store) RunMigrations() error {
	if err := s.db.AutoMigrate(&CatalogRun{}, &ListingRecord{}); err != nil {
		return fmt.Errorf("failed to migrate catalog tables: %w", err)
	}

	// Listings of a run are always read back in catalog order
	if err := s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_catalog_listings_run_position
		ON catalog_listings(run_id, position)`).Error; err != nil {
		return fmt.Errorf("failed to create listing position index: %w", err)
	}

	return nil
}
