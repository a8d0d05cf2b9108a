package normalizer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"estatemerge/internal/models"
)

// Normalizer converts raw platform records into canonical listings.
type Normalizer struct {
	schemas map[models.Platform]Schema
	workers int
	logger  *logrus.Logger
}

// BatchResult is the outcome of normalizing one platform's records.
type BatchResult struct {
	Listings    []models.Listing
	Rejected    int
	Warnings    []*ParseError
	Unprocessed int
}

// New creates a normalizer with the default platform schemas.
func New(workers int, logger *logrus.Logger) *Normalizer {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	if workers <= 0 {
		workers = 1
	}

	return &Normalizer{
		schemas: DefaultSchemas(),
		workers: workers,
		logger:  logger,
	}
}

// SetSchema replaces the field table used for a platform.
func (n *Normalizer) SetSchema(schema Schema) {
	n.schemas[schema.Platform] = schema
}

// Normalize maps one raw record onto a Listing. Unparseable fields are
// returned as warnings; only a record lacking both title and address fails.
func (n *Normalizer) Normalize(raw models.RawRecord, platform models.Platform) (models.Listing, []*ParseError, error) {
	schema, ok := n.schemas[platform]
	if !ok || !platform.IsSupported() {
		return models.Listing{}, nil, fmt.Errorf("%w: %q", ErrUnsupportedPlatform, platform)
	}

	id := listingID(schema, raw)

	title := textField(schema, raw, FieldTitle)
	address := textField(schema, raw, FieldAddress)
	if title == "" && address == "" {
		return models.Listing{}, nil, fmt.Errorf("%w: %s has neither title nor address", ErrInvalidRecord, id)
	}

	var warnings []*ParseError
	warn := func(field Field, value any, err error) {
		warnings = append(warnings, &ParseError{
			Platform: platform,
			RecordID: id,
			Field:    field,
			Value:    value,
			Err:      err,
		})
	}

	listing := models.Listing{
		ID:          id,
		Platform:    platform,
		Title:       title,
		Address:     address,
		Floor:       textField(schema, raw, FieldFloor),
		Description: textField(schema, raw, FieldDescription),
		URL:         textField(schema, raw, FieldURL),
		Raw:         copyRecord(raw),
	}

	if v, _, ok := schema.lookup(raw, FieldPrice); ok {
		price, err := ParsePrice(v)
		if err != nil {
			warn(FieldPrice, v, err)
		}
		listing.Price = price
	}

	if v, _, ok := schema.lookup(raw, FieldArea); ok {
		area, err := ParseArea(v)
		if err != nil {
			warn(FieldArea, v, err)
		}
		listing.Area = area
	}

	if v, _, ok := schema.lookup(raw, FieldMonthlyRent); ok {
		rent, err := ParsePrice(v)
		if err != nil {
			warn(FieldMonthlyRent, v, err)
		}
		listing.MonthlyRent = rent
	}

	label := textField(schema, raw, FieldType)
	propertyType, known := models.ParsePropertyType(label)
	if !known {
		warn(FieldType, label, errUnknownPropertyType)
	}
	listing.PropertyType = propertyType

	label = textField(schema, raw, FieldTradeType)
	tradeType, known := models.ParseTradeType(label)
	if !known {
		warn(FieldTradeType, label, errUnknownTradeType)
	}
	listing.TradeType = tradeType

	if v, _, ok := schema.lookup(raw, FieldCollectedAt); ok {
		collectedAt, err := parseTimestamp(v)
		if err != nil {
			warn(FieldCollectedAt, v, err)
		}
		listing.CollectedAt = collectedAt
	}

	lat, lon, err := coordinates(schema, raw)
	if err != nil {
		warn(FieldLatitude, raw[firstName(schema, FieldLatitude)], err)
	} else if lat != nil {
		listing.Latitude, listing.Longitude = lat, lon
	}

	return listing, warnings, nil
}

// NormalizeBatch normalizes records in parallel while preserving input order.
// Records not reached before ctx is done are counted as unprocessed.
func (n *Normalizer) NormalizeBatch(ctx context.Context, platform models.Platform, records []models.RawRecord) BatchResult {
	type outcome struct {
		listing  models.Listing
		warnings []*ParseError
		err      error
		skipped  bool
	}

	outcomes := make([]outcome, len(records))
	jobs := make(chan int)

	workers := n.workers
	if workers > len(records) {
		workers = len(records)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if ctx.Err() != nil {
					outcomes[idx].skipped = true
					continue
				}
				listing, warnings, err := n.Normalize(records[idx], platform)
				outcomes[idx] = outcome{listing: listing, warnings: warnings, err: err}
			}
		}()
	}

	for i := range records {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	result := BatchResult{Listings: make([]models.Listing, 0, len(records))}
	for _, o := range outcomes {
		switch {
		case o.skipped:
			result.Unprocessed++
		case o.err != nil:
			result.Rejected++
			n.logger.WithError(o.err).WithField("platform", platform).Debug("Rejected record")
		default:
			result.Listings = append(result.Listings, o.listing)
		}
		result.Warnings = append(result.Warnings, o.warnings...)
	}

	for _, w := range result.Warnings {
		n.logger.WithFields(logrus.Fields{
			"platform":  w.Platform,
			"record_id": w.RecordID,
			"field":     w.Field,
		}).WithError(w.Err).Warn("Failed to parse field")
	}

	n.logger.WithFields(logrus.Fields{
		"platform":    platform,
		"records":     len(records),
		"listings":    len(result.Listings),
		"rejected":    result.Rejected,
		"warnings":    len(result.Warnings),
		"unprocessed": result.Unprocessed,
	}).Info("Normalized platform records")

	return result
}

// listingID builds "{PLATFORM}_{native_id}". Records without a native id get
// a stable id derived from their content.
func listingID(schema Schema, raw models.RawRecord) string {
	prefix := strings.ToUpper(string(schema.Platform)) + "_"

	native := textField(schema, raw, FieldID)
	if native == "" {
		payload, _ := json.Marshal(raw)
		return prefix + uuid.NewSHA1(uuid.NameSpaceOID, payload).String()
	}
	if strings.HasPrefix(strings.ToUpper(native), prefix) {
		return native
	}
	return prefix + native
}

func textField(schema Schema, raw models.RawRecord, f Field) string {
	v, _, ok := schema.lookup(raw, f)
	if !ok {
		return ""
	}
	return stringValue(v)
}

// coordinates returns both coordinates or neither. (0, 0) counts as absent.
func coordinates(schema Schema, raw models.RawRecord) (*float64, *float64, error) {
	latRaw, _, hasLat := schema.lookup(raw, FieldLatitude)
	lonRaw, _, hasLon := schema.lookup(raw, FieldLongitude)
	hasLat = hasLat && stringValue(latRaw) != ""
	hasLon = hasLon && stringValue(lonRaw) != ""
	if !hasLat && !hasLon {
		return nil, nil, nil
	}
	if hasLat != hasLon {
		return nil, nil, errPartialCoordinates
	}

	lat, err := parseCoordinate(latRaw)
	if err != nil {
		return nil, nil, err
	}
	lon, err := parseCoordinate(lonRaw)
	if err != nil {
		return nil, nil, err
	}
	if lat == 0 && lon == 0 {
		return nil, nil, nil
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, nil, fmt.Errorf("coordinates out of range (%f, %f)", lat, lon)
	}
	return &lat, &lon, nil
}

func firstName(schema Schema, f Field) string {
	if names := schema.Fields[f]; len(names) > 0 {
		return names[0]
	}
	return ""
}

func copyRecord(raw models.RawRecord) models.RawRecord {
	out := make(models.RawRecord, len(raw))
	for k, v := range raw {
		out[k] = v
	}
	return out
}
