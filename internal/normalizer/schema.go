package normalizer

import "estatemerge/internal/models"

// Field is a canonical listing field a platform schema can map onto.
type Field string

const (
	FieldID          Field = "id"
	FieldType        Field = "property_type"
	FieldTradeType   Field = "trade_type"
	FieldTitle       Field = "title"
	FieldAddress     Field = "address"
	FieldPrice       Field = "price"
	FieldArea        Field = "area"
	FieldFloor       Field = "floor"
	FieldLatitude    Field = "lat"
	FieldLongitude   Field = "lon"
	FieldDescription Field = "description"
	FieldURL         Field = "url"
	FieldMonthlyRent Field = "monthly_rent"
	FieldCollectedAt Field = "collected_at"
)

// Schema maps the source field names of one platform onto canonical fields.
// Source names are tried in order; the first non-nil value wins. A canonical
// field absent from the table always takes its zero value.
type Schema struct {
	Platform models.Platform
	Fields   map[Field][]string
}

// lookup returns the first present value for f and the source field it came from.
func (s Schema) lookup(raw models.RawRecord, f Field) (any, string, bool) {
	for _, name := range s.Fields[f] {
		if v, ok := raw[name]; ok && v != nil {
			return v, name, true
		}
	}
	return nil, "", false
}

// DefaultSchemas returns the field tables for every supported platform.
func DefaultSchemas() map[models.Platform]Schema {
	return map[models.Platform]Schema{
		models.PlatformNaver: {
			Platform: models.PlatformNaver,
			Fields: map[Field][]string{
				FieldID:          {"article_id", "id"},
				FieldType:        {"type", "property_type"},
				FieldTradeType:   {"trade_type"},
				FieldTitle:       {"title"},
				FieldAddress:     {"address"},
				FieldPrice:       {"price"},
				FieldArea:        {"area"},
				FieldFloor:       {"floor"},
				FieldLatitude:    {"lat"},
				FieldLongitude:   {"lon", "lng"},
				FieldDescription: {"description"},
				FieldURL:         {"naver_link", "url"},
				FieldCollectedAt: {"collected_at"},
			},
		},
		models.PlatformZigbang: {
			Platform: models.PlatformZigbang,
			Fields: map[Field][]string{
				FieldID:          {"id", "item_id"},
				FieldType:        {"type", "property_type"},
				FieldTradeType:   {"trade_type", "sales_type"},
				FieldTitle:       {"title"},
				FieldAddress:     {"address"},
				FieldPrice:       {"price", "deposit"},
				FieldArea:        {"area"},
				FieldFloor:       {"floor"},
				FieldLatitude:    {"lat"},
				FieldLongitude:   {"lng", "lon"},
				FieldDescription: {"description"},
				FieldURL:         {"url"},
				FieldMonthlyRent: {"monthly_rent", "rent"},
				FieldCollectedAt: {"collected_at"},
			},
		},
		models.PlatformDabang: {
			Platform: models.PlatformDabang,
			Fields: map[Field][]string{
				FieldID:          {"id", "room_id"},
				FieldType:        {"type", "room_type"},
				FieldTradeType:   {"trade_type", "selling_type"},
				FieldTitle:       {"title"},
				FieldAddress:     {"address"},
				FieldPrice:       {"price", "deposit"},
				FieldArea:        {"area"},
				FieldFloor:       {"floor"},
				FieldLatitude:    {"lat", "latitude"},
				FieldLongitude:   {"lng", "longitude"},
				FieldDescription: {"description"},
				FieldURL:         {"url"},
				FieldMonthlyRent: {"monthly_rent", "rent"},
				FieldCollectedAt: {"collected_at"},
			},
		},
		models.PlatformKB: {
			Platform: models.PlatformKB,
			Fields: map[Field][]string{
				FieldID:          {"id"},
				FieldType:        {"type", "property_type"},
				FieldTradeType:   {"trade_type"},
				FieldTitle:       {"title", "complex_name"},
				FieldAddress:     {"address"},
				FieldPrice:       {"price", "price_text"},
				FieldArea:        {"area", "area_text"},
				FieldFloor:       {"floor"},
				FieldLatitude:    {"lat"},
				FieldLongitude:   {"lng", "lon"},
				FieldDescription: {"description"},
				FieldURL:         {"url"},
				FieldCollectedAt: {"collected_at"},
			},
		},
		models.PlatformHogang: {
			Platform: models.PlatformHogang,
			Fields: map[Field][]string{
				FieldID:          {"id"},
				FieldType:        {"type", "property_type"},
				FieldTradeType:   {"trade_type"},
				FieldTitle:       {"title", "apt_name"},
				FieldAddress:     {"address"},
				FieldPrice:       {"price"},
				FieldArea:        {"area"},
				FieldFloor:       {"floor"},
				FieldLatitude:    {"lat"},
				FieldLongitude:   {"lng", "lon"},
				FieldDescription: {"description"},
				FieldURL:         {"url"},
				FieldCollectedAt: {"collected_at"},
			},
		},
	}
}
