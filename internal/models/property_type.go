package models

import "strings"

// PropertyType is the closed set of property categories a listing can have.
type PropertyType string

const (
	TypeApartment        PropertyType = "apartment"
	TypeOfficetel        PropertyType = "officetel"
	TypeVilla            PropertyType = "villa"
	TypeApartmentPresale PropertyType = "apartment_presale"
	TypeOfficetelPresale PropertyType = "officetel_presale"
	TypeReconstruction   PropertyType = "reconstruction"
	TypeCountryHouse     PropertyType = "country_house"
	TypeDetached         PropertyType = "detached"
	TypeRetailHouse      PropertyType = "retail_house"
	TypeHanok            PropertyType = "hanok"
	TypeRedevelopment    PropertyType = "redevelopment"
	TypeOneRoom          PropertyType = "one_room"
	TypeRetail           PropertyType = "retail"
	TypeOffice           PropertyType = "office"
	TypeWarehouse        PropertyType = "warehouse"
	TypeLand             PropertyType = "land"
	TypeKnowledgeCenter  PropertyType = "knowledge_center"
	TypeAccommodation    PropertyType = "accommodation"
	TypeOther            PropertyType = "other"
)

var propertyTypeLabels = map[string]PropertyType{
	"아파트":      TypeApartment,
	"오피스텔":     TypeOfficetel,
	"빌라":       TypeVilla,
	"연립":       TypeVilla,
	"다세대":      TypeVilla,
	"아파트분양권":   TypeApartmentPresale,
	"오피스텔분양권":  TypeOfficetelPresale,
	"재건축":      TypeReconstruction,
	"전원주택":     TypeCountryHouse,
	"단독/다가구":   TypeDetached,
	"단독":       TypeDetached,
	"다가구":      TypeDetached,
	"단독주택":     TypeDetached,
	"상가주택":     TypeRetailHouse,
	"한옥주택":     TypeHanok,
	"한옥":       TypeHanok,
	"재개발":      TypeRedevelopment,
	"원룸":       TypeOneRoom,
	"투룸":       TypeOneRoom,
	"상가":       TypeRetail,
	"사무실":      TypeOffice,
	"공장/창고":    TypeWarehouse,
	"창고":       TypeWarehouse,
	"토지":       TypeLand,
	"지식산업센터":   TypeKnowledgeCenter,
	"숙박/펜션":    TypeAccommodation,
	"펜션":       TypeAccommodation,
	"apt":      TypeApartment,
	"oneroom":  TypeOneRoom,
	"one-room": TypeOneRoom,
	"shop":     TypeRetail,
	"factory":  TypeWarehouse,
}

// ParsePropertyType maps a platform label, Korean or English, onto the closed
// set. Unknown labels map to TypeOther and ok is false.
func ParsePropertyType(label string) (t PropertyType, ok bool) {
	key := strings.ToLower(strings.TrimSpace(label))
	if key == "" {
		return TypeOther, true
	}
	if t, found := propertyTypeLabels[key]; found {
		return t, true
	}
	candidate := PropertyType(strings.ReplaceAll(key, "-", "_"))
	for _, known := range propertyTypeLabels {
		if known == candidate {
			return known, true
		}
	}
	if candidate == TypeOther {
		return TypeOther, true
	}
	return TypeOther, false
}

var tradeTypeLabels = map[string]TradeType{
	"매매":            TradeSale,
	"전세":            TradeLeaseDeposit,
	"월세":            TradeMonthlyRent,
	"단기":            TradeShortTerm,
	"단기임대":          TradeShortTerm,
	"sale":          TradeSale,
	"lease_deposit": TradeLeaseDeposit,
	"jeonse":        TradeLeaseDeposit,
	"monthly_rent":  TradeMonthlyRent,
	"rent":          TradeMonthlyRent,
	"short_term":    TradeShortTerm,
}

// ParseTradeType maps a platform label onto a TradeType. Empty labels default
// to a sale; unknown labels also default to a sale but ok is false.
func ParseTradeType(label string) (t TradeType, ok bool) {
	key := strings.ToLower(strings.TrimSpace(label))
	if key == "" {
		return TradeSale, true
	}
	if t, found := tradeTypeLabels[key]; found {
		return t, true
	}
	return TradeSale, false
}
