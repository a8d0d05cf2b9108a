package geometry

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"estatemerge/internal/models"
)

// CatalogFeatures builds a feature collection with one point per located
// listing and, when at least three distinct points exist, the convex hull
// covering them.
func CatalogFeatures(catalog *models.Catalog) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	var points []orb.Point
	for i := range catalog.Properties {
		listing := &catalog.Properties[i]
		p, ok := listing.Point()
		if !ok {
			continue
		}
		points = append(points, p)

		feature := geojson.NewFeature(p)
		feature.ID = listing.ID
		feature.Properties = geojson.Properties{
			"platform":      listing.Platform,
			"property_type": listing.PropertyType,
			"trade_type":    listing.TradeType,
			"title":         listing.Title,
			"address":       listing.Address,
			"price":         listing.Price,
			"area":          listing.Area,
		}
		fc.Append(feature)
	}

	if hull := ConvexHull(points); hull != nil {
		feature := geojson.NewFeature(orb.Polygon{hull})
		feature.Properties = geojson.Properties{
			"area":          catalog.Area,
			"point_count":   len(points),
			"geometry_type": "hull",
		}
		fc.Append(feature)
	}

	if len(points) > 0 {
		fc.BBox = geojson.NewBBox(orb.MultiPoint(points).Bound())
	}

	fc.ExtraMembers = geojson.Properties{
		"metadata": map[string]interface{}{
			"area":             catalog.Area,
			"integration_time": catalog.IntegrationTime.Format(time.RFC3339),
			"total_properties": catalog.TotalProperties,
			"located":          len(points),
		},
	}

	return fc
}

// SaveCatalogFeatures writes the catalog's GeoJSON to path.
func SaveCatalogFeatures(catalog *models.Catalog, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(CatalogFeatures(catalog)); err != nil {
		return fmt.Errorf("failed to encode GeoJSON: %w", err)
	}
	return nil
}

// ConvexHull returns the closed hull ring of the points using a monotone
// chain scan, or nil when fewer than three non-collinear points are given.
func ConvexHull(points []orb.Point) orb.Ring {
	if len(points) < 3 {
		return nil
	}

	sorted := make([]orb.Point, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i][0] != sorted[j][0] {
			return sorted[i][0] < sorted[j][0]
		}
		return sorted[i][1] < sorted[j][1]
	})

	cross := func(o, a, b orb.Point) float64 {
		return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
	}

	hull := make([]orb.Point, 0, 2*len(sorted))
	for _, p := range sorted {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(sorted) - 2; i >= 0; i-- {
		p := sorted[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}

	// hull now ends with its first point
	if len(hull) < 4 {
		return nil
	}
	return orb.Ring(hull)
}
