package similarity

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"estatemerge/internal/geometry"
	"estatemerge/internal/models"
)

const (
	// PriceTolerance is the relative price difference below which prices are close.
	PriceTolerance = 0.10
	// AreaTolerance is the relative area difference below which areas are close.
	AreaTolerance = 0.05
	// ProximityMeters is the distance below which two listings share a location.
	ProximityMeters = 100.0
)

// Weights are the contributions of each component to the final score.
type Weights struct {
	Title   float64
	Address float64
	Price   float64
	Area    float64
	Geo     float64
}

// DefaultWeights returns the standard component weights.
func DefaultWeights() Weights {
	return Weights{Title: 0.30, Address: 0.30, Price: 0.20, Area: 0.10, Geo: 0.10}
}

// Breakdown exposes the component scores behind a similarity score.
type Breakdown struct {
	Title   float64 `json:"title"`
	Address float64 `json:"address"`
	Price   float64 `json:"price"`
	Area    float64 `json:"area"`
	Geo     float64 `json:"geo"`
	GeoUsed bool    `json:"geo_used"`
	Score   float64 `json:"score"`
}

// Scorer compares two listings. It holds no mutable state and is safe for
// concurrent use.
type Scorer struct {
	weights Weights
}

// NewScorer creates a scorer with the given weights.
func NewScorer(weights Weights) *Scorer {
	return &Scorer{weights: weights}
}

// Score returns the similarity of a and b in [0, 1].
func (s *Scorer) Score(a, b *models.Listing) float64 {
	return s.Explain(a, b).Score
}

// Explain returns the score with its components. When either listing lacks
// coordinates the geo term is dropped and the remaining weights are rescaled.
func (s *Scorer) Explain(a, b *models.Listing) Breakdown {
	bd := Breakdown{
		Title:   TextRatio(a.Title, b.Title),
		Address: TextRatio(a.Address, b.Address),
		Price:   Closeness(float64(a.Price), float64(b.Price), PriceTolerance),
		Area:    Closeness(a.Area, b.Area, AreaTolerance),
	}

	terms := []struct{ weight, value float64 }{
		{s.weights.Title, bd.Title},
		{s.weights.Address, bd.Address},
		{s.weights.Price, bd.Price},
		{s.weights.Area, bd.Area},
	}

	pa, okA := a.Point()
	pb, okB := b.Point()
	if okA && okB {
		bd.GeoUsed = true
		if geometry.Haversine(pa, pb) < ProximityMeters {
			bd.Geo = 1
		}
		terms = append(terms, struct{ weight, value float64 }{s.weights.Geo, bd.Geo})
	}

	var total, weightSum float64
	for _, t := range terms {
		total += t.weight * t.value
		weightSum += t.weight
	}
	if weightSum > 0 {
		bd.Score = math.Min(1, math.Max(0, total/weightSum))
	}
	return bd
}

// TextRatio returns 1 minus the normalized edit distance of the lowercased,
// trimmed strings. Two empty strings are identical.
func TextRatio(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == b {
		return 1
	}

	longest := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > longest {
		longest = n
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

// Closeness returns 1 - |x-y|/max(x, y, 1) when that relative difference is
// below tolerance, and 0 otherwise.
func Closeness(x, y, tolerance float64) float64 {
	diff := math.Abs(x-y) / math.Max(math.Max(x, y), 1)
	if diff < tolerance {
		return 1 - diff
	}
	return 0
}
