package geometry

import (
	"strings"
	"unicode"

	"github.com/mmcloughlin/geohash"
	"github.com/paulmach/orb"
)

// Block key prefixes keep geohash and address keys from colliding.
const (
	geoKeyPrefix     = "geo:"
	addressKeyPrefix = "addr:"
	titleKeyPrefix   = "title:"
)

// GeohashKey returns the block key of a point at the given precision.
func GeohashKey(p orb.Point, precision uint) string {
	return geoKeyPrefix + geohash.EncodeWithPrecision(p.Lat(), p.Lon(), precision)
}

// AddressKey returns a block key from the first runes of an address with all
// whitespace removed, so "삼성동 1" and "삼성동1" share a block. Listings
// without an address fall back to their title.
func AddressKey(address, title string, runes int) string {
	if key := compactPrefix(address, runes); key != "" {
		return addressKeyPrefix + key
	}
	return titleKeyPrefix + compactPrefix(title, runes)
}

// NeighborKeys returns the keys of the eight cells around a geohash block.
// Address and title blocks have no neighbours.
func NeighborKeys(key string) []string {
	hash, ok := strings.CutPrefix(key, geoKeyPrefix)
	if !ok {
		return nil
	}
	neighbors := geohash.Neighbors(hash)
	keys := make([]string, len(neighbors))
	for i, n := range neighbors {
		keys[i] = geoKeyPrefix + n
	}
	return keys
}

func compactPrefix(s string, runes int) string {
	var b strings.Builder
	n := 0
	for _, r := range strings.ToLower(s) {
		if unicode.IsSpace(r) || unicode.IsPunct(r) {
			continue
		}
		if runes > 0 && n == runes {
			break
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}
