package dedup

import (
	"context"
	"os"
	"sort"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"estatemerge/internal/geometry"
	"estatemerge/internal/models"
	"estatemerge/internal/similarity"
)

// DefaultThreshold is the score at or above which two listings are duplicates.
const DefaultThreshold = 0.85

// Config controls blocking and clustering.
type Config struct {
	Threshold          float64
	GeohashPrecision   uint
	AddressPrefixRunes int
	Workers            int
}

// DefaultConfig returns the standard resolver settings.
func DefaultConfig() Config {
	return Config{
		Threshold:          DefaultThreshold,
		GeohashPrecision:   6,
		AddressPrefixRunes: 8,
		Workers:            4,
	}
}

// Result is the outcome of a resolution.
type Result struct {
	// Unique holds one canonical listing per cluster, in order of first appearance.
	Unique []models.Listing
	// Clusters is parallel to Unique and includes singletons.
	Clusters []models.DuplicateCluster
	// Truncated is set when the context ended before every comparison ran.
	Truncated bool
	// Unresolved counts listings left out because a block holding them was never clustered.
	Unresolved int
}

// Resolver partitions listings into duplicate clusters.
type Resolver struct {
	scorer *similarity.Scorer
	config Config
	logger *logrus.Logger
}

// NewResolver creates a resolver. Zero config fields take their defaults.
func NewResolver(scorer *similarity.Scorer, config Config, logger *logrus.Logger) *Resolver {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	if scorer == nil {
		scorer = similarity.NewScorer(similarity.DefaultWeights())
	}

	defaults := DefaultConfig()
	if config.Threshold <= 0 {
		config.Threshold = defaults.Threshold
	}
	if config.GeohashPrecision == 0 {
		config.GeohashPrecision = defaults.GeohashPrecision
	}
	if config.AddressPrefixRunes <= 0 {
		config.AddressPrefixRunes = defaults.AddressPrefixRunes
	}
	if config.Workers <= 0 {
		config.Workers = defaults.Workers
	}

	return &Resolver{scorer: scorer, config: config, logger: logger}
}

type block struct {
	key     string
	geo     bool
	members []int
}

type blockResult struct {
	done   bool
	groups [][]int
}

// blocking is the candidate structure of one resolution. Every listing sits
// in its address block and, when it has coordinates, in a geohash block too.
type blocking struct {
	blocks []block
	byKey  map[string]int

	// address holds the address block key of each listing.
	address []string

	// memberships counts the blocks each listing belongs to.
	memberships []int
}

// Resolve clusters listings and picks a canonical listing per cluster. The
// input slice is only read. If ctx ends early, listings whose blocks were not
// all reached are left out and reported as unresolved.
func (r *Resolver) Resolve(ctx context.Context, listings []models.Listing) *Result {
	bk := r.block(listings)

	results := r.clusterBlocks(ctx, listings, bk)

	result := &Result{}
	pending := append([]int(nil), bk.memberships...)
	for i, br := range results {
		if !br.done {
			result.Truncated = true
			continue
		}
		for _, m := range bk.blocks[i].members {
			pending[m]--
		}
	}
	resolved := make([]bool, len(listings))
	for i, n := range pending {
		resolved[i] = n == 0
		if !resolved[i] {
			result.Unresolved++
		}
	}

	uf := newUnionFind(len(listings))
	for _, br := range results {
		for _, g := range br.groups {
			first := -1
			for _, m := range g {
				switch {
				case !resolved[m]:
				case first < 0:
					first = m
				default:
					uf.union(first, m)
				}
			}
		}
	}

	if !r.mergeNeighbors(ctx, listings, bk, results, resolved, uf) {
		result.Truncated = true
	}

	r.selectCanonical(listings, uf, resolved, result)

	r.logger.WithFields(logrus.Fields{
		"listings":   len(listings),
		"blocks":     len(bk.blocks),
		"unique":     len(result.Unique),
		"truncated":  result.Truncated,
		"unresolved": result.Unresolved,
	}).Info("Resolved duplicate listings")

	return result
}

// block assigns each listing to its address block and, when it has
// coordinates, its geohash block. Blocks keep their order of first appearance.
func (r *Resolver) block(listings []models.Listing) *blocking {
	bk := &blocking{
		byKey:       make(map[string]int),
		address:     make([]string, len(listings)),
		memberships: make([]int, len(listings)),
	}
	add := func(key string, geo bool, i int) {
		b, ok := bk.byKey[key]
		if !ok {
			b = len(bk.blocks)
			bk.byKey[key] = b
			bk.blocks = append(bk.blocks, block{key: key, geo: geo})
		}
		bk.blocks[b].members = append(bk.blocks[b].members, i)
		bk.memberships[i]++
	}

	for i := range listings {
		l := &listings[i]
		if p, ok := l.Point(); ok {
			add(geometry.GeohashKey(p, r.config.GeohashPrecision), true, i)
		}
		bk.address[i] = geometry.AddressKey(l.Address, l.Title, r.config.AddressPrefixRunes)
		add(bk.address[i], false, i)
	}
	return bk
}

// clusterBlocks runs union-find inside every block. Each block is handled by
// one goroutine and writes only its own result slot.
func (r *Resolver) clusterBlocks(ctx context.Context, listings []models.Listing, bk *blocking) []blockResult {
	results := make([]blockResult, len(bk.blocks))

	g := new(errgroup.Group)
	g.SetLimit(r.config.Workers)
	for i := range bk.blocks {
		i := i
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			results[i] = r.clusterBlock(ctx, listings, bk, bk.blocks[i])
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (r *Resolver) clusterBlock(ctx context.Context, listings []models.Listing, bk *blocking, b block) blockResult {
	members := b.members
	uf := newUnionFind(len(members))
	for i := 0; i < len(members); i++ {
		if ctx.Err() != nil {
			return blockResult{}
		}
		for j := i + 1; j < len(members); j++ {
			// Pairs sharing an address block are scored there.
			if b.geo && bk.address[members[i]] == bk.address[members[j]] {
				continue
			}
			if r.scorer.Score(&listings[members[i]], &listings[members[j]]) >= r.config.Threshold {
				uf.union(i, j)
			}
		}
	}

	local := uf.groups()
	groups := make([][]int, len(local))
	for gi, g := range local {
		groups[gi] = make([]int, len(g))
		for k, m := range g {
			groups[gi][k] = members[m]
		}
	}
	return blockResult{done: true, groups: groups}
}

// mergeNeighbors compares listings across neighbouring geohash cells. Each
// pair of cells is visited once. It returns false if ctx ended first.
func (r *Resolver) mergeNeighbors(ctx context.Context, listings []models.Listing, bk *blocking, results []blockResult, resolved []bool, uf *unionFind) bool {
	for bi, b := range bk.blocks {
		if !b.geo || !results[bi].done {
			continue
		}
		for _, nk := range geometry.NeighborKeys(b.key) {
			ni, ok := bk.byKey[nk]
			if !ok || nk <= b.key || !results[ni].done {
				continue
			}
			if ctx.Err() != nil {
				return false
			}
			for _, a := range b.members {
				for _, c := range bk.blocks[ni].members {
					if !resolved[a] || !resolved[c] || bk.address[a] == bk.address[c] {
						continue
					}
					if r.scorer.Score(&listings[a], &listings[c]) >= r.config.Threshold {
						uf.union(a, c)
					}
				}
			}
		}
	}
	return true
}

// selectCanonical builds the final clusters from resolved listings and
// orders them by the input position of their canonical listing.
func (r *Resolver) selectCanonical(listings []models.Listing, uf *unionFind, resolved []bool, result *Result) {
	type cluster struct {
		canonical int
		members   []int
	}

	var clusters []cluster
	for _, g := range uf.groups() {
		if !resolved[g[0]] {
			continue
		}
		best := g[0]
		for _, m := range g[1:] {
			if preferred(&listings[m], &listings[best]) {
				best = m
			}
		}
		clusters = append(clusters, cluster{canonical: best, members: g})
	}

	sort.Slice(clusters, func(i, j int) bool {
		return clusters[i].canonical < clusters[j].canonical
	})

	result.Unique = make([]models.Listing, 0, len(clusters))
	result.Clusters = make([]models.DuplicateCluster, 0, len(clusters))
	for _, c := range clusters {
		ids := make([]string, len(c.members))
		for k, m := range c.members {
			ids[k] = listings[m].ID
		}
		result.Unique = append(result.Unique, listings[c.canonical])
		result.Clusters = append(result.Clusters, models.DuplicateCluster{
			CanonicalID: listings[c.canonical].ID,
			MemberIDs:   ids,
		})
	}
}

// preferred reports whether a should replace b as canonical. Members are
// visited in input order, so a full tie keeps the earlier listing.
func preferred(a, b *models.Listing) bool {
	ca, cb := Completeness(a), Completeness(b)
	if ca != cb {
		return ca > cb
	}
	switch {
	case a.CollectedAt.IsZero():
		return false
	case b.CollectedAt.IsZero():
		return true
	default:
		return a.CollectedAt.Before(b.CollectedAt)
	}
}

// Completeness scores how much information a listing carries. Coordinates
// count double; monthly rent is the platform-specific extra.
func Completeness(l *models.Listing) int {
	score := 0
	for _, present := range []bool{
		l.Title != "",
		l.Address != "",
		l.Price > 0,
		l.Area > 0,
		l.Floor != "",
		l.Description != "",
		l.URL != "",
		l.MonthlyRent > 0,
	} {
		if present {
			score++
		}
	}
	if l.HasCoordinates() {
		score += 2
	}
	return score
}
