package integration

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"estatemerge/config"
	"estatemerge/internal/dedup"
	"estatemerge/internal/models"
	"estatemerge/internal/normalizer"
	"estatemerge/internal/similarity"
	"estatemerge/internal/source"
	"estatemerge/internal/stats"
)

var (
	// ErrIntegrationFailed is returned when no platform produced a single listing.
	ErrIntegrationFailed = errors.New("integration failed")
	// ErrAllSourcesUnavailable means no input could be loaded at all.
	ErrAllSourcesUnavailable = errors.New("every source is unavailable")
	// ErrNoListings means inputs loaded but no record survived normalization.
	ErrNoListings = errors.New("no listings after normalization")
)

// Options configures an Integrator.
type Options struct {
	// Deadline bounds a whole run; zero means no deadline.
	Deadline         time.Duration
	NormalizeWorkers int
	Resolver         dedup.Config
	Weights          similarity.Weights
}

// OptionsFromConfig maps the environment configuration onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Deadline:         cfg.Integration.Deadline,
		NormalizeWorkers: cfg.Integration.NormalizeWorkers,
		Resolver: dedup.Config{
			Threshold:          cfg.Integration.DuplicateThreshold,
			GeohashPrecision:   cfg.Integration.GeohashPrecision,
			AddressPrefixRunes: cfg.Integration.AddressPrefixRunes,
			Workers:            cfg.Integration.ResolveWorkers,
		},
		Weights: similarity.DefaultWeights(),
	}
}

// Integrator turns per-platform inputs into one deduplicated catalog.
type Integrator struct {
	normalizer *normalizer.Normalizer
	resolver   *dedup.Resolver
	aggregator *stats.Aggregator
	deadline   time.Duration
	now        func() time.Time
	logger     *logrus.Logger
}

// New creates an integrator from opts. A nil logger logs JSON to stdout.
func New(opts Options, logger *logrus.Logger) *Integrator {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	if opts.Weights == (similarity.Weights{}) {
		opts.Weights = similarity.DefaultWeights()
	}

	return &Integrator{
		normalizer: normalizer.New(opts.NormalizeWorkers, logger),
		resolver:   dedup.NewResolver(similarity.NewScorer(opts.Weights), opts.Resolver, logger),
		aggregator: stats.NewAggregator(logger),
		deadline:   opts.Deadline,
		now:        time.Now,
		logger:     logger,
	}
}

// Integrate loads every source, normalizes, deduplicates and summarises the
// listings. Unavailable sources and bad records become warnings. If the
// deadline passes, the partial catalog is returned with Truncated set.
// An error is returned only when no source produced any listing.
func (i *Integrator) Integrate(ctx context.Context, area string, sources []source.Source) (*models.Catalog, error) {
	if i.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.deadline)
		defer cancel()
	}

	catalog := &models.Catalog{
		RunID:           uuid.NewString(),
		Area:            area,
		IntegrationTime: i.now().UTC(),
		PlatformStats:   make(map[models.Platform]int),
		RejectedRecords: make(map[models.Platform]int),
		Duplicates:      []models.DuplicateCluster{},
		Warnings:        []string{},
	}

	logger := i.logger.WithFields(logrus.Fields{"run_id": catalog.RunID, "area": area})
	warn := func(format string, args ...any) {
		msg := fmt.Sprintf(format, args...)
		catalog.Warnings = append(catalog.Warnings, msg)
		logger.Warn(msg)
	}

	var listings []models.Listing
	seen := make(map[string]bool)
	available := 0
	truncated := false

	for _, src := range sources {
		platform := src.Platform()
		if _, ok := catalog.PlatformStats[platform]; !ok {
			catalog.PlatformStats[platform] = 0
		}

		if ctx.Err() != nil {
			truncated = true
			warn("%s source %s skipped: deadline exceeded, its records are not counted as unprocessed", platform, src.Origin())
			continue
		}
		if !platform.IsSupported() {
			warn("%s source %s unavailable: unsupported platform", platform, src.Origin())
			continue
		}

		records, err := src.Load(ctx)
		if err != nil {
			if ctx.Err() != nil {
				truncated = true
				warn("%s source %s skipped: deadline exceeded, its records are not counted as unprocessed", platform, src.Origin())
				continue
			}
			if !errors.Is(err, source.ErrSourceUnavailable) {
				err = &source.UnavailableError{Platform: platform, Origin: src.Origin(), Err: err}
			}
			warn("%v", err)
			continue
		}
		available++

		batch := i.normalizer.NormalizeBatch(ctx, platform, records)
		if batch.Unprocessed > 0 {
			truncated = true
			catalog.UnprocessedRecords += batch.Unprocessed
		}
		catalog.RejectedRecords[platform] += batch.Rejected
		catalog.ParseErrors += len(batch.Warnings)
		for _, w := range batch.Warnings {
			catalog.Warnings = append(catalog.Warnings, w.Error())
		}

		for _, listing := range batch.Listings {
			if seen[listing.ID] {
				catalog.RejectedRecords[platform]++
				warn("%s record %s rejected: duplicate id", platform, listing.ID)
				continue
			}
			seen[listing.ID] = true
			listing.Synthetic = src.Synthetic()
			listings = append(listings, listing)
			catalog.PlatformStats[platform]++
		}

		if src.Synthetic() {
			catalog.SyntheticSources = appendUnique(catalog.SyntheticSources, platform)
			warn("%s source %s is synthetic; its listings are flagged", platform, src.Origin())
		}
	}

	if !truncated {
		if available == 0 {
			return nil, fmt.Errorf("%w: %w", ErrIntegrationFailed, ErrAllSourcesUnavailable)
		}
		if len(listings) == 0 {
			return nil, fmt.Errorf("%w: %w", ErrIntegrationFailed, ErrNoListings)
		}
	}

	resolution := i.resolver.Resolve(ctx, listings)
	if resolution.Truncated {
		truncated = true
	}
	catalog.UnprocessedRecords += resolution.Unresolved

	catalog.Properties = resolution.Unique
	catalog.TotalProperties = len(resolution.Unique)
	for _, c := range resolution.Clusters {
		if c.Size() > 1 {
			catalog.Duplicates = append(catalog.Duplicates, c)
		}
	}
	catalog.Statistics = i.aggregator.Aggregate(resolution.Unique, catalog.PlatformStats)

	catalog.Truncated = truncated
	if truncated {
		warn("deadline exceeded: catalog is partial, %d records unprocessed", catalog.UnprocessedRecords)
	}

	logger.WithFields(logrus.Fields{
		"sources":          len(sources),
		"listings":         len(listings),
		"total_properties": catalog.TotalProperties,
		"duplicates":       len(catalog.Duplicates),
		"parse_errors":     catalog.ParseErrors,
		"truncated":        catalog.Truncated,
	}).Info("Integration completed")

	return catalog, nil
}

func appendUnique(platforms []models.Platform, p models.Platform) []models.Platform {
	for _, existing := range platforms {
		if existing == p {
			return platforms
		}
	}
	return append(platforms, p)
}
