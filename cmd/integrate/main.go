package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"estatemerge/config"
	"estatemerge/internal/database"
	"estatemerge/internal/geometry"
	"estatemerge/internal/integration"
	"estatemerge/internal/models"
	"estatemerge/internal/source"
)

const (
	exitOK        = 0
	exitInvalid   = 1
	exitNoListing = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("integrate", flag.ContinueOnError)
	fs.SetOutput(stderr)

	inputs := make(map[models.Platform]*string, len(models.Platforms))
	for _, p := range models.Platforms {
		inputs[p] = fs.String(string(p), "", fmt.Sprintf("path to the collected %s listings (JSON)", p))
	}
	manifestPath := fs.String("manifest", "", "YAML manifest listing the inputs")
	outPath := fs.String("out", "", "write the catalog here instead of stdout")
	geojsonPath := fs.String("geojson", "", "also write located listings as GeoJSON")
	area := fs.String("area", "", "target area reported in the catalog")
	deadline := fs.Duration("deadline", 0, "overall deadline, e.g. 30s")
	synthetic := fs.String("synthetic", "", "comma separated platforms whose inputs are synthetic sample data")
	persist := fs.Bool("store", false, "persist the catalog to the configured database")
	verbose := fs.Bool("v", false, "verbose logging")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitInvalid
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(stderr)
	logger.SetLevel(logrus.WarnLevel)
	if *verbose {
		logger.SetLevel(logrus.InfoLevel)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Error("Failed to load configuration")
		return exitInvalid
	}

	syntheticPlatforms := make(map[models.Platform]bool)
	for _, label := range strings.Split(*synthetic, ",") {
		if label = strings.TrimSpace(label); label == "" {
			continue
		}
		p := models.Platform(strings.ToLower(label))
		if !p.IsSupported() {
			logger.WithField("platform", label).Error("Unsupported platform in -synthetic")
			return exitInvalid
		}
		syntheticPlatforms[p] = true
	}

	var sources []source.Source
	if *manifestPath != "" {
		manifest, err := config.LoadManifest(*manifestPath)
		if err != nil {
			logger.WithError(err).Error("Failed to load manifest")
			return exitInvalid
		}
		sources = append(sources, source.FromManifest(manifest, logger)...)
		if *area == "" {
			*area = manifest.Area
		}
	}
	for _, p := range models.Platforms {
		if path := *inputs[p]; path != "" {
			sources = append(sources, source.NewFileSource(p, path, syntheticPlatforms[p]))
		}
	}
	if len(sources) == 0 {
		fmt.Fprintln(stderr, "no inputs: pass -manifest or at least one platform path")
		fs.Usage()
		return exitInvalid
	}
	if *area == "" {
		*area = cfg.Integration.Area
	}

	options := integration.OptionsFromConfig(cfg)
	if *deadline > 0 {
		options.Deadline = *deadline
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	catalog, err := integration.New(options, logger).Integrate(ctx, *area, sources)
	if err != nil {
		logger.WithError(err).Error("Integration failed")
		return exitCode(err)
	}

	if err := writeCatalog(catalog, *outPath, stdout); err != nil {
		logger.WithError(err).Error("Failed to write catalog")
		return exitInvalid
	}

	if *geojsonPath != "" {
		if err := geometry.SaveCatalogFeatures(catalog, *geojsonPath); err != nil {
			logger.WithError(err).Error("Failed to write GeoJSON")
			return exitInvalid
		}
	}

	if *persist {
		store, err := database.Open(cfg.Database.Driver, cfg.Database.DSN, logger)
		if err != nil {
			logger.WithError(err).Error("Failed to open database")
			return exitInvalid
		}
		defer store.Close()
		if err := store.SaveCatalog(ctx, catalog); err != nil {
			logger.WithError(err).Error("Failed to store catalog")
			return exitInvalid
		}
	}

	logger.WithFields(logrus.Fields{
		"run_id":           catalog.RunID,
		"total_properties": catalog.TotalProperties,
		"duplicates":       len(catalog.Duplicates),
		"warnings":         len(catalog.Warnings),
		"truncated":        catalog.Truncated,
	}).Info("Catalog written")

	return exitOK
}

// exitCode maps an integration error onto the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, integration.ErrNoListings):
		return exitNoListing
	default:
		return exitInvalid
	}
}

func writeCatalog(catalog *models.Catalog, path string, stdout io.Writer) error {
	w := stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", path, err)
		}
		defer f.Close()
		w = f
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(catalog); err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}
	return nil
}
