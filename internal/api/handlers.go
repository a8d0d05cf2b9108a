package api

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"estatemerge/config"
	"estatemerge/internal/cache"
	"estatemerge/internal/database"
	"estatemerge/internal/geometry"
	"estatemerge/internal/integration"
	"estatemerge/internal/models"
	"estatemerge/internal/queue"
	"estatemerge/internal/source"
)

const (
	latestKey = "catalog:latest"
	// maxPageSize caps the limit query parameter.
	maxPageSize = 1000
)

// CatalogStore is the read side of the catalog database.
type CatalogStore interface {
	LatestCatalog(ctx context.Context) (*models.Catalog, error)
	Catalog(ctx context.Context, runID string) (*models.Catalog, error)
	ListRuns(ctx context.Context, limit int) ([]models.RunSummary, error)
}

// Options are the handler settings taken from the server configuration.
type Options struct {
	ManifestPath string
	// DefaultArea is used when the manifest names no area
	DefaultArea string
}

type Handler struct {
	store      CatalogStore
	integrator *integration.Integrator
	cache      *cache.TTLCache[*models.Catalog]
	queue      *queue.CatalogQueue
	options    Options
	logger     *logrus.Logger
}

// NewHandler wires the API. store and catalogQueue may be nil, in which case
// catalogs only live in the cache.
func NewHandler(store CatalogStore, integrator *integration.Integrator, catalogCache *cache.TTLCache[*models.Catalog], catalogQueue *queue.CatalogQueue, options Options, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}

	return &Handler{
		store:      store,
		integrator: integrator,
		cache:      catalogCache,
		queue:      catalogQueue,
		options:    options,
		logger:     logger,
	}
}

// Refresh integrates the manifest inputs, caches the catalog and queues it
// for persistence.
func (h *Handler) Refresh(ctx context.Context) (*models.Catalog, error) {
	manifest, err := config.LoadManifest(h.options.ManifestPath)
	if err != nil {
		return nil, err
	}

	area := manifest.Area
	if area == "" {
		area = h.options.DefaultArea
	}

	catalog, err := h.integrator.Integrate(ctx, area, source.FromManifest(manifest, h.logger))
	if err != nil {
		return nil, err
	}

	h.cache.Sweep()
	h.cache.Put(latestKey, catalog)

	if h.queue != nil {
		if err := h.queue.Push(catalog); err != nil {
			h.logger.WithError(err).WithField("run_id", catalog.RunID).Warn("Failed to queue catalog for persistence")
		}
	}

	return catalog, nil
}

// catalog returns the requested run, or the latest one when runID is empty.
func (h *Handler) catalog(ctx context.Context, runID string) (*models.Catalog, error) {
	key := latestKey
	if runID != "" {
		key = "catalog:" + runID
	}

	if catalog, ok := h.cache.Get(key); ok {
		return catalog, nil
	}
	if h.store == nil {
		return nil, database.ErrNoCatalog
	}

	var catalog *models.Catalog
	var err error
	if runID != "" {
		catalog, err = h.store.Catalog(ctx, runID)
	} else {
		catalog, err = h.store.LatestCatalog(ctx)
	}
	if err != nil {
		return nil, err
	}

	h.cache.Put(key, catalog)
	return catalog, nil
}

func (h *Handler) loadCatalog(c *gin.Context) (*models.Catalog, bool) {
	catalog, err := h.catalog(c.Request.Context(), c.Query("run_id"))
	if errors.Is(err, database.ErrNoCatalog) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No catalog available"})
		return nil, false
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to get catalog")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get catalog"})
		return nil, false
	}
	return catalog, true
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) GetCatalog(c *gin.Context) {
	catalog, ok := h.loadCatalog(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, catalog)
}

func (h *Handler) GetCatalogStats(c *gin.Context) {
	catalog, ok := h.loadCatalog(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id":           catalog.RunID,
		"area":             catalog.Area,
		"total_properties": catalog.TotalProperties,
		"platform_stats":   catalog.PlatformStats,
		"statistics":       catalog.Statistics,
	})
}

func (h *Handler) GetCatalogGeoJSON(c *gin.Context) {
	catalog, ok := h.loadCatalog(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, geometry.CatalogFeatures(catalog))
}

// GetProperties lists canonical listings, filtered and paginated by query
// parameters.
func (h *Handler) GetProperties(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		limit = 100
	}
	limit = min(limit, maxPageSize)

	catalog, ok := h.loadCatalog(c)
	if !ok {
		return
	}

	matched := filter.Apply(catalog.Properties)
	start := min(offset, len(matched))
	page := matched[start : start+min(limit, len(matched)-start)]

	c.JSON(http.StatusOK, gin.H{
		"total":      len(matched),
		"count":      len(page),
		"properties": page,
	})
}

func (h *Handler) GetRuns(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		limit = 20
	}
	limit = min(limit, maxPageSize)

	if h.store == nil {
		c.JSON(http.StatusOK, []models.RunSummary{})
		return
	}

	runs, err := h.store.ListRuns(c.Request.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list runs")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list runs"})
		return
	}
	c.JSON(http.StatusOK, runs)
}

// Integrate runs the integration synchronously.
func (h *Handler) Integrate(c *gin.Context) {
	catalog, err := h.Refresh(c.Request.Context())
	switch {
	case err == nil:
	case errors.Is(err, integration.ErrIntegrationFailed):
		h.logger.WithError(err).Warn("Integration produced no catalog")
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	case errors.Is(err, config.ErrInvalidManifest), errors.Is(err, os.ErrNotExist):
		h.logger.WithError(err).Error("Failed to load manifest")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	default:
		h.logger.WithError(err).Error("Failed to integrate")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to integrate"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id":              catalog.RunID,
		"area":                catalog.Area,
		"total_properties":    catalog.TotalProperties,
		"duplicates":          len(catalog.Duplicates),
		"warnings":            len(catalog.Warnings),
		"truncated":           catalog.Truncated,
		"unprocessed_records": catalog.UnprocessedRecords,
	})
}

func (h *Handler) GetCacheStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"size":    h.cache.Len(),
		"entries": h.cache.Status(),
	})
}

func (h *Handler) ClearCache(c *gin.Context) {
	cleared := h.cache.Clear()
	h.logger.WithField("cleared", cleared).Info("Cleared catalog cache")
	c.JSON(http.StatusOK, gin.H{"cleared": cleared})
}

func parseFilter(c *gin.Context) (*models.ListingFilter, error) {
	filter := &models.ListingFilter{}

	for _, label := range splitQuery(c.Query("platform")) {
		p := models.Platform(strings.ToLower(label))
		if !p.IsSupported() {
			return nil, errors.New("unsupported platform: " + label)
		}
		filter.Platforms = append(filter.Platforms, p)
	}
	for _, label := range splitQuery(c.Query("type")) {
		t, ok := models.ParsePropertyType(label)
		if !ok {
			return nil, errors.New("unknown property type: " + label)
		}
		filter.PropertyTypes = append(filter.PropertyTypes, t)
	}
	for _, label := range splitQuery(c.Query("trade")) {
		t, ok := models.ParseTradeType(label)
		if !ok {
			return nil, errors.New("unknown trade type: " + label)
		}
		filter.TradeTypes = append(filter.TradeTypes, t)
	}

	var err error
	if filter.MinPrice, err = intQuery(c, "min_price"); err != nil {
		return nil, err
	}
	if filter.MaxPrice, err = intQuery(c, "max_price"); err != nil {
		return nil, err
	}
	if filter.MinArea, err = floatQuery(c, "min_area"); err != nil {
		return nil, err
	}
	if filter.MaxArea, err = floatQuery(c, "max_area"); err != nil {
		return nil, err
	}
	return filter, nil
}

func splitQuery(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func intQuery(c *gin.Context, name string) (*int, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, errors.New("invalid " + name + ": " + raw)
	}
	return &v, nil
}

func floatQuery(c *gin.Context, name string) (*float64, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, errors.New("invalid " + name + ": " + raw)
	}
	return &v, nil
}
