package processor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"estatemerge/config"
	"estatemerge/internal/models"
	"estatemerge/internal/queue"
)

// ErrProcessorStopped is returned for catalogs handed over after Stop.
var ErrProcessorStopped = errors.New("processor is stopped")

// CatalogWriter is the persistence the processor needs.
type CatalogWriter interface {
	SaveCatalog(ctx context.Context, catalog *models.Catalog) error
	PruneRuns(ctx context.Context, keep int) (int64, error)
}

// CatalogProcessor persists catalogs taken from the queue
type CatalogProcessor struct {
	store     CatalogWriter
	logger    *logrus.Logger
	config    *config.Config
	queue     *queue.CatalogQueue
	jobs      chan *models.Catalog
	waitGroup sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewCatalogProcessor creates a new catalog processor instance
func NewCatalogProcessor(store CatalogWriter, queue *queue.CatalogQueue, config *config.Config, logger *logrus.Logger) *CatalogProcessor {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &CatalogProcessor{
		store:  store,
		queue:  queue,
		config: config,
		logger: logger,
		jobs:   make(chan *models.Catalog),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start subscribes to the queue and starts the persisting workers
func (p *CatalogProcessor) Start() {
	workers := p.config.BatchProcessing.ProcessorCount
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		p.waitGroup.Add(1)
		go p.processLoop()
	}

	p.queue.Subscribe(func(catalog *models.Catalog) error {
		select {
		case p.jobs <- catalog:
			return nil
		case <-p.ctx.Done():
			return ErrProcessorStopped
		}
	})
}

// Stop gracefully shuts down the processor
func (p *CatalogProcessor) Stop() {
	p.cancel()
	p.waitGroup.Wait()
}

// processLoop handles the continuous processing of catalogs
func (p *CatalogProcessor) processLoop() {
	defer p.waitGroup.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case catalog := <-p.jobs:
			if err := p.processCatalog(catalog); err != nil {
				p.logger.WithError(err).WithField("run_id", catalog.RunID).Error("Dropped catalog")
			}
		}
	}
}

// processCatalog saves one catalog with retry logic
func (p *CatalogProcessor) processCatalog(catalog *models.Catalog) error {
	maxRetries := p.config.BatchProcessing.MaxRetries

	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			p.logger.Infof("Retrying catalog save, attempt %d of %d", attempt, maxRetries)
			select {
			case <-time.After(p.config.BatchProcessing.RetryDelay):
			case <-p.ctx.Done():
				return fmt.Errorf("failed to save catalog %s: %w", catalog.RunID, p.ctx.Err())
			}
		}

		err = p.store.SaveCatalog(p.ctx, catalog)
		if err == nil {
			p.logger.WithFields(logrus.Fields{
				"run_id":     catalog.RunID,
				"properties": catalog.TotalProperties,
			}).Info("Successfully saved catalog")
			p.prune()
			return nil
		}

		p.logger.Errorf("Catalog save failed: %v", err)
	}

	return fmt.Errorf("failed to process catalog after %d attempts: %w", maxRetries+1, err)
}

func (p *CatalogProcessor) prune() {
	keep := p.config.Database.KeepRuns
	if keep <= 0 {
		return
	}
	if _, err := p.store.PruneRuns(p.ctx, keep); err != nil {
		p.logger.WithError(err).Warn("Failed to prune old catalog runs")
	}
}
