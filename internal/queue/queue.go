package queue

import (
	"errors"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"estatemerge/internal/models"
)

var (
	ErrQueueFull   = errors.New("queue is full")
	ErrQueueClosed = errors.New("queue is closed")
)

// CatalogQueue is an in-memory queue of finished catalogs awaiting persistence
type CatalogQueue struct {
	items    chan *models.Catalog
	done     chan struct{}
	maxSize  int
	closed   bool
	mu       sync.RWMutex
	logger   *logrus.Logger
	handlers []func(*models.Catalog) error
}

// NewCatalogQueue creates a new catalog queue with the specified buffer size
func NewCatalogQueue(bufferSize int, logger *logrus.Logger) *CatalogQueue {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	return &CatalogQueue{
		items:    make(chan *models.Catalog, bufferSize),
		done:     make(chan struct{}),
		maxSize:  bufferSize,
		logger:   logger,
		handlers: make([]func(*models.Catalog) error, 0),
	}
}

// Push adds a catalog to the queue
func (q *CatalogQueue) Push(catalog *models.Catalog) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	// Non-blocking send to prevent deadlocks
	select {
	case q.items <- catalog:
		q.logger.WithFields(logrus.Fields{
			"run_id":     catalog.RunID,
			"properties": catalog.TotalProperties,
		}).Debug("Pushed catalog to queue")
		return nil
	default:
		return ErrQueueFull
	}
}

// Subscribe adds a handler function that will be called for each catalog
func (q *CatalogQueue) Subscribe(handler func(*models.Catalog) error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers = append(q.handlers, handler)
}

// Start begins processing items in the queue
func (q *CatalogQueue) Start() {
	go q.process()
}

// process handles the queue processing loop
func (q *CatalogQueue) process() {
	for {
		select {
		case <-q.done:
			return
		case catalog, ok := <-q.items:
			if !ok {
				return
			}
			q.dispatch(catalog)
		}
	}
}

// dispatch sends the catalog to all subscribed handlers
func (q *CatalogQueue) dispatch(catalog *models.Catalog) {
	q.mu.RLock()
	handlers := q.handlers
	q.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(catalog); err != nil {
			q.logger.WithError(err).WithField("run_id", catalog.RunID).Error("Handler failed to process catalog")
		}
	}
}

// Close stops the queue and prevents new items from being added
func (q *CatalogQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	q.closed = true
	close(q.done)
	close(q.items)
	return nil
}

// Len returns the current number of catalogs in the queue
func (q *CatalogQueue) Len() int {
	return len(q.items)
}

// IsClosed returns whether the queue has been closed
func (q *CatalogQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
