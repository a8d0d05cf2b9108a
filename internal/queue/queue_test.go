package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"estatemerge/internal/models"
)

func TestNewCatalogQueue(t *testing.T) {
	logger := logrus.New()
	q := NewCatalogQueue(10, logger)
	assert.NotNil(t, q)
	assert.Equal(t, 10, q.maxSize)
	assert.False(t, q.IsClosed())
}

func TestCatalogQueue_Push(t *testing.T) {
	logger := logrus.New()
	q := NewCatalogQueue(2, logger)

	// Test successful push
	catalog := &models.Catalog{RunID: "run-1"}
	err := q.Push(catalog)
	assert.NoError(t, err)
	assert.Equal(t, 1, q.Len())

	// Test queue full
	_ = q.Push(&models.Catalog{RunID: "run-2"})
	err = q.Push(catalog)
	assert.Equal(t, ErrQueueFull, err)

	// Test closed queue
	q.Close()
	err = q.Push(catalog)
	assert.Equal(t, ErrQueueClosed, err)
}

func TestCatalogQueue_Subscribe(t *testing.T) {
	logger := logrus.New()
	q := NewCatalogQueue(10, logger)

	var processed []string
	var mu sync.Mutex

	q.Subscribe(func(catalog *models.Catalog) error {
		mu.Lock()
		processed = append(processed, catalog.RunID)
		mu.Unlock()
		return nil
	})

	q.Start()
	defer q.Close()

	assert.NoError(t, q.Push(&models.Catalog{RunID: "run-1"}))
	assert.NoError(t, q.Push(&models.Catalog{RunID: "run-2"}))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(processed) == 2
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []string{"run-1", "run-2"}, processed)
	mu.Unlock()
}

func TestCatalogQueue_Close(t *testing.T) {
	logger := logrus.New()
	q := NewCatalogQueue(10, logger)
	q.Start()

	// Test first close
	err := q.Close()
	assert.NoError(t, err)
	assert.True(t, q.IsClosed())

	// Test second close (should be no-op)
	err = q.Close()
	assert.NoError(t, err)
}

func TestCatalogQueue_Dispatch(t *testing.T) {
	logger := logrus.New()
	q := NewCatalogQueue(10, logger)

	var wg sync.WaitGroup
	processed := 0
	var mu sync.Mutex

	// Add multiple handlers
	for i := 0; i < 3; i++ {
		wg.Add(1)
		q.Subscribe(func(catalog *models.Catalog) error {
			mu.Lock()
			processed++
			mu.Unlock()
			wg.Done()
			return nil
		})
	}

	q.Start()
	defer q.Close()

	err := q.Push(&models.Catalog{RunID: "run-1"})
	assert.NoError(t, err)

	// Wait for all handlers
	wg.Wait()

	mu.Lock()
	assert.Equal(t, 3, processed)
	mu.Unlock()
}
