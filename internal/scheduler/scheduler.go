package scheduler

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Job is one integration run triggered by the scheduler
type Job func(ctx context.Context) error

// Scheduler re-runs the integration at a fixed interval
type Scheduler struct {
	job      Job
	interval time.Duration
	logger   *logrus.Logger
	stopChan chan struct{}
	wg       sync.WaitGroup
	jobMutex sync.Mutex // Ensures sequential job execution
	ctx      context.Context
	cancel   context.CancelFunc

	statsMu  sync.Mutex
	runs     int
	failures int
	lastRun  time.Time
}

// NewScheduler creates a new scheduler
func NewScheduler(job Job, interval time.Duration, logger *logrus.Logger) *Scheduler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
		logger.SetLevel(logrus.InfoLevel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		job:      job,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start runs the job once and then on every tick
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.runScheduler()
}

// runScheduler handles all scheduled runs
func (s *Scheduler) runScheduler() {
	defer s.wg.Done()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.jobMutex.Lock()
		defer s.jobMutex.Unlock()
		s.logger.Info("Running startup integration")
		s.execute("startup")
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case t := <-ticker.C:
			// Skip the tick while a previous run is still going
			if !s.jobMutex.TryLock() {
				s.logger.WithField("tick", t).Debug("Skipping scheduled integration while a run is in progress")
				continue
			}
			s.execute("scheduled")
			s.jobMutex.Unlock()
		}
	}
}

// RunNow runs the job immediately, waiting for any run in progress
func (s *Scheduler) RunNow() error {
	s.jobMutex.Lock()
	defer s.jobMutex.Unlock()
	return s.execute("manual")
}

func (s *Scheduler) execute(trigger string) error {
	start := time.Now()
	err := s.job(s.ctx)

	s.statsMu.Lock()
	s.runs++
	if err != nil {
		s.failures++
	}
	s.lastRun = start
	s.statsMu.Unlock()

	fields := logrus.Fields{
		"trigger":  trigger,
		"duration": time.Since(start).String(),
	}
	if err != nil {
		s.logger.WithError(err).WithFields(fields).Error("Integration job failed")
	} else {
		s.logger.WithFields(fields).Info("Integration job completed successfully")
	}
	return err
}

// Stats reports how many runs happened, how many failed and when the last one started
func (s *Scheduler) Stats() (runs, failures int, lastRun time.Time) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.runs, s.failures, s.lastRun
}

// Stop gracefully stops the scheduler, cancelling a run in progress
func (s *Scheduler) Stop() {
	s.cancel()
	close(s.stopChan)
	s.wg.Wait()
}
