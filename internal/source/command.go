package source

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"

	"estatemerge/internal/models"
)

// CollectorMessage is one line a collector command prints on stdout.
type CollectorMessage struct {
	Type string          `json:"type"` // "items", "complete", or "error"
	Data json.RawMessage `json:"data"`
}

// CommandSource runs an external collector and gathers the records it
// prints. The collector owns fetching, retries and rate limits.
type CommandSource struct {
	platform  models.Platform
	command   []string
	synthetic bool
	logger    *logrus.Logger
}

func NewCommandSource(platform models.Platform, command []string, synthetic bool, logger *logrus.Logger) *CommandSource {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	return &CommandSource{platform: platform, command: command, synthetic: synthetic, logger: logger}
}

func (s *CommandSource) Platform() models.Platform { return s.platform }
func (s *CommandSource) Origin() string            { return strings.Join(s.command, " ") }
func (s *CommandSource) Synthetic() bool           { return s.synthetic }

// Load runs the collector to completion. An "error" message or a non-zero
// exit makes the whole source unavailable.
func (s *CommandSource) Load(ctx context.Context) ([]models.RawRecord, error) {
	if len(s.command) == 0 {
		return nil, unavailable(s, errors.New("empty command"))
	}

	s.logger.WithFields(logrus.Fields{
		"platform": s.platform,
		"command":  s.Origin(),
	}).Info("Starting collector")

	cmd := exec.CommandContext(ctx, s.command[0], s.command[1:]...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, unavailable(s, fmt.Errorf("failed to create stdout pipe: %w", err))
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, unavailable(s, fmt.Errorf("failed to create stderr pipe: %w", err))
	}

	if err := cmd.Start(); err != nil {
		return nil, unavailable(s, fmt.Errorf("failed to start collector: %w", err))
	}

	stderrDone := make(chan struct{})
	go func() {
		defer close(stderrDone)
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			s.logger.WithField("platform", s.platform).Warn(scanner.Text())
		}
	}()

	var records []models.RawRecord
	var collectorErr error

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var msg CollectorMessage
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			s.logger.WithError(err).Error("Failed to parse collector message")
			continue
		}

		switch msg.Type {
		case "items":
			items, err := DecodeRecords(msg.Data)
			if err != nil {
				s.logger.WithError(err).Error("Failed to parse items")
				continue
			}
			records = append(records, items...)

		case "complete":
			var complete struct {
				Status     string `json:"status"`
				Message    string `json:"message"`
				TotalItems int    `json:"total_items"`
			}
			if err := json.Unmarshal(msg.Data, &complete); err != nil {
				s.logger.WithError(err).Error("Failed to parse completion message")
				continue
			}
			s.logger.WithFields(logrus.Fields{
				"platform":    s.platform,
				"status":      complete.Status,
				"message":     complete.Message,
				"total_items": complete.TotalItems,
			}).Info("Collector completed")

		case "error":
			var errMsg struct {
				Message string `json:"message"`
			}
			if err := json.Unmarshal(msg.Data, &errMsg); err != nil {
				errMsg.Message = string(msg.Data)
			}
			collectorErr = fmt.Errorf("collector error: %s", errMsg.Message)
		}
	}
	scanErr := scanner.Err()

	<-stderrDone
	if err := cmd.Wait(); err != nil {
		return nil, unavailable(s, fmt.Errorf("collector execution failed: %w", err))
	}
	if scanErr != nil {
		return nil, unavailable(s, fmt.Errorf("failed to read collector output: %w", scanErr))
	}
	if collectorErr != nil {
		return nil, unavailable(s, collectorErr)
	}
	return records, nil
}
