package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"estatemerge/config"
	"estatemerge/internal/models"
)

// ErrSourceUnavailable marks a platform input that could not be loaded.
var ErrSourceUnavailable = errors.New("source unavailable")

// Source supplies one platform's raw records to an integration run.
type Source interface {
	Platform() models.Platform
	// Origin describes where records come from, for warnings and logs.
	Origin() string
	// Synthetic reports whether the records are generated rather than collected.
	Synthetic() bool
	Load(ctx context.Context) ([]models.RawRecord, error)
}

// UnavailableError wraps the reason a source could not be loaded.
type UnavailableError struct {
	Platform models.Platform
	Origin   string
	Err      error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s source %s unavailable: %v", e.Platform, e.Origin, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

func (e *UnavailableError) Is(target error) bool {
	return target == ErrSourceUnavailable
}

func unavailable(s Source, err error) error {
	return &UnavailableError{Platform: s.Platform(), Origin: s.Origin(), Err: err}
}

// StaticSource serves records already held in memory.
type StaticSource struct {
	platform  models.Platform
	records   []models.RawRecord
	synthetic bool
}

// NewStaticSource creates a source serving records for platform.
func NewStaticSource(platform models.Platform, records []models.RawRecord, synthetic bool) *StaticSource {
	return &StaticSource{platform: platform, records: records, synthetic: synthetic}
}

func (s *StaticSource) Platform() models.Platform { return s.platform }
func (s *StaticSource) Origin() string            { return "memory" }
func (s *StaticSource) Synthetic() bool           { return s.synthetic }

func (s *StaticSource) Load(ctx context.Context) ([]models.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.records, nil
}

// FromManifest builds sources for every manifest entry in order.
func FromManifest(m *config.Manifest, logger *logrus.Logger) []Source {
	sources := make([]Source, 0, len(m.Sources))
	for _, s := range m.Sources {
		if len(s.Command) > 0 {
			sources = append(sources, NewCommandSource(s.Platform, s.Command, s.Synthetic, logger))
			continue
		}
		sources = append(sources, NewFileSource(s.Platform, s.Path, s.Synthetic))
	}
	return sources
}
