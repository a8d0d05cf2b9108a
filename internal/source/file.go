package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"estatemerge/internal/models"
)

// FileSource reads a JSON file holding either an array of records or an
// object with the array under "properties", "items" or "data".
type FileSource struct {
	platform  models.Platform
	path      string
	synthetic bool
}

func NewFileSource(platform models.Platform, path string, synthetic bool) *FileSource {
	return &FileSource{platform: platform, path: path, synthetic: synthetic}
}

func (s *FileSource) Platform() models.Platform { return s.platform }
func (s *FileSource) Origin() string            { return s.path }
func (s *FileSource) Synthetic() bool           { return s.synthetic }

func (s *FileSource) Load(ctx context.Context) ([]models.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, unavailable(s, fmt.Errorf("failed to read file: %w", err))
	}

	records, err := DecodeRecords(data)
	if err != nil {
		return nil, unavailable(s, err)
	}
	return records, nil
}

// DecodeRecords parses a JSON record array, bare or wrapped in an object.
// Numbers are kept as json.Number so long ids survive intact.
func DecodeRecords(data []byte) ([]models.RawRecord, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty input")
	}

	if data[0] == '[' {
		var records []models.RawRecord
		if err := decode(data, &records); err != nil {
			return nil, fmt.Errorf("failed to parse records: %w", err)
		}
		return records, nil
	}

	var wrapper map[string]json.RawMessage
	if err := decode(data, &wrapper); err != nil {
		return nil, fmt.Errorf("failed to parse records: %w", err)
	}
	for _, key := range []string{"properties", "items", "data"} {
		raw, ok := wrapper[key]
		if !ok {
			continue
		}
		var records []models.RawRecord
		if err := decode(raw, &records); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", key, err)
		}
		return records, nil
	}
	return nil, fmt.Errorf("no record array found")
}

func decode(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}
