package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"estatemerge/internal/models"
)

var ErrInvalidManifest = errors.New("invalid manifest")

// Manifest lists the already collected inputs of an integration run.
type Manifest struct {
	Area    string           `yaml:"area"`
	Sources []ManifestSource `yaml:"sources"`
}

// ManifestSource is one platform input: a JSON file or a collector command
// printing JSON messages on stdout.
type ManifestSource struct {
	Platform  models.Platform `yaml:"platform"`
	Path      string          `yaml:"path"`
	Command   []string        `yaml:"command"`
	Synthetic bool            `yaml:"synthetic"`
}

// LoadManifest reads a YAML manifest, expanding ${VAR} references. Relative
// paths are resolved against the manifest's directory.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	base := filepath.Dir(path)
	for i := range m.Sources {
		if p := m.Sources[i].Path; p != "" && !filepath.IsAbs(p) {
			m.Sources[i].Path = filepath.Join(base, p)
		}
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks that every source names a supported platform and exactly one input.
func (m *Manifest) Validate() error {
	if len(m.Sources) == 0 {
		return fmt.Errorf("%w: no sources", ErrInvalidManifest)
	}
	for i, s := range m.Sources {
		if !s.Platform.IsSupported() {
			return fmt.Errorf("%w: source %d: unsupported platform %q", ErrInvalidManifest, i, s.Platform)
		}
		if (s.Path == "") == (len(s.Command) == 0) {
			return fmt.Errorf("%w: source %d: exactly one of path or command is required", ErrInvalidManifest, i)
		}
	}
	return nil
}
