// Package profiles loads named connection presets from a YAML file so the UI
// sidebar can be pre-filled. The file is optional.
package profiles

import (
	"fmt"
	"os"

	"github.com/ternarybob/arbor"
	"gopkg.in/yaml.v3"

	"github.com/searchops/meilivault/internal/models"
)

// Service serves connection presets.
type Service struct {
	path   string
	logger arbor.ILogger
}

// NewService creates a profiles service reading from path.
func NewService(path string, logger arbor.ILogger) *Service {
	return &Service{path: path, logger: logger}
}

type profilesFile struct {
	Profiles []models.Profile `yaml:"profiles"`
}

// List returns all presets with key material redacted. A missing file is not
// an error; it returns an empty list.
func (s *Service) List() ([]models.Profile, error) {
	loaded, err := s.load()
	if err != nil {
		return nil, err
	}

	redacted := make([]models.Profile, 0, len(loaded))
	for _, p := range loaded {
		redacted = append(redacted, p.Redacted())
	}
	return redacted, nil
}

// Get returns one preset by name with its keys intact, for server-side use.
func (s *Service) Get(name string) (*models.Profile, error) {
	loaded, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, p := range loaded {
		if p.Name == name {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("profile %q not found", name)
}

func (s *Service) load() ([]models.Profile, error) {
	if s.path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read profiles file %s: %w", s.path, err)
	}

	var file profilesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse profiles file %s: %w", s.path, err)
	}

	for _, p := range file.Profiles {
		if p.Name == "" {
			return nil, fmt.Errorf("profiles file %s: profile without a name", s.path)
		}
	}
	return file.Profiles, nil
}
