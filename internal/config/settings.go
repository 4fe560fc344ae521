package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/studiowebux/chatload/internal/chatapi"
	"github.com/studiowebux/chatload/internal/logging"
	"github.com/studiowebux/chatload/internal/scenario"
)

// Defaults applied when neither a flag nor the settings file set a value
const (
	DefaultHost           = "http://localhost:3000"
	DefaultRequestTimeout = 30 * time.Second
)

// Settings is the content of the YAML settings file
type Settings struct {
	Host           string                              `yaml:"host"`
	Model          string                              `yaml:"model"`
	RequestTimeout time.Duration                       `yaml:"requestTimeout"`
	Database       string                              `yaml:"database"`
	LogLevel       string                              `yaml:"logLevel"`
	Development    bool                                `yaml:"development"`
	MetricsAddr    string                              `yaml:"metricsAddr"`
	Profiles       map[string]scenario.ProfileOverride `yaml:"profiles"`
}

// LoadSettings reads a settings file. A missing file yields empty settings
// unless required is set.
func LoadSettings(path string, required bool) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if required {
				return nil, fmt.Errorf("%w: %s", ErrSettingsNotFound, path)
			}
			return &Settings{}, nil
		}
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse settings file %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings file %s: %w", path, err)
	}
	return &s, nil
}

// Validate checks the values that can be checked without the rest of the run config
func (s *Settings) Validate() error {
	if s.Host != "" {
		u, err := url.Parse(s.Host)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("host must be an http(s) URL, got %q", s.Host)
		}
	}
	if s.RequestTimeout < 0 {
		return fmt.Errorf("requestTimeout must be non-negative, got %s", s.RequestTimeout)
	}
	for name, p := range s.Profiles {
		if p.Weight < 0 {
			return fmt.Errorf("profile %s: weight must be non-negative, got %d", name, p.Weight)
		}
		if p.MinWait < 0 || p.MaxWait < 0 {
			return fmt.Errorf("profile %s: wait times must be non-negative", name)
		}
	}
	return nil
}

// Merge fills every zero field of s from defaults and returns s.
// Flag values are applied by the caller on top of the result.
func (s *Settings) Merge() *Settings {
	if s.Host == "" {
		s.Host = DefaultHost
	}
	if s.Model == "" {
		s.Model = chatapi.DefaultModel
	}
	if s.RequestTimeout == 0 {
		s.RequestTimeout = DefaultRequestTimeout
	}
	if s.Database == "" {
		s.Database = DatabasePath
	}
	if s.LogLevel == "" {
		s.LogLevel = logging.DefaultLevel
	}
	return s
}
