package wizard

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mrsinham/dicomweb"
)

// Settings collects everything needed to run one operation against a
// DICOMweb service, either from flags, a YAML config file, or the
// interactive wizard.
type Settings struct {
	URL            string            `yaml:"url"`
	Username       string            `yaml:"username,omitempty"`
	Password       string            `yaml:"password,omitempty"`
	CABundle       string            `yaml:"ca_bundle,omitempty"`
	TimeoutSeconds int               `yaml:"timeout_seconds,omitempty"`
	Operation      string            `yaml:"operation,omitempty"`
	StudyUID       string            `yaml:"study_uid,omitempty"`
	SeriesUID      string            `yaml:"series_uid,omitempty"`
	InstanceUID    string            `yaml:"instance_uid,omitempty"`
	Filters        map[string]string `yaml:"filters,omitempty"`
}

// ClientConfig converts the settings into a client configuration.
func (s *Settings) ClientConfig() dicomweb.Config {
	return dicomweb.Config{
		URL:      s.URL,
		Username: s.Username,
		Password: s.Password,
		CABundle: s.CABundle,
		Timeout:  time.Duration(s.TimeoutSeconds) * time.Second,
	}
}

// LoadFromYAML loads settings from a YAML config file.
func LoadFromYAML(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	if s.URL == "" {
		return nil, fmt.Errorf("config file %s has no url", path)
	}
	return &s, nil
}

// SaveToYAML saves settings to a YAML config file.
func SaveToYAML(s *Settings, path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("serialize config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file %s: %w", path, err)
	}
	return nil
}
