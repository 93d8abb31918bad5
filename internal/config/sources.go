package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/abelbrown/pulse/internal/model"
)

// sourcesFile is the YAML layout of a source list:
//
//	sources:
//	  - name: HousingWire
//	    category: mortgage
//	    rss: https://www.housingwire.com/feed/
type sourcesFile struct {
	Sources []model.Source `yaml:"sources"`
}

// LoadSources reads and validates a YAML source list.
func LoadSources(path string) ([]model.Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources: %w", err)
	}
	return ParseSources(data)
}

// ParseSources decodes a YAML source list. Every entry needs a name, an rss
// URL and a concrete category; duplicate names are rejected.
func ParseSources(data []byte) ([]model.Source, error) {
	var f sourcesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse sources: %w", err)
	}

	seen := make(map[string]bool)
	out := make([]model.Source, 0, len(f.Sources))
	for i, s := range f.Sources {
		s.Name = strings.TrimSpace(s.Name)
		s.RSS = strings.TrimSpace(s.RSS)
		if s.Name == "" || s.RSS == "" {
			return nil, fmt.Errorf("source %d: name and rss are required", i)
		}
		cat, err := model.ParseCategory(string(s.Category))
		if err != nil || cat.IsAll() {
			return nil, fmt.Errorf("source %q: %w", s.Name, model.ErrUnknownCategory)
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("source %q listed twice", s.Name)
		}
		seen[s.Name] = true
		s.Category = cat
		out = append(out, s)
	}
	return out, nil
}
