package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"
)

//go:embed statistics.yaml
var defaultStatistics []byte

// Statistic is a named figure located on the balance sheet by keyword.
type Statistic struct {
	Name    string   `yaml:"name" json:"name"`
	Phrases []string `yaml:"phrases" json:"phrases"`
}

// Catalogue is the set of named statistics searched for in every document.
type Catalogue struct {
	Statistics []Statistic `yaml:"statistics" json:"statistics"`
}

// DefaultCatalogue returns the built-in statistics catalogue.
func DefaultCatalogue() (*Catalogue, error) {
	return ParseCatalogue(defaultStatistics)
}

// LoadCatalogue reads the catalogue at path, or the built-in one when path
// is empty.
func LoadCatalogue(path string) (*Catalogue, error) {
	if path == "" {
		return DefaultCatalogue()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read statistics file: %w", err)
	}
	return ParseCatalogue(data)
}

// ParseCatalogue decodes and validates a YAML catalogue.
func ParseCatalogue(data []byte) (*Catalogue, error) {
	var c Catalogue
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse statistics catalogue: %w", err)
	}

	seen := make(map[string]bool, len(c.Statistics))
	for i, s := range c.Statistics {
		if s.Name == "" {
			return nil, fmt.Errorf("statistic %d has no name", i)
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("duplicate statistic %q", s.Name)
		}
		seen[s.Name] = true

		phrases := s.Phrases[:0]
		for _, p := range s.Phrases {
			if p = strings.TrimSpace(p); p != "" {
				phrases = append(phrases, p)
			}
		}
		if len(phrases) == 0 {
			return nil, fmt.Errorf("statistic %q has no phrases", s.Name)
		}
		c.Statistics[i].Phrases = phrases
	}
	return &c, nil
}

// AdHoc builds a catalogue from free phrases, one statistic per phrase.
func AdHoc(phrases []string) *Catalogue {
	c := &Catalogue{}
	for _, p := range phrases {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		c.Statistics = append(c.Statistics, Statistic{
			Name:    strings.ReplaceAll(strings.ToLower(p), " ", "_"),
			Phrases: []string{p},
		})
	}
	return c
}
