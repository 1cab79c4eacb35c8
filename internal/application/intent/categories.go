package intent

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Category is a business-specific intent loaded from tenant configuration.
type Category struct {
	Name      string   `yaml:"name"`
	Emergency bool     `yaml:"emergency"`
	Patterns  []string `yaml:"patterns"`
	Negations []string `yaml:"negations"`
	Response  string   `yaml:"response"`

	compiled  []*regexp.Regexp
	negations []*regexp.Regexp
}

func (c *Category) compile() error {
	if len(c.Patterns) == 0 {
		return errors.New("no patterns")
	}
	c.compiled = nil
	for _, p := range c.Patterns {
		re, err := regexp.Compile(`(?i)` + p)
		if err != nil {
			return err
		}
		c.compiled = append(c.compiled, re)
	}
	c.negations = nil
	for _, p := range c.Negations {
		re, err := regexp.Compile(`(?i)` + p)
		if err != nil {
			return err
		}
		c.negations = append(c.negations, re)
	}
	if len(c.Negations) == 0 {
		c.negations = defaultNegations
	}
	return nil
}

type categoriesFile struct {
	Categories []Category `yaml:"categories"`
}

// ParseCategories decodes a YAML category list.
func ParseCategories(data []byte) ([]Category, error) {
	var f categoriesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse intent categories: %w", err)
	}
	for i := range f.Categories {
		if f.Categories[i].Name == "" {
			return nil, fmt.Errorf("intent category %d has no name", i)
		}
	}
	return f.Categories, nil
}

// LoadCategories reads a tenant's intents.yaml. A missing file yields the
// default categories.
func LoadCategories(path string) ([]Category, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultCategories(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read intent categories: %w", err)
	}
	return ParseCategories(data)
}

// DefaultCategories apply when a tenant ships no intents.yaml.
func DefaultCategories() []Category {
	return []Category{
		{
			Name:      "emergency",
			Emergency: true,
			Patterns:  []string{`\b(emergency|911|can't breathe|cannot breathe|chest pain|bleeding heavily|severe pain|unconscious)\b`},
			Negations: []string{`\b(not an emergency|no emergency|isn't an emergency)\b`},
			Response:  "If this is a medical or safety emergency, please hang up and dial 911 right away.",
		},
		{
			Name:     "hours",
			Patterns: []string{`\b(hours|open|close|closing|opening)\b`},
		},
		{
			Name:     "pricing",
			Patterns: []string{`\b(price|prices|pricing|cost|costs|how much|fee|fees|rates?)\b`},
		},
		{
			Name:     "location",
			Patterns: []string{`\b(where are you|address|located|location|directions|parking)\b`},
		},
	}
}
