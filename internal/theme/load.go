package theme

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a theme list from a YAML or JSON file. The format is
// chosen by extension; anything other than .json is parsed as YAML.
func LoadFile(path string) ([]Theme, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read theme file: %w", err)
	}

	var themes []Theme
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(raw, &themes)
	default:
		err = yaml.Unmarshal(raw, &themes)
	}
	if err != nil {
		return nil, fmt.Errorf("parse theme file %s: %w", filepath.Base(path), err)
	}

	if err := validateThemes(themes); err != nil {
		return nil, err
	}
	for i := range themes {
		themes[i].Complexity = ParseComplexity(string(themes[i].Complexity))
		if themes[i].PartCount < 1 {
			themes[i].PartCount = 1
		}
	}
	return themes, nil
}

// validateThemes performs structural checks on an imported theme list.
// Returns a combined error describing all problems found, or nil if valid.
func validateThemes(themes []Theme) error {
	var errs []string
	seen := make(map[int]bool, len(themes))
	for i, t := range themes {
		if t.ID <= 0 {
			errs = append(errs, fmt.Sprintf("entry %d: id must be positive", i))
			continue
		}
		if seen[t.ID] {
			errs = append(errs, fmt.Sprintf("duplicate theme id %d", t.ID))
		}
		seen[t.ID] = true
		if strings.TrimSpace(t.Title) == "" {
			errs = append(errs, fmt.Sprintf("theme %d: title is required", t.ID))
		}
		if t.EstimatedHours < 0 {
			errs = append(errs, fmt.Sprintf("theme %d: estimatedHours must not be negative", t.ID))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("theme validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}
