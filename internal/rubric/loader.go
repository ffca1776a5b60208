package rubric

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tribunal/internal/arbitrate"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultRubric []byte

// Default returns the embedded default rubric.
func Default() *Rubric {
	r, err := Load(defaultRubric, ".yaml")
	if err != nil {
		panic(fmt.Sprintf("embedded rubric: %v", err))
	}
	return r
}

// LoadFromPath reads a rubric file (YAML or JSON) and validates it.
// Format is detected by extension (.yaml/.yml or .json) or by content.
func LoadFromPath(path string) (*Rubric, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rubric: %w", err)
	}
	return Load(data, filepath.Ext(path))
}

// Load parses a rubric from bytes. ext is the file extension used as a
// format hint; empty means detect from content. Thresholds missing from
// the document keep their defaults.
func Load(data []byte, ext string) (*Rubric, error) {
	r := &Rubric{Thresholds: arbitrate.DefaultThresholds()}

	ext = strings.ToLower(ext)
	if ext == ".yml" {
		ext = ".yaml"
	}
	if ext == "" {
		if strings.HasPrefix(strings.TrimSpace(string(data)), "{") {
			ext = ".json"
		} else {
			ext = ".yaml"
		}
	}
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, r); err != nil {
			return nil, fmt.Errorf("parse rubric json: %w", err)
		}
	case ".yaml":
		if err := yaml.Unmarshal(data, r); err != nil {
			return nil, fmt.Errorf("parse rubric yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported rubric format %q", ext)
	}

	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rubric: %w", err)
	}
	return r, nil
}
