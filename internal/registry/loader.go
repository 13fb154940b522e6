package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a sources file. Files ending in .yaml or .yml are decoded as
// YAML, everything else as JSON. Unknown fields are rejected in both formats
// so typos in selector keys do not silently disable a rule.
func LoadFile(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return DecodeYAML(b)
	default:
		return DecodeJSON(b)
	}
}

// DecodeJSON parses a JSON sources document.
func DecodeJSON(b []byte) (*File, error) {
	var f File
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse sources json: %w", err)
	}
	if len(f.Sources) == 0 {
		return nil, &ConfigError{Source: "*", Err: ErrNoSources}
	}
	return &f, nil
}

// DecodeYAML parses a YAML sources document.
func DecodeYAML(b []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse sources yaml: %w", err)
	}
	if len(f.Sources) == 0 {
		return nil, &ConfigError{Source: "*", Err: ErrNoSources}
	}
	return &f, nil
}

// Load reads path and returns a validated Registry plus the file's settings.
func Load(path string) (*Registry, Settings, error) {
	f, err := LoadFile(path)
	if err != nil {
		return nil, Settings{}, err
	}
	reg, err := New(f.Sources)
	if err != nil {
		return nil, Settings{}, err
	}
	return reg, f.Aggregator, nil
}
