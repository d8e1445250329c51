package settings

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileSource reads toggles from a YAML document. Missing keys keep their
// default values.
type FileSource struct {
	Path string
}

// Load implements Source.
func (s FileSource) Load(context.Context) (Snapshot, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read settings file: %w", err)
	}
	return ParseYAML(data)
}

// ParseYAML decodes a YAML settings document over Defaults.
func ParseYAML(data []byte) (Snapshot, error) {
	snap := Defaults()
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("parse settings yaml: %w", err)
	}
	return snap, nil
}

// ValueStore returns raw key/value settings, e.g. the settings table.
type ValueStore interface {
	Values(ctx context.Context) (map[string]string, error)
}

// StoreSource adapts a ValueStore to Source.
type StoreSource struct {
	Store ValueStore
}

// Load implements Source.
func (s StoreSource) Load(ctx context.Context) (Snapshot, error) {
	values, err := s.Store.Values(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return FromValues(values)
}
