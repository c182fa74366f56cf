package taskspec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads a task spec from the given file path.
//
// The file format is determined by extension: .yaml/.yml for YAML,
// .json for JSON. If the extension is unrecognized, YAML is attempted
// first, then JSON. Unknown fields are rejected. Defaults are applied
// after parsing; CreatedAt is not defaulted.
func Load(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("task spec file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read task spec file: %w", err)
	}
	return LoadFromBytes(data, path)
}

// LoadFromBytes parses a task spec from raw bytes. The path parameter
// is used for format detection and error messages; if empty, format
// detection falls back to trying YAML first.
func LoadFromBytes(data []byte, path string) (*Spec, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("task spec is empty")
	}

	spec, err := parseSpec(data, path)
	if err != nil {
		return nil, err
	}

	spec.ApplyDefaults()
	return spec, nil
}

// LoadFromReader parses a task spec from an io.Reader.
func LoadFromReader(r io.Reader, path string) (*Spec, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read task spec: %w", err)
	}
	return LoadFromBytes(data, path)
}

func parseSpec(data []byte, path string) (*Spec, error) {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".json":
		return parseJSON(data)
	case ".yaml", ".yml":
		return parseYAML(data)
	default:
		// Unknown extension: try YAML first (superset of JSON), then JSON.
		spec, yamlErr := parseYAML(data)
		if yamlErr == nil {
			return spec, nil
		}
		spec, jsonErr := parseJSON(data)
		if jsonErr == nil {
			return spec, nil
		}
		return nil, fmt.Errorf("failed to parse task spec (tried YAML and JSON): %w", yamlErr)
	}
}

func parseJSON(data []byte) (*Spec, error) {
	var spec Spec
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("invalid JSON in task spec: %w", err)
	}
	return &spec, nil
}

func parseYAML(data []byte) (*Spec, error) {
	var spec Spec
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("invalid YAML in task spec: %w", err)
	}
	return &spec, nil
}
