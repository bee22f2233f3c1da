package formula

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/bohica-labs/writescore-installer/internal/config/validate"
	"gopkg.in/yaml.v3"
)

// Parse validates YAML formula data against the schema, decodes it and
// checks the descriptor invariants.
func Parse(data []byte) (Descriptor, error) {
	if err := validate.ValidateFormulaYAML(data); err != nil {
		return Descriptor{}, err
	}

	var d Descriptor
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		return Descriptor{}, fmt.Errorf("decoding formula: %w", err)
	}

	d = d.Normalize()
	if err := d.Validate(); err != nil {
		return Descriptor{}, err
	}
	return d, nil
}

// LoadFile reads and parses a formula file.
func LoadFile(path string) (Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Descriptor{}, fmt.Errorf("reading formula %s: %w", path, err)
	}
	d, err := Parse(data)
	if err != nil {
		return Descriptor{}, fmt.Errorf("formula %s: %w", path, err)
	}
	return d, nil
}

// Resolve returns the formula at path, or the built-in WriteScore descriptor
// when path is empty.
func Resolve(path string) (Descriptor, error) {
	if path == "" {
		return WriteScore().Normalize(), nil
	}
	return LoadFile(path)
}

// Marshal renders d as "yaml" or "json".
func Marshal(d Descriptor, format string) ([]byte, error) {
	switch format {
	case "", "yaml":
		return yaml.Marshal(d)
	case "json":
		return json.MarshalIndent(d, "", "  ")
	default:
		return nil, fmt.Errorf("unsupported format %q (expected yaml|json)", format)
	}
}
