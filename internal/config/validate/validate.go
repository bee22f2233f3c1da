package validate

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/bohica-labs/writescore-installer/internal/config/schema"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"sigs.k8s.io/yaml"
)

const schemaBaseURL = "https://bohica-labs.github.io/writescore-installer/"

// ValidateAgainstSchema validates JSON data against the named schema. ref
// optionally points at a sub-schema, e.g. "#/properties/test".
func ValidateAgainstSchema(name string, schemaData []byte, data []byte, ref string) error {
	url := schemaBaseURL + name

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, bytes.NewReader(schemaData)); err != nil {
		return fmt.Errorf("loading schema %s: %w", name, err)
	}

	target := url
	if ref != "" {
		target = url + ref
	}
	sch, err := compiler.Compile(target)
	if err != nil {
		return fmt.Errorf("compiling schema %s: %w", name, err)
	}

	var doc interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	if err := sch.Validate(doc); err != nil {
		return fmt.Errorf("schema validation against %s failed: %w", name, err)
	}
	return nil
}

// ValidateFormulaJSON validates a formula document in JSON form.
func ValidateFormulaJSON(data []byte) error {
	return ValidateAgainstSchema("formula.schema.json", schema.Formula, data, "")
}

// ValidateFormulaYAML converts a YAML formula to JSON and validates it.
func ValidateFormulaYAML(data []byte) error {
	jsonData, err := yaml.YAMLToJSON(data)
	if err != nil {
		return fmt.Errorf("invalid YAML: %w", err)
	}
	return ValidateFormulaJSON(jsonData)
}

// ValidateConfigJSON validates the global configuration in JSON form.
func ValidateConfigJSON(data []byte) error {
	return ValidateAgainstSchema("config.schema.json", schema.Config, data, "")
}

// ValidateConfigYAML converts a YAML config file to JSON and validates it.
func ValidateConfigYAML(data []byte) error {
	jsonData, err := yaml.YAMLToJSON(data)
	if err != nil {
		return fmt.Errorf("invalid YAML: %w", err)
	}
	return ValidateConfigJSON(jsonData)
}
