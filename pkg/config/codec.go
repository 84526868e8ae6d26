package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type codec struct {
	name      string
	unmarshal func([]byte, interface{}) error
	marshal   func(interface{}) ([]byte, error)
}

var (
	yamlCodec = codec{name: "YAML", unmarshal: yaml.Unmarshal, marshal: yaml.Marshal}
	jsonCodec = codec{
		name:      "JSON",
		unmarshal: json.Unmarshal,
		marshal: func(v interface{}) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		},
	}
)

func codecFor(path string) codec {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return jsonCodec
	}
	return yamlCodec
}

func decodeFile(path string, target interface{}) error {
	c := codecFor(path)

	// #nosec G304 -- the path comes from the operator (flag or env).
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s file %s: %w", c.name, path, err)
	}
	if err := c.unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", c.name, err)
	}
	return nil
}

// Save writes f to path in the format implied by the extension
func Save(path string, f *File) error {
	c := codecFor(path)

	data, err := c.marshal(f)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", c.name, err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s file: %w", c.name, err)
	}
	return nil
}
