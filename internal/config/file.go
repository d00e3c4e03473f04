package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ReadFile decodes a flat YAML mapping of flag name to scalar value. Nested
// mappings and sequences are rejected.
func ReadFile(path string) (map[string]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &MissingInputError{Path: path, What: "config file"}
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var doc map[string]yaml.Node
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	out := make(map[string]string, len(doc))
	for k, n := range doc {
		if n.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("config: %s: key %s: want a scalar value", path, k)
		}
		out[k] = n.Value
	}
	return out, nil
}

// LoadEnvFile loads a dotenv file into the process environment. Variables
// already set are kept.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &MissingInputError{Path: path, What: "env file"}
		}
		return fmt.Errorf("config: env file %s: %w", path, err)
	}
	return nil
}
