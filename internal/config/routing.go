package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RoutingFile is the optional YAML override of the task routing table.
//
//	default: gemini
//	routes:
//	  extraction: gemini
//	  chat: openai
type RoutingFile struct {
	Default string            `yaml:"default"`
	Routes  map[string]string `yaml:"routes"`
}

func LoadRoutingFile(path string) (*RoutingFile, error) {
	if path == "" {
		return &RoutingFile{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read routing file: %w", err)
	}

	var rf RoutingFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parse routing file %s: %w", path, err)
	}
	return &rf, nil
}
