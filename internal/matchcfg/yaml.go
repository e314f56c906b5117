package matchcfg

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
)

type fileDocument struct {
	Customers map[string]CustomerConfig `yaml:"customers"`
}

// YAMLLoader serves configs from a document shaped like:
//
//	customers:
//	  ACME:
//	    style_match_strategy: alias_related_item
//	    style_field_name: Style
type YAMLLoader struct {
	customers map[string]CustomerConfig
}

func LoadYAMLFile(path string) (*YAMLLoader, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read customer config %s: %w", path, err)
	}
	return ParseYAML(blob)
}

func ParseYAML(blob []byte) (*YAMLLoader, error) {
	var doc fileDocument
	if err := yaml.Unmarshal(blob, &doc); err != nil {
		return nil, fmt.Errorf("parse customer config: %w", err)
	}
	out := &YAMLLoader{customers: make(map[string]CustomerConfig, len(doc.Customers))}
	for name, cfg := range doc.Customers {
		out.customers[strings.ToUpper(strings.TrimSpace(name))] = cfg
	}
	return out, nil
}

func (l *YAMLLoader) Load(customer string) (CustomerConfig, error) {
	cfg, ok := l.customers[strings.ToUpper(strings.TrimSpace(customer))]
	if !ok {
		return CustomerConfig{}, ErrNoConfig
	}
	return cfg, nil
}

// ChainLoader asks each loader in turn, moving on only on ErrNoConfig.
type ChainLoader []Loader

func (c ChainLoader) Load(customer string) (CustomerConfig, error) {
	for _, l := range c {
		if l == nil {
			continue
		}
		cfg, err := l.Load(customer)
		if errors.Is(err, ErrNoConfig) {
			continue
		}
		return cfg, err
	}
	return CustomerConfig{}, ErrNoConfig
}
