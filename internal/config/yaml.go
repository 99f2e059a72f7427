package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	yaml "go.yaml.in/yaml/v3"
)

// decode parses a YAML (or JSON, which is valid YAML) document into a Config.
//
// An empty document yields an empty Config. Unknown keys are ignored so that
// config files shared with other tools keep loading.
func decode(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("yaml unmarshal: %w", err)
	}
	// reject a second document (e.g. a stray "---" followed by content)
	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		if err == nil {
			return nil, fmt.Errorf("%w: multiple documents", ErrInvalid)
		}
		return nil, fmt.Errorf("yaml unmarshal: %w", err)
	}
	return &cfg, nil
}
