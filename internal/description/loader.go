// Package description loads declarative device descriptions and composes
// them into a device configuration bound to a process image.
package description

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/KevinKickass/OpenProfinetDevice/internal/types"
	"gopkg.in/yaml.v3"
)

var ErrUnknownFormat = errors.New("description: unknown file format")

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFromPath picks the format by file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
}

type Loader struct {
	cache     sync.Map
	validator *Validator
}

func NewLoader() (*Loader, error) {
	validator, err := NewValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to create validator: %w", err)
	}

	return &Loader{validator: validator}, nil
}

func (l *Loader) Load(path string) (*types.DeviceDescription, error) {
	if cached, ok := l.cache.Load(path); ok {
		return cached.(*types.DeviceDescription), nil
	}

	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read description: %w", err)
	}

	desc, err := l.Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	l.cache.Store(path, desc)

	return desc, nil
}

// Parse decodes data, normalizes it to JSON and validates it before the
// typed decode.
func (l *Loader) Parse(data []byte, format Format) (*types.DeviceDescription, error) {
	canonical, err := toJSON(data, format)
	if err != nil {
		return nil, err
	}

	if err := l.validator.Validate(canonical); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var desc types.DeviceDescription
	if err := json.Unmarshal(canonical, &desc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal description: %w", err)
	}

	return &desc, nil
}

func (l *Loader) ClearCache() {
	l.cache.Range(func(key, value interface{}) bool {
		l.cache.Delete(key)
		return true
	})
}

func toJSON(data []byte, format Format) ([]byte, error) {
	var doc interface{}
	switch format {
	case FormatJSON:
		return data, nil
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("invalid YAML: %w", err)
		}
	case FormatTOML:
		var table map[string]interface{}
		if _, err := toml.Decode(string(data), &table); err != nil {
			return nil, fmt.Errorf("invalid TOML: %w", err)
		}
		doc = table
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}

	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize %s: %w", format, err)
	}
	return out, nil
}
