// Package config loads run settings for the pointpca2 command from JSON or
// YAML files.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/pointpca2"
)

// maxFileSize bounds the size of a config file.
const maxFileSize = 1 * 1024 * 1024 // 1MB

// Output formats accepted by the format field.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// Config holds run settings. Every field is a pointer so that a partial file
// only overrides what it names; the Get* methods supply defaults for the
// rest.
type Config struct {
	SearchSize      *int    `json:"search_size,omitempty" yaml:"search_size,omitempty"`
	Workers         *int    `json:"workers,omitempty" yaml:"workers,omitempty"`
	MergeDuplicates *bool   `json:"merge_duplicates,omitempty" yaml:"merge_duplicates,omitempty"`
	Verbose         *bool   `json:"verbose,omitempty" yaml:"verbose,omitempty"`
	Format          *string `json:"format,omitempty" yaml:"format,omitempty"`
	DBPath          *string `json:"db,omitempty" yaml:"db,omitempty"`
}

func ptrInt(v int) *int          { return &v }
func ptrBool(v bool) *bool       { return &v }
func ptrString(v string) *string { return &v }

// Load reads a Config from a .json, .yaml or .yml file and validates it.
// Unknown keys are rejected.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if ext == ".json" {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else if len(bytes.TrimSpace(data)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the values that are set.
func (c *Config) Validate() error {
	if c.SearchSize != nil && *c.SearchSize < 1 {
		return fmt.Errorf("%w: search_size must be at least 1, got %d", pointpca2.ErrInvalidInput, *c.SearchSize)
	}
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative, got %d", pointpca2.ErrInvalidInput, *c.Workers)
	}
	if c.Format != nil {
		switch *c.Format {
		case FormatText, FormatJSON, FormatCSV:
		default:
			return fmt.Errorf("%w: format must be text, json or csv, got %q", pointpca2.ErrInvalidInput, *c.Format)
		}
	}
	return nil
}

// GetSearchSize returns the neighbourhood size or the library default.
func (c *Config) GetSearchSize() int {
	if c.SearchSize == nil {
		return pointpca2.DefaultSearchSize
	}
	return *c.SearchSize
}

// GetWorkers returns the worker bound; 0 means GOMAXPROCS.
func (c *Config) GetWorkers() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}

func (c *Config) GetMergeDuplicates() bool {
	return c.MergeDuplicates != nil && *c.MergeDuplicates
}

func (c *Config) GetVerbose() bool {
	return c.Verbose != nil && *c.Verbose
}

// GetFormat returns the output format, text by default.
func (c *Config) GetFormat() string {
	if c.Format == nil {
		return FormatText
	}
	return *c.Format
}

// GetDBPath returns the results database path, empty when runs are not
// recorded.
func (c *Config) GetDBPath() string {
	if c.DBPath == nil {
		return ""
	}
	return *c.DBPath
}

// Apply overlays the fields that are set onto opts.
func (c *Config) Apply(opts *pointpca2.Options) {
	if c.SearchSize != nil {
		opts.SearchSize = *c.SearchSize
	}
	if c.Workers != nil {
		opts.Workers = *c.Workers
	}
	if c.MergeDuplicates != nil {
		opts.MergeDuplicates = *c.MergeDuplicates
	}
	if c.Verbose != nil {
		opts.Verbose = *c.Verbose
	}
}

// Options returns the library options described by c.
func (c *Config) Options() pointpca2.Options {
	opts := pointpca2.DefaultOptions()
	c.Apply(&opts)
	return opts
}

// Set records a value by its file key, as used for command-line overrides.
func (c *Config) Set(key string, value any) error {
	switch key {
	case "search_size":
		v, ok := value.(int)
		if !ok {
			return fmt.Errorf("search_size: want int, got %T", value)
		}
		c.SearchSize = ptrInt(v)
	case "workers":
		v, ok := value.(int)
		if !ok {
			return fmt.Errorf("workers: want int, got %T", value)
		}
		c.Workers = ptrInt(v)
	case "merge_duplicates", "verbose":
		v, ok := value.(bool)
		if !ok {
			return fmt.Errorf("%s: want bool, got %T", key, value)
		}
		if key == "verbose" {
			c.Verbose = ptrBool(v)
		} else {
			c.MergeDuplicates = ptrBool(v)
		}
	case "format", "db":
		v, ok := value.(string)
		if !ok {
			return fmt.Errorf("%s: want string, got %T", key, value)
		}
		if key == "format" {
			c.Format = ptrString(v)
		} else {
			c.DBPath = ptrString(v)
		}
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	return c.Validate()
}
