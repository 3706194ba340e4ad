package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/aqlc/internal/aql"
)

// Config is the optional aqlc.yaml file.
//
//	functions:
//	  Geo.Near: MYLIB::GEO::NEAR
//	cache_size: 256
//	db: ./aqlc.db
//	format: text
type Config struct {
	// Functions maps extra callables to AQL function names. Definition
	// files may override individual entries.
	Functions map[string]string `yaml:"functions"`

	// CacheSize bounds the compile cache used by compile --watch and the
	// shell.
	CacheSize int `yaml:"cache_size"`

	// DB is the default compile log for compile, replay and log.
	DB string `yaml:"db"`

	// Format is the default output format.
	Format string `yaml:"format"`
}

// DefaultCacheSize is used when the config does not set cache_size.
const DefaultCacheSize = 128

// DefaultConfig returns the settings used without a config file.
func DefaultConfig() *Config {
	return &Config{CacheSize: DefaultCacheSize}
}

// LoadConfig reads a config file. A missing file yields the defaults
// unless required is set.
func LoadConfig(path string, required bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && !required {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes and checks a config document. Unknown keys are
// rejected.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.CacheSize < 0 {
		return nil, fmt.Errorf("cache_size must not be negative, got %d", cfg.CacheSize)
	}
	if cfg.CacheSize == 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	if cfg.Format != "" && !isValidFormat(cfg.Format) {
		return nil, fmt.Errorf("invalid format %q: must be one of %v", cfg.Format, ValidFormats)
	}
	if _, err := cfg.Registry(nil); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Registry returns the default functions extended with the configured
// mappings, then with overrides.
func (c *Config) Registry(overrides map[string]string) (*aql.FunctionRegistry, error) {
	merged := c.MergeFunctions(overrides)
	if len(merged) == 0 {
		return aql.DefaultFunctions, nil
	}
	r, err := aql.DefaultFunctions.Extend(merged)
	if err != nil {
		return nil, fmt.Errorf("functions: %w", err)
	}
	return r, nil
}

// MergeFunctions returns the configured mappings with overrides applied.
func (c *Config) MergeFunctions(overrides map[string]string) map[string]string {
	if len(c.Functions) == 0 && len(overrides) == 0 {
		return nil
	}
	merged := make(map[string]string, len(c.Functions)+len(overrides))
	for k, v := range c.Functions {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}
