package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
functions:
  Geo.Near: MYLIB::GEO::NEAR
cache_size: 16
db: ./aqlc.db
format: json
`))
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"Geo.Near": "MYLIB::GEO::NEAR"}, cfg.Functions)
	assert.Equal(t, 16, cfg.CacheSize)
	assert.Equal(t, "./aqlc.db", cfg.DB)
	assert.Equal(t, "json", cfg.Format)
}

func TestParseConfigDefaults(t *testing.T) {
	for _, doc := range []string{"", "cache_size: 0\n"} {
		cfg, err := ParseConfig([]byte(doc))
		require.NoError(t, err)
		assert.Equal(t, DefaultCacheSize, cfg.CacheSize)
		assert.Empty(t, cfg.Format)
	}
}

func TestParseConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{"unknown key", "colour: red\n", "field colour not found"},
		{"negative cache", "cache_size: -1\n", "must not be negative"},
		{"bad format", "format: xml\n", "invalid format"},
		{"bad function name", "functions: {Geo.Near: \"not valid\"}\n", "functions"},
		{"not a mapping", "- a\n- b\n", "parsing config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "aqlc.yaml")

	cfg, err := LoadConfig(missing, false)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	_, err = LoadConfig(missing, true)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(missing, []byte("cache_size: 4\n"), 0644))
	cfg, err = LoadConfig(missing, true)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.CacheSize)
}

func TestMergeFunctions(t *testing.T) {
	cfg := &Config{Functions: map[string]string{"Geo.Near": "A::NEAR", "Text.Slug": "SLUG"}}

	merged := cfg.MergeFunctions(map[string]string{"Text.Slug": "SLUGIFY"})

	assert.Equal(t, map[string]string{"Geo.Near": "A::NEAR", "Text.Slug": "SLUGIFY"}, merged)
	assert.Nil(t, DefaultConfig().MergeFunctions(nil))
}

func TestConfigRegistry(t *testing.T) {
	cfg := &Config{Functions: map[string]string{"Geo.Near": "A::NEAR"}}

	r, err := cfg.Registry(map[string]string{"Text.Slug": "SLUGIFY"})
	require.NoError(t, err)

	name, ok := r.Lookup("Geo.Near")
	require.True(t, ok)
	assert.Equal(t, "A::NEAR", name)
	name, ok = r.Lookup("Text.Slug")
	require.True(t, ok)
	assert.Equal(t, "SLUGIFY", name)
	name, _ = r.Lookup("Aql.Trim")
	assert.Equal(t, "TRIM", name)
}
