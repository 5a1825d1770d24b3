package search

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "search.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, "depth: 6\nparallel: true\nneck_penalty: 50\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	want := DefaultConfig()
	want.Depth = 6
	want.Parallel = true
	want.NeckPenalty = 50
	assert.Equal(t, want, cfg)
}

func TestLoadConfig_EmptyFile(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown key", "dpeth: 3\n", "dpeth"},
		{"invalid depth", "depth: 0\n", "depth must be >= 1"},
		{"invalid divisor", "contest_divisor: 0\n", "contest_divisor must be > 0"},
		{"malformed", "depth: [1, 2\n", "parse search config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestConfig_ValidateJoinsErrors(t *testing.T) {
	cfg := Config{Depth: 0, HealthThreshold: -1, NeckPenalty: -1, ContestRadius: -1, ContestDivisor: 0}
	err := cfg.Validate()
	require.Error(t, err)
	for _, field := range []string{"depth", "health_threshold", "neck_penalty", "contest_radius", "contest_divisor"} {
		assert.Contains(t, err.Error(), field)
	}
	assert.NoError(t, DefaultConfig().Validate())
}
