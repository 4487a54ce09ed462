package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "autoscore.json")
	data := `{
		"api_keys": ["key-one", "key-two"],
		"model": "gemini-2.5-flash",
		"score_min": 40,
		"score_max": 100,
		"workers": 8,
		"retention_minutes": 30
	}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"key-one", "key-two"}, cfg.APIKeys)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 40.0, cfg.ScoreMin)
	assert.Equal(t, 30*time.Minute, cfg.Retention())
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig("")
	assert.Error(t, err)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("GEMINI_API_KEYS", "aaa, bbb ,,ccc")
	t.Setenv("AUTOSCORE_WORKERS", "6")
	t.Setenv("AUTOSCORE_PORT", "9090")

	cfg := FromEnv()
	assert.Equal(t, []string{"aaa", "bbb", "ccc"}, cfg.APIKeys)
	assert.Equal(t, 6, cfg.Workers)
	assert.Equal(t, 9090, cfg.Port)
}

func TestFromEnv_SingleKeyFallback(t *testing.T) {
	t.Setenv("GEMINI_API_KEYS", "")
	t.Setenv("GEMINI_API_KEY", "solo-key")

	cfg := FromEnv()
	assert.Equal(t, []string{"solo-key"}, cfg.APIKeys)
}

func TestMergeWithDefaults(t *testing.T) {
	fileCfg := Config{Workers: 2, Model: "gemini-2.5-pro"}
	envCfg := Config{APIKeys: []string{"env-key"}, Workers: 8, Port: 9000}

	merged := fileCfg.MergeWithDefaults(envCfg)
	assert.Equal(t, []string{"env-key"}, merged.APIKeys)
	assert.Equal(t, 2, merged.Workers, "file value wins over environment")
	assert.Equal(t, "gemini-2.5-pro", merged.Model)
	assert.Equal(t, 9000, merged.Port)
}

func TestFinalize(t *testing.T) {
	cfg := Config{}.Finalize()
	assert.Equal(t, DefaultModel, cfg.Model)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, float64(DefaultScoreMin), cfg.ScoreMin)
	assert.Equal(t, float64(DefaultScoreMax), cfg.ScoreMax)
	assert.Equal(t, DefaultRetention, cfg.Retention())
}

func TestValidate(t *testing.T) {
	valid := Config{APIKeys: []string{"k"}, ScoreMin: 0, ScoreMax: 100}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name string
		cfg  Config
	}{
		{"no keys", Config{ScoreMin: 0, ScoreMax: 100}},
		{"inverted bounds", Config{APIKeys: []string{"k"}, ScoreMin: 100, ScoreMax: 40}},
		{"negative workers", Config{APIKeys: []string{"k"}, ScoreMax: 100, Workers: -1}},
		{"bad port", Config{APIKeys: []string{"k"}, ScoreMax: 100, Port: 99999}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.cfg.Validate())
		})
	}
}
