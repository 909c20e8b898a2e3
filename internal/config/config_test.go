package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, 1, cfg.Version)
	require.Equal(t, "http://localhost:5000", cfg.API.BaseURL)
	require.Equal(t, 15, cfg.API.TimeoutSeconds)
	require.Equal(t, 50, cfg.API.PageSize)
	require.Equal(t, "grid", cfg.UISettings.ViewMode)
}

func TestLoadFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `version = 1
token_file = "mytoken.json"

[api]
base_url = "https://api.stylesync.example"
timeout_seconds = 30
page_size = 25

[ui]
view_mode = "list"
show_price_ranges = false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cs := &configService{filePath: path}
	cfg, err := cs.Load()
	require.NoError(t, err)
	require.Equal(t, "https://api.stylesync.example", cfg.API.BaseURL)
	require.Equal(t, 30, cfg.API.TimeoutSeconds)
	require.Equal(t, 25, cfg.API.PageSize)
	require.Equal(t, "list", cfg.UISettings.ViewMode)
	require.Equal(t, "mytoken.json", cfg.TokenFile)
}

func TestPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `[api]
base_url = "https://api.stylesync.example"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cs := &configService{filePath: path}
	cfg, err := cs.Load()
	require.NoError(t, err)
	require.Equal(t, "https://api.stylesync.example", cfg.API.BaseURL)
	require.Equal(t, 15, cfg.API.TimeoutSeconds, "defaults fill unset fields")
	require.Equal(t, 50, cfg.API.PageSize)
}

func TestMissingFileFallsBackToDefaults(t *testing.T) {
	cs := &configService{filePath: filepath.Join(t.TempDir(), "nope.toml")}
	cfg, err := cs.Load()
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
}

func TestValidationRejectsBadValues(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"bad url", "[api]\nbase_url = \"not a url\"\n"},
		{"timeout too large", "[api]\nbase_url = \"http://localhost:5000\"\ntimeout_seconds = 600\n"},
		{"bad view mode", "[api]\nbase_url = \"http://localhost:5000\"\n[ui]\nview_mode = \"mosaic\"\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			require.NoError(t, os.WriteFile(path, []byte(tc.content), 0644))

			cs := &configService{filePath: path}
			_, err := cs.Load()
			require.Error(t, err)
			require.Contains(t, err.Error(), "validation")
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cs := &configService{filePath: path}

	cfg := DefaultConfig()
	cfg.API.PageSize = 10
	cfg.UISettings.ViewMode = "list"
	require.NoError(t, cs.Save(cfg))

	loaded, err := cs.Load()
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)
}
