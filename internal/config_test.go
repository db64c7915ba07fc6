package internal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgconfig "github.com/starford/docdesk/pkg/config"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Zero(t, cfg.Backend.Timeout, "no request timeout by default")
	assert.EqualValues(t, 64<<20, cfg.App.HTTP.MaxUpload)
}

func TestBackendConfig_URL(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"http://127.0.0.1:5000", false},
		{"https://docs.example.com/base", false},
		{"", true},
		{"ftp://host", true},
		{"127.0.0.1:5000", true},
		{"http://", true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			cfg := BackendConfig{BaseURL: tt.url}
			if tt.wantErr {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}

func TestBackendConfig_NegativeTimeout(t *testing.T) {
	cfg := BackendConfig{BaseURL: DefaultBaseURL, Timeout: -time.Second}
	assert.Error(t, cfg.Validate())
}

func TestHTTPConfig_Port(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.App.HTTP.Port = 70000
	assert.Error(t, cfg.Validate(), "out of range port")
	assert.Equal(t, ":9000", (&HTTPConfig{Port: 9000}).Address())
}

func TestHTTPConfig_MaxUpload(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.App.HTTP.MaxUpload = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MaxUpload")
}

func TestWatchConfig_Required(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Watch.Dir = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Dir")
}

func TestLoad_YAMLWithEnvExpansion(t *testing.T) {
	t.Setenv("DOCDESK_TEST_BACKEND", "http://docs.internal:5000")
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
app:
  log_level: debug
  http:
    port: 9090
    max_upload: 1048576
backend:
  base_url: ${DOCDESK_TEST_BACKEND}
  timeout: 15s
watch:
  dir: /srv/drop
  ledger_path: /srv/ledger.db
  debounce: 1s
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg := NewDefaultConfig()
	require.NoError(t, pkgconfig.Load(path, cfg))
	assert.Equal(t, "http://docs.internal:5000", cfg.Backend.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, 9090, cfg.App.HTTP.Port)
	assert.EqualValues(t, 1<<20, cfg.App.HTTP.MaxUpload)
	assert.Equal(t, time.Second, cfg.Watch.Debounce)
	assert.Equal(t, 2*time.Second, cfg.App.EventThrottle, "unset fields keep defaults")
}
