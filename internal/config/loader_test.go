package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigExpandsEnvAndDefaults(t *testing.T) {
	t.Setenv("AGEGATE_VERSION", "1.2.0")
	path := writeConfig(t, `
env: test
version: ${AGEGATE_VERSION}
bridge:
  endpoint: http://localhost:9000/signals
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "1.2.0", cfg.Version)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 24*time.Hour, cfg.Cache.MaxAge)
	assert.Equal(t, "badger", cfg.Storage.Backend)
	assert.NotEmpty(t, cfg.Storage.Path)
}

func TestLoadConfigThresholdOverride(t *testing.T) {
	path := writeConfig(t, `
version: 1.2.0
bridge:
  endpoint: http://localhost:9000/signals
thresholds:
  personalized_ads_min_age: 16
  features:
    - key: gambling
      label: Simulated gambling
      min_age: 18
      requires_adult: true
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	m := cfg.Model()
	assert.Equal(t, 16, m.PersonalizedAdsMinAge)
	require.Len(t, m.Features, 1)
	assert.Equal(t, `v1|ads=16|"gambling":18:1`, m.Fingerprint())
}

func TestLoadConfigRejections(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing version", `
bridge:
  endpoint: http://localhost:9000/signals
`},
		{"missing bridge endpoint", `
version: 1.2.0
`},
		{"redis backend without address", `
version: 1.2.0
bridge:
  endpoint: http://localhost:9000/signals
storage:
  backend: redis
`},
		{"postgres backend without dsn", `
version: 1.2.0
bridge:
  endpoint: http://localhost:9000/signals
storage:
  backend: postgres
`},
		{"unknown backend", `
version: 1.2.0
bridge:
  endpoint: http://localhost:9000/signals
storage:
  backend: etcd
`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tc.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
