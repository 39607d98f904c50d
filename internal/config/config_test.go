package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "memory", c.Storage.Driver)
	assert.Equal(t, 10*time.Minute, c.OAuth.CodeTTL)
	assert.Equal(t, 3*time.Second, c.Storage.Timeout)
	assert.Equal(t, 3, c.Storage.ReadRetries)
	assert.Equal(t, "", c.Server.BasePath)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	p := writeYAML(t, `
app:
  env: staging
server:
  base_path: oauth/
storage:
  driver: sqlite
  dsn: file:clinic.db
oauth:
  code_ttl: 2m
`)
	t.Setenv("OAUTH_CODE_TTL", "90s")
	t.Setenv("SECRETBOX_MASTER_KEY", "k")

	c, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "staging", c.App.Env)
	assert.Equal(t, "/oauth", c.Server.BasePath)
	assert.Equal(t, "sqlite", c.Storage.Driver)
	assert.Equal(t, 90*time.Second, c.OAuth.CodeTTL)
	assert.Equal(t, "k", c.Security.SecretboxMasterKey)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"sql without dsn", func(c *Config) { c.Storage.Driver = "postgres" }, false},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "mongo" }, false},
		{"static user in prod", func(c *Config) { c.App.Env = "prod"; c.Auth.StaticUserID = 1 }, false},
		{"half basic auth", func(c *Config) { c.Auth.IntrospectUser = "rs" }, false},
		{"zero retries", func(c *Config) { c.Storage.ReadRetries = 0 }, false},
		{"sub-second refresh ttl", func(c *Config) { c.OAuth.RefreshTTL = 500 * time.Millisecond }, false},
		{"sub-second access ttl", func(c *Config) { c.OAuth.AccessTTL = 999 * time.Millisecond }, false},
		{"refresh off ignores ttl", func(c *Config) { c.OAuth.IssueRefresh = false; c.OAuth.RefreshTTL = 0 }, true},
		{"bad rate driver", func(c *Config) { c.Rate.Enabled = true; c.Rate.Driver = "x" }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Default()
			tc.mutate(c)
			err := c.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
