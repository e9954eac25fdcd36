package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 4000
jwt:
  secret: from-file
  access_ttl: 15m
aws:
  region: eu-west-1
  s3_bucket: covers
`)
	t.Setenv("TOKEN_SECRET", "from-env")
	t.Setenv("REFRESH_TOKEN_EXPIRES", "3d")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4000, cfg.Server.Port)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessTTL)
	assert.Equal(t, 72*time.Hour, cfg.JWT.RefreshTTL)
	assert.Equal(t, "https://covers.s3.eu-west-1.amazonaws.com/", cfg.AWS.BaseURL())
}

func TestLoad_OAuthClientID(t *testing.T) {
	// Files written for older releases still carry a client secret; it is ignored.
	path := writeConfig(t, `
jwt:
  secret: s3cret
oauth:
  google_client_id: from-file.apps.googleusercontent.com
  google_client_secret: unused
`)
	t.Setenv("GOOGLE_CLIENT_ID", "")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file.apps.googleusercontent.com", cfg.OAuth.GoogleClientID)

	t.Setenv("GOOGLE_CLIENT_ID", "from-env.apps.googleusercontent.com")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env.apps.googleusercontent.com", cfg.OAuth.GoogleClientID)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("TOKEN_SECRET", "s3cret")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, time.Hour, cfg.JWT.AccessTTL)
	assert.Equal(t, int64(5<<20), cfg.Media.MaxUploadBytes)
}

func TestLoad_RequiresSecret(t *testing.T) {
	t.Setenv("TOKEN_SECRET", "")
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_BadPort(t *testing.T) {
	t.Setenv("TOKEN_SECRET", "x")
	t.Setenv("PORT", "eighty")
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"3600", time.Hour},
		{"7d", 7 * 24 * time.Hour},
		{"15m", 15 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseDuration("soon")
	assert.Error(t, err)
}

func TestBaseURL_Override(t *testing.T) {
	c := AWSConfig{PublicBaseURL: "http://localhost:9000/bucket"}
	assert.Equal(t, "http://localhost:9000/bucket/", c.BaseURL())
}

func TestDSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "n", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=n sslmode=disable", c.DSN())

	c.URL = "postgres://u:p@db/n"
	assert.Equal(t, "postgres://u:p@db/n", c.DSN())
}
