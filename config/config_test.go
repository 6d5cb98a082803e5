package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenUnset(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 10, cfg.Retry.MaxRetriesDownload)
	assert.Equal(t, 3, cfg.Pipeline.UploadConcurrency)
	assert.Nil(t, cfg.Courses.DefaultCourseID)
}

func TestLoad_ReadsOverridesFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("MAX_RETRIES_DOWNLOAD", "4")
	t.Setenv("LMS_REQUESTS_PER_SECOND", "2.5")
	t.Setenv("WEBHOOK_DISABLE_SIGNATURE", "true")
	t.Setenv("INITIAL_BACKOFF_MS", "1500")
	t.Setenv("DEFAULT_COURSE_ID", "42")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 4, cfg.Retry.MaxRetriesDownload)
	assert.Equal(t, 2.5, cfg.LMS.RequestsPerSecond)
	assert.True(t, cfg.Webhook.DisableSignature)
	assert.Equal(t, 1500*time.Millisecond, cfg.Retry.InitialBackoff)
	require.NotNil(t, cfg.Courses.DefaultCourseID)
	assert.Equal(t, int64(42), *cfg.Courses.DefaultCourseID)
}

func TestLoad_InvalidIntFallsBackToDefault(t *testing.T) {
	t.Setenv("MAX_RETRIES_UPLOAD", "not-a-number")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Retry.MaxRetriesUpload)
}

func TestDatabaseConfig_DSN_PrefersURL(t *testing.T) {
	db := DatabaseConfig{URL: "postgres://explicit-dsn"}
	assert.Equal(t, "postgres://explicit-dsn", db.DSN())
}

func TestDatabaseConfig_DSN_BuildsFromParts(t *testing.T) {
	db := DatabaseConfig{User: "u", Password: "p", Host: "h", Port: "5432", DBName: "db", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@h:5432/db?sslmode=disable", db.DSN())
}
