package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testEnvKeys = []string{
	"SERVER_PORT", "ENVIRONMENT", "LOG_LEVEL", "AUTH_MODE", "STORE_DRIVER", "STORAGE_DRIVER",
	"MESSAGE_MAX_CONTENT_LENGTH", "ATTACHMENT_MAX_FILES", "ATTACHMENT_MAX_SIZE",
	"ATTACHMENT_ALLOWED_EXTENSIONS", "ORPHAN_SWEEP_CRON", "ORPHAN_GRACE_PERIOD",
	"SEND_RATE_PER_MINUTE", "API_RATE_PER_MINUTE",
}

func clearTestEnvVars() {
	for _, key := range testEnvKeys {
		os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearTestEnvVars()
	defer clearTestEnvVars()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, StoreFirestore, cfg.StoreDriver)
	assert.Equal(t, StorageGCS, cfg.StorageDriver)
	assert.Equal(t, AuthFirebase, cfg.AuthMode)
	assert.Equal(t, 5000, cfg.Messaging.MaxContentLength)
	assert.Equal(t, 5, cfg.Attachment.MaxFiles)
	assert.Equal(t, int64(10*1024*1024), cfg.Attachment.MaxSize)
	assert.Contains(t, cfg.Attachment.AllowedExtensions, "docx")
	assert.Equal(t, time.Hour, cfg.Sweeper.GracePeriod)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	clearTestEnvVars()
	defer clearTestEnvVars()

	os.Setenv("STORE_DRIVER", "mongo")
	os.Setenv("STORAGE_DRIVER", "gridfs")
	os.Setenv("MESSAGE_MAX_CONTENT_LENGTH", "100")
	os.Setenv("ATTACHMENT_ALLOWED_EXTENSIONS", ".PNG, pdf ,")
	os.Setenv("ORPHAN_GRACE_PERIOD", "15m")
	os.Setenv("ATTACHMENT_MAX_SIZE", "2MiB")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreMongo, cfg.StoreDriver)
	assert.Equal(t, StorageGridFS, cfg.StorageDriver)
	assert.Equal(t, 100, cfg.Messaging.MaxContentLength)
	assert.Equal(t, []string{"png", "pdf"}, cfg.Attachment.AllowedExtensions)
	assert.Equal(t, 15*time.Minute, cfg.Sweeper.GracePeriod)
	assert.Equal(t, int64(2*1024*1024), cfg.Attachment.MaxSize)
}

func TestValidate_Rejects(t *testing.T) {
	base := func() *Config {
		return &Config{
			StoreDriver:   StoreFirestore,
			StorageDriver: StorageGCS,
			AuthMode:      AuthFirebase,
			Messaging:     MessagingConfig{MaxContentLength: 10, SendRatePerMin: 1, APIRatePerMin: 1},
			Attachment:    AttachmentConfig{MaxFiles: 1, MaxSize: 1},
			Sweeper:       SweeperConfig{Cron: "*/5 * * * *"},
		}
	}

	require.NoError(t, base().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown store", func(c *Config) { c.StoreDriver = "mysql" }},
		{"unknown storage", func(c *Config) { c.StorageDriver = "s3" }},
		{"gridfs without mongo", func(c *Config) { c.StorageDriver = StorageGridFS }},
		{"unknown auth", func(c *Config) { c.AuthMode = "basic" }},
		{"zero content length", func(c *Config) { c.Messaging.MaxContentLength = 0 }},
		{"zero send rate", func(c *Config) { c.Messaging.SendRatePerMin = 0 }},
		{"bad cron", func(c *Config) { c.Sweeper.Cron = "every minute" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestGetEnvHelpers(t *testing.T) {
	os.Setenv("TEST_INT", "42")
	os.Setenv("INVALID_INT", "not-a-number")
	defer os.Unsetenv("TEST_INT")
	defer os.Unsetenv("INVALID_INT")

	assert.Equal(t, 42, getEnvAsInt("TEST_INT", 10))
	assert.Equal(t, 10, getEnvAsInt("INVALID_INT", 10))
	assert.Equal(t, "fallback", getEnv("NON_EXISTENT_KEY", "fallback"))

	os.Setenv("TEST_BYTES", "1500")
	defer os.Unsetenv("TEST_BYTES")
	assert.Equal(t, int64(1500), getEnvAsBytes("TEST_BYTES", 1))
	assert.Equal(t, int64(7), getEnvAsBytes("INVALID_INT", 7))
}
