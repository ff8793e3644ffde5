package config

import (
	"os"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHexKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func validConfig() *Config {
	return &Config{
		Env:                  "development",
		Port:                 "8420",
		JWTSecret:            "secure-secret-at-least-32-chars-long",
		DBPassword:           "secure-password",
		DBSSLMode:            "disable",
		EncryptionKey:        testHexKey,
		BulkStartConcurrency: 2,
	}
}

func TestConfig_ValidateEncryptionKey(t *testing.T) {
	tests := []struct {
		name        string
		key         string
		expectError bool
	}{
		{"hex key", testHexKey, false},
		{"raw 32 byte key", strings.Repeat("k", 32), false},
		{"missing key", "", true},
		{"short key", "abc", true},
		{"63 hex chars", testHexKey[:63], true},
		{"64 chars not hex", strings.Repeat("z", 64), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			c.EncryptionKey = tt.key

			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_EncryptionKeyBytesLength(t *testing.T) {
	c := validConfig()
	key, err := c.EncryptionKeyBytes()
	require.NoError(t, err)
	assert.Len(t, key, 32)
	assert.Equal(t, byte(0x1f), key[31])
}

func TestConfig_ValidateProduction(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
	}{
		{"default jwt secret", func(c *Config) { c.JWTSecret = "your-secret-key-change-in-production" }, true},
		{"weak db password", func(c *Config) { c.DBPassword = "password" }, true},
		{"ssl disabled", func(c *Config) { c.DBSSLMode = "disable" }, true},
		{"hardened", func(c *Config) { c.DBSSLMode = "require" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			c.Env = "production"
			c.DBSSLMode = "require"
			tt.mutate(c)

			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	defer os.Unsetenv("APP_ENV")
	defer os.Unsetenv("DB_SSLMODE")
	defer os.Unsetenv("ENCRYPTION_KEY")
	defer viper.Reset()

	os.Setenv("APP_ENV", "test")
	os.Setenv("DB_SSLMODE", "  DISABLE  ")
	os.Setenv("ENCRYPTION_KEY", testHexKey)

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "disable", c.DBSSLMode)
	assert.Equal(t, "https://apis.roblox.com/cloud/v2", c.RobloxCloudAPIURL)
	assert.Equal(t, 4, c.BulkStartConcurrency)
}

func TestLoadConfig_MissingKeyIsFatal(t *testing.T) {
	defer os.Unsetenv("APP_ENV")
	defer viper.Reset()

	os.Setenv("APP_ENV", "test")
	os.Unsetenv("ENCRYPTION_KEY")

	_, err := LoadConfig()
	assert.Error(t, err)
}
