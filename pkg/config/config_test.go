package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requiredEnv() map[string]string {
	return map[string]string{
		"DISCORD_TOKEN": "token",
		"DATABASE_URL":  "postgres://localhost/botross",
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfigFrom(requiredEnv())
	require.NoError(t, err)

	assert.Equal(t, "token", cfg.Discord.Token)
	assert.Equal(t, "postgres://localhost/botross", cfg.Store.DatabaseURL)
	assert.Equal(t, DefaultOwnerID, cfg.Discord.OwnerID)
	assert.Equal(t, `\`, cfg.Discord.Prefix)
	assert.Equal(t, 5*time.Second, cfg.Python.Timeout)
	assert.NotEmpty(t, cfg.Python.Command)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfig_Overrides(t *testing.T) {
	environ := requiredEnv()
	environ["BOTROSS_OWNER_ID"] = "42"
	environ["BOTROSS_PREFIX"] = "!"
	environ["BOTROSS_PYTHON"] = "/usr/bin/python3 -I"
	environ["BOTROSS_PY_TIMEOUT"] = "2s"
	environ["BOTROSS_LOG_LEVEL"] = "debug"
	environ["BOTROSS_DISCORD_PROXY"] = "http://127.0.0.1:7890"
	environ["BOTROSS_PY_BURST"] = "5"
	environ["BOTROSS_PY_RATE_INTERVAL"] = "1m"

	cfg, err := LoadConfigFrom(environ)
	require.NoError(t, err)

	assert.Equal(t, "42", cfg.Discord.OwnerID)
	assert.Equal(t, "!", cfg.Discord.Prefix)
	assert.Equal(t, []string{"/usr/bin/python3", "-I"}, cfg.Python.Command)
	assert.Equal(t, 2*time.Second, cfg.Python.Timeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "http://127.0.0.1:7890", cfg.Discord.Proxy)
	assert.Equal(t, 5, cfg.Python.RateBurst)
	assert.Equal(t, time.Minute, cfg.Python.RateInterval)
}

func TestLoadConfig_MissingRequired(t *testing.T) {
	for _, key := range []string{"DISCORD_TOKEN", "DATABASE_URL"} {
		t.Run(key, func(t *testing.T) {
			environ := requiredEnv()
			delete(environ, key)

			_, err := LoadConfigFrom(environ)
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestLoadConfig_EmptyRequired(t *testing.T) {
	environ := requiredEnv()
	environ["DISCORD_TOKEN"] = ""

	_, err := LoadConfigFrom(environ)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Python.Timeout = 0
	cfg.Discord.Prefix = " "

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
	assert.Contains(t, err.Error(), "prefix")
}
