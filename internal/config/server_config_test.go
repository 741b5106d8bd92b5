package config_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latchguard/go-lock-agent/internal/config"
)

func TestPrintServerEnv(t *testing.T) {
	cfg := config.DefaultServerConfigFromEnv()
	_, err := json.MarshalIndent(cfg, "", "  ")

	if err != nil {
		t.Fatal(err)
	}
}

func TestSecretsAreNotSerialized(t *testing.T) {
	cfg := config.DefaultServerConfigFromEnv()
	cfg.Auth.Secret = "super-secret"
	cfg.Chain.WalletPrivateKey = "0xdeadbeef"

	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "super-secret")
	assert.NotContains(t, string(data), "0xdeadbeef")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AGENT_LISTEN_ADDRESS", ":9999")
	t.Setenv("AGENT_CHAIN_ID", "11155111")
	t.Setenv("AGENT_CHAIN_CONFIRMATION_MODE", "poll")
	t.Setenv("AGENT_CHAIN_REGISTRATION_TIMEOUT", "30s")
	t.Setenv("AGENT_REDIS_ENABLED", "true")

	cfg := config.DefaultServerConfigFromEnv()
	assert.Equal(t, ":9999", cfg.Echo.ListenAddress)
	assert.Equal(t, int64(11155111), cfg.Chain.ChainID)
	assert.Equal(t, "poll", cfg.Chain.ConfirmationMode)
	assert.Equal(t, 30*time.Second, cfg.Chain.RegistrationTimeout)
	assert.True(t, cfg.Redis.Enabled)
}

func TestInvalidEnvFallsBackToDefaults(t *testing.T) {
	t.Setenv("AGENT_CHAIN_ID", "not-a-number")
	t.Setenv("AGENT_REDIS_ENABLED", "not-a-bool")

	cfg := config.DefaultServerConfigFromEnv()
	assert.Equal(t, int64(1337), cfg.Chain.ChainID)
	assert.False(t, cfg.Redis.Enabled)
}
