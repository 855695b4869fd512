package config

import (
	"testing"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(nil, env.EnvSet{})
	require.NoError(t, err)

	require.Equal(t, ":5000", cfg.Addr)
	require.Empty(t, cfg.SSHAddr)
	require.Equal(t, 20, cfg.MaxClients)
	require.Equal(t, 256, cfg.MaxLoginLength)
	require.Equal(t, 4096, cfg.LineBufferSize)
	require.Equal(t, 1024, cfg.DeliveryQueueSize)
	require.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
	require.Equal(t, 10*time.Second, cfg.WriteTimeout)
	require.Equal(t, 10*time.Second, cfg.ChatOptions().WriteTimeout)
	require.Equal(t, "INFO", cfg.LogLevel)
}

func TestParseEnvironmentAndFlagPrecedence(t *testing.T) {
	es := env.EnvSet{
		"QCHAT_ADDR":        ":6000",
		"QCHAT_MAX_CLIENTS": "3",
		"QCHAT_LOG_LEVEL":   "debug",
	}

	cfg, err := Parse([]string{"--addr", ":7000", "--ssh-addr", ":2222"}, es)
	require.NoError(t, err)

	require.Equal(t, ":7000", cfg.Addr)
	require.Equal(t, ":2222", cfg.SSHAddr)
	require.Equal(t, 3, cfg.MaxClients)
	require.Equal(t, "DEBUG", cfg.LogLevel)

	opts := cfg.ChatOptions()
	require.Equal(t, 3, opts.Capacity)
	require.Equal(t, 256, opts.MaxLoginLength)
}

func TestParseRejectsInvalidValues(t *testing.T) {
	_, err := Parse([]string{"--max-clients", "0"}, env.EnvSet{})
	require.Error(t, err)

	_, err = Parse(nil, env.EnvSet{"QCHAT_LOG_LEVEL": "LOUD"})
	require.Error(t, err)

	_, err = Parse([]string{"--unknown"}, env.EnvSet{})
	require.Error(t, err)
}
