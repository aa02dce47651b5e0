package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.EqualValues(t, defaultPort, cfg.Port)
	assert.Zero(t, cfg.UDPMuxPort, "expected no udp mux port by default")
	assert.Equal(t, []string{defaultStunURL}, cfg.ICEServers)
}

func TestLoadShortAndLongFlagsBindSameValue(t *testing.T) {
	cfg, err := Load([]string{"-p", "9090"})
	require.NoError(t, err)
	assert.EqualValues(t, 9090, cfg.Port)

	cfg, err = Load([]string{"--port", "9091"})
	require.NoError(t, err)
	assert.EqualValues(t, 9091, cfg.Port)
}

func TestLoadParsesNATIPs(t *testing.T) {
	cfg, err := Load([]string{"-i", "203.0.113.5, 203.0.113.6,"})
	require.NoError(t, err)
	assert.Equal(t, []string{"203.0.113.5", "203.0.113.6"}, cfg.NATIPs)
}

func TestLoadRejectsInvalidPort(t *testing.T) {
	_, err := Load([]string{"-p", "not-a-number"})
	assert.Error(t, err)
}

func TestEnvUint16FallsBackOnInvalidValue(t *testing.T) {
	t.Setenv("PORT", "not-a-number")
	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.EqualValues(t, defaultPort, cfg.Port)
}

func TestEnvUint16UsedWhenNoFlagGiven(t *testing.T) {
	t.Setenv("PORT", "7000")
	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.EqualValues(t, 7000, cfg.Port)
}
