package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	opts, err := parseFlags([]string{"--endpoint", "urn:dev:os:7", "--state", "/tmp/s.cbor", "-i", "--advertise"})
	require.NoError(t, err)
	assert.Equal(t, "urn:dev:os:7", opts.Endpoint)
	assert.Equal(t, "/tmp/s.cbor", opts.StatePath)
	assert.Equal(t, "info", opts.LogLevel)
	assert.True(t, opts.Interactive)
	assert.True(t, opts.Advertise)

	_, err = parseFlags([]string{"--help"})
	assert.ErrorIs(t, err, pflag.ErrHelp)

	_, err = parseFlags([]string{"extra"})
	assert.Error(t, err)
}

func TestLoadConfigFlagsOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")
	require.NoError(t, os.WriteFile(path, []byte("endpoint_name: from-file\nstate_path: /var/lib/a\n"), 0o600))

	cfg, err := loadConfig(options{ConfigFile: path})
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.EndpointName)

	cfg, err = loadConfig(options{ConfigFile: path, Endpoint: "from-flag", StatePath: "/var/lib/b"})
	require.NoError(t, err)
	assert.Equal(t, "from-flag", cfg.EndpointName)
	assert.Equal(t, "/var/lib/b", cfg.StatePath)

	_, err = loadConfig(options{ConfigFile: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&buf, "warn")
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	_, err = newLogger(&buf, "loud")
	assert.Error(t, err)
}
