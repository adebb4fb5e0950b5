package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/config"
)

func TestParseFlags(t *testing.T) {
	path, showVersion, err := parseFlags([]string{"-config", "/etc/storefront.yaml"})
	require.NoError(t, err)
	require.Equal(t, "/etc/storefront.yaml", path)
	require.False(t, showVersion)

	_, showVersion, err = parseFlags([]string{"-version"})
	require.NoError(t, err)
	require.True(t, showVersion)

	_, _, err = parseFlags([]string{"-unknown"})
	require.Error(t, err)
}

func TestSetup_LoadsFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storefront.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  grpc_addr: \"127.0.0.1:7000\"\nlog:\n  level: warn\n"), 0o600))
	t.Setenv("STOREFRONT_SERVER__HTTP_ADDR", "127.0.0.1:7001")

	cfg, closer, err := setup(path)
	require.NoError(t, err)
	defer closer.Close()

	require.Equal(t, "127.0.0.1:7000", cfg.Server.GRPCAddr)
	require.Equal(t, "127.0.0.1:7001", cfg.Server.HTTPAddr)
	require.Equal(t, config.StorageDriverMemory, cfg.Storage.Driver)
}

func TestSetup_InvalidConfig(t *testing.T) {
	t.Setenv("STOREFRONT_STORAGE__DRIVER", "postgres")
	t.Setenv(config.EnvConfigFile, "")

	_, _, err := setup("")
	require.ErrorContains(t, err, "storage.postgres.dsn")
}
