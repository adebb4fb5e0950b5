package logging

import (
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/config"
)

func TestSetup_TextToStdout(t *testing.T) {
	logger := log.New()
	closer, err := Setup(logger, config.Log{Level: "debug", Format: config.LogFormatText})
	require.NoError(t, err)
	require.NoError(t, closer.Close())

	require.Equal(t, log.DebugLevel, logger.GetLevel())
	formatter, ok := logger.Formatter.(*log.TextFormatter)
	require.True(t, ok)
	require.True(t, formatter.FullTimestamp)
}

func TestSetup_JSONWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storefront.log")
	logger := log.New()

	closer, err := Setup(logger, config.Log{Level: "info", Format: config.LogFormatJSON, File: path, MaxSizeMB: 1})
	require.NoError(t, err)

	_, ok := logger.Formatter.(*log.JSONFormatter)
	require.True(t, ok)

	Component(logger, "test").Info("written to file")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"component":"test"`)
	require.Contains(t, string(data), "written to file")
}

func TestSetup_Errors(t *testing.T) {
	_, err := Setup(log.New(), config.Log{Level: "loud", Format: config.LogFormatText})
	require.Error(t, err)

	_, err = Setup(log.New(), config.Log{Level: "info", Format: "xml"})
	require.Error(t, err)
}
