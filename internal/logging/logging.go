// Package logging настраивает глобальный logrus по конфигурации сервиса.
package logging

import (
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/vladislavdragonenkov/storefront/internal/config"
)

// Setup применяет уровень, формат и ротацию файла к logger.
// Возвращаемый io.Closer закрывает файл ротации (для stdout ничего не делает).
func Setup(logger *log.Logger, cfg config.Log) (io.Closer, error) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	logger.SetLevel(level)

	switch cfg.Format {
	case config.LogFormatJSON:
		logger.SetFormatter(&log.JSONFormatter{})
	case config.LogFormatText, "":
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("log format %q is not supported", cfg.Format)
	}

	if cfg.File == "" {
		logger.SetOutput(os.Stdout)
		return io.NopCloser(nil), nil
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	logger.SetOutput(io.MultiWriter(os.Stdout, rotator))
	return rotator, nil
}

// Component возвращает entry с полем component, как принято во всех слоях.
func Component(logger *log.Logger, name string) *log.Entry {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return logger.WithField("component", name)
}
