package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/app"
	"github.com/vladislavdragonenkov/storefront/internal/config"
	"github.com/vladislavdragonenkov/storefront/internal/logging"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

// parseFlags разбирает аргументы командной строки.
func parseFlags(args []string) (configPath string, showVersion bool, err error) {
	fs := flag.NewFlagSet("storefront", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&configPath, "config", "", "path to YAML config (fallback: "+config.EnvConfigFile+")")
	fs.BoolVar(&showVersion, "version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return "", false, err
	}
	return configPath, showVersion, nil
}

// setup загружает конфигурацию и настраивает глобальный logrus.
func setup(configPath string) (config.Config, io.Closer, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	closer, err := logging.Setup(log.StandardLogger(), cfg.Log)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("setup logging: %w", err)
	}
	return cfg, closer, nil
}

func main() {
	configPath, showVersion, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if showVersion {
		fmt.Println(version.String())
		return
	}

	cfg, closer, err := setup(configPath)
	if err != nil {
		log.WithError(err).Fatal("не удалось подготовить запуск")
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(version.Fields()).WithFields(log.Fields{
		"grpc_addr":    cfg.Server.GRPCAddr,
		"http_addr":    cfg.Server.HTTPAddr,
		"metrics_addr": cfg.Server.MetricsAddr,
		"storage":      cfg.Storage.Driver,
	}).Info("запускаем Storefront")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("Storefront остановлен")
}
