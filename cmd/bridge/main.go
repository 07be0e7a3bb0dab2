package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tillworks/pos-bridge/internal/api"
	"github.com/tillworks/pos-bridge/internal/broadcast"
	"github.com/tillworks/pos-bridge/internal/catalog"
	"github.com/tillworks/pos-bridge/internal/config"
	"github.com/tillworks/pos-bridge/internal/printer"
	"github.com/tillworks/pos-bridge/internal/scanner"
)

// Version is set during build via ldflags
var Version = "dev"

func main() {
	configPath := flag.String("config", "bridge.toml", "path to the TOML config file")
	port := flag.Int("port", 0, "override the HTTP listen port")
	dir := flag.String("dir", "", "override the static file directory")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *configPath).Msg("failed to load config")
	}

	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dir != "" {
		cfg.Server.StaticDir = *dir
	}

	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	// The UI and the catalog live in the static directory; run from there
	// so relative paths behave the same as serving the directory.
	if err := os.Chdir(cfg.Server.StaticDir); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.Server.StaticDir).Msg("failed to enter static directory")
	}
	cfg.Server.StaticDir = "."

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := broadcast.New(broadcast.DefaultQueueSize)
	queue := printer.NewQueue()
	store := catalog.New(cfg.Catalog.Path)

	reader := scanner.NewReader(cfg.Scanner, bus)
	go reader.Run(ctx)

	worker := printer.NewWorker(cfg.Printer, queue)
	go worker.Run(ctx)

	server := api.NewServer(cfg, bus, queue, store)

	serverErr := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Info().Str("addr", addr).Str("version", Version).Msg("bridge listening")
		serverErr <- server.Run(addr)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatal().Err(err).Msg("server failed")
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()
		queue.Close()
	}
}
