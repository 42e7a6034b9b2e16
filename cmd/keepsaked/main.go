package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/keepsakelabs/keepsake-core/internal/bus"
	"github.com/keepsakelabs/keepsake-core/internal/config"
	"github.com/keepsakelabs/keepsake-core/internal/deck"
	"github.com/keepsakelabs/keepsake-core/internal/devices"
	"github.com/keepsakelabs/keepsake-core/internal/display"
	"github.com/keepsakelabs/keepsake-core/internal/eventstore"
	"github.com/keepsakelabs/keepsake-core/internal/llm"
	"github.com/keepsakelabs/keepsake-core/internal/natsserver"
	"github.com/keepsakelabs/keepsake-core/internal/router"
	"github.com/keepsakelabs/keepsake-core/internal/runtime"
	"github.com/keepsakelabs/keepsake-core/internal/session"
	"github.com/keepsakelabs/keepsake-core/internal/speech"
	"github.com/keepsakelabs/keepsake-core/internal/stt"
	"github.com/keepsakelabs/keepsake-core/internal/tts"
)

var version = "0.1.0-dev"

func main() {
	var (
		configPath  string
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "keepsake.yaml", "Path to configuration file")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(version)
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		bootLogger().Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.Telemetry.LogLevel)}))

	photoDeck, err := deck.Load(cfg.Deck.Path)
	if err != nil {
		logger.Error("failed to load photo deck", slog.String("error", err.Error()))
		os.Exit(1)
	}
	instructions, err := deck.LoadInstructions(cfg.Deck.InstructionsPath)
	if err != nil {
		logger.Error("failed to load companion instructions", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("photo deck loaded", slog.Int("photos", photoDeck.Size()))

	recognizer, err := stt.New(cfg.STT)
	if err != nil {
		logger.Error("failed to create recognizer", slog.String("error", err.Error()))
		os.Exit(1)
	}
	generator, err := llm.New(cfg.LLM)
	if err != nil {
		logger.Error("failed to create generator", slog.String("error", err.Error()))
		os.Exit(1)
	}
	synth, err := tts.New(cfg.TTS)
	if err != nil {
		logger.Error("failed to create synthesizer", slog.String("error", err.Error()))
		os.Exit(1)
	}

	sess := session.New(photoDeck, instructions, recognizer, generator, synth,
		speech.New(nil), session.ConfigFrom(cfg.Session, cfg.LLM), logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	embedded, err := natsserver.Start(cfg.Bus, logger)
	if err != nil {
		logger.Error("failed to start embedded NATS server", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer embedded.Shutdown()

	busClient, err := bus.Connect(ctx, cfg.Bus, logger)
	if err != nil {
		logger.Error("failed to connect to NATS", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer busClient.Close()

	store, err := eventstore.Open(ctx, cfg.EventStore, logger)
	if err != nil {
		logger.Error("failed to open event store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	svc := router.NewService(ctx, busClient, sess, store, logger)
	if err := svc.Start(); err != nil {
		logger.Error("failed to start router", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer svc.Close()

	feed := display.NewFeed(busClient, logger)
	if err := feed.Start(); err != nil {
		logger.Error("failed to start display feed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer feed.Close()

	if cfg.Devices.Enabled {
		registry, err := devices.NewRegistry(ctx, cfg.Devices, busClient, logger)
		if err != nil {
			logger.Error("failed to start device registry", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer registry.Close()
	}

	rt := runtime.New(cfg, runtime.Deps{
		Session: sess,
		Store:   store,
		Feed:    feed,
		Healthy: []func() bool{busClient.Healthy, svc.Healthy},
	}, logger)

	if err := rt.Start(ctx); err != nil {
		logger.Error("runtime exited with error", slog.String("error", err.Error()))
		time.Sleep(1 * time.Second)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

func bootLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func logLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
