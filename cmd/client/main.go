package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/iudanet/chatsync/internal/client/api"
	"github.com/iudanet/chatsync/internal/client/chat"
	"github.com/iudanet/chatsync/internal/client/cli"
	"github.com/iudanet/chatsync/internal/client/config"
	"github.com/iudanet/chatsync/internal/client/iocli"
	"github.com/iudanet/chatsync/internal/client/ledger"
	"github.com/iudanet/chatsync/internal/client/metrics"
	"github.com/iudanet/chatsync/internal/client/queue"
	"github.com/iudanet/chatsync/internal/client/state"
	"github.com/iudanet/chatsync/internal/client/storage"
	"github.com/iudanet/chatsync/internal/client/storage/backend"
	syncengine "github.com/iudanet/chatsync/internal/client/sync"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Глобальные флаги
	showVersion := flag.Bool("version", false, "Show version information")
	configPath := flag.String("config", "", "Path to YAML config file")
	envFile := flag.String("env-file", ".env", "Path to .env file")
	serverURL := flag.String("server", "", "Server URL")
	driver := flag.String("storage", "", "Local storage driver: bolt, sqlite or memory")
	dbPath := flag.String("db", "", "Path to local database")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn or error")

	flag.Parse()

	// Show version and exit if requested
	if *showVersion {
		printVersion()
		return 0
	}

	// Получаем команду
	args := flag.Args()
	if len(args) == 0 {
		cli.PrintUsage()
		return 1
	}
	command := args[0]

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	// Флаги командной строки имеют наивысший приоритет
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "server":
			cfg.Server.URL = *serverURL
		case "storage":
			cfg.Storage.Driver = *driver
		case "db":
			cfg.Storage.Path = *dbPath
		case "log-level":
			cfg.Log.Level = *logLevel
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		return 1
	}

	logger, err := newLogger(cfg.Log, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to configure logging: %v\n", err)
		return 1
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Открываем локальное хранилище
	kv, err := backend.Open(ctx, cfg.Storage.Driver, cfg.Storage.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		return 1
	}
	defer func() {
		if err := kv.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	store := storage.NewStore(kv, logger)
	messages := state.NewMessages(store, logger)
	participants := state.NewParticipants(store, logger)
	session := state.NewSession(store, logger)
	messages.Load(ctx)
	participants.Load(ctx)
	session.Load(ctx)

	// Создаем API клиент
	apiClient := api.NewClient(cfg.Server.URL,
		api.WithTimeout(cfg.Server.Timeout),
		api.WithLogger(logger))

	registry := prometheus.NewRegistry()
	recorder, err := metrics.NewSync(registry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to register metrics: %v\n", err)
		return 1
	}

	requests := queue.New(cfg.RequestQueue(), logger)
	optimistic := ledger.New(messages, logger)

	engine := syncengine.NewEngine(cfg.SyncEngine(), syncengine.Deps{
		Client:       apiClient,
		Messages:     messages,
		Participants: participants,
		Session:      session,
		Ledger:       optimistic,
		Queue:        requests,
		Metrics:      recorder,
	}, logger)

	facade := chat.New(cfg.Chat(), chat.Deps{
		Client:       apiClient,
		Messages:     messages,
		Participants: participants,
		Ledger:       optimistic,
		Queue:        requests,
		Engine:       engine,
	}, logger)
	defer facade.Stop()

	app := cli.New(iocli.NewStdio(), cli.Deps{
		Chat:         facade,
		Engine:       engine,
		Messages:     messages,
		Participants: participants,
		Session:      session,
		Gatherer:     registry,
	}, logger)

	// Выполняем команду
	if err := app.Run(ctx, command, args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, cli.ErrUnknownCommand) {
			cli.PrintUsage()
		}
		return 1
	}
	return 0
}

func newLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func printVersion() {
	fmt.Printf("Chatsync Client\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
