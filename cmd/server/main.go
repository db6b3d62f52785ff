package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iudanet/chatsync/internal/server"
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
	defaults := server.DefaultConfig()

	showVersion := flag.Bool("version", false, "Show version information")
	addr := flag.String("addr", defaults.Addr, "HTTP listen address")
	dbPath := flag.String("db", defaults.DBPath, "Path to SQLite database")
	seed := flag.Bool("seed", false, "Fill an empty database with demo participants and messages")
	rate := flag.Float64("rate", defaults.RatePerSecond, "Requests per second per participant (0 disables limiting)")
	burst := flag.Int("burst", defaults.RateBurst, "Rate limiter burst")
	reactionHold := flag.Duration("reaction-hold", 0, "Delay applying reactions to make 409 conflicts reproducible")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn or error")
	logFormat := flag.String("log-format", "text", "Log format: text or json")
	flag.Parse()

	if *showVersion {
		printVersion()
		return 0
	}

	logger, err := newLogger(*logLevel, *logFormat, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid logging flags: %v\n", err)
		return 1
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := defaults
	cfg.Addr = *addr
	cfg.DBPath = *dbPath
	cfg.Version = Version
	cfg.RatePerSecond = *rate
	cfg.RateBurst = *burst
	cfg.ReactionHold = *reactionHold

	srv, err := server.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize server", "error", err)
		return 1
	}
	defer func() {
		if err := srv.Close(); err != nil {
			logger.Error("Failed to close server", "error", err)
		}
	}()

	if *seed {
		if _, err := srv.Seed(ctx, time.Now()); err != nil {
			logger.Error("Failed to seed database", "error", err)
			return 1
		}
	}

	if err := srv.Run(ctx); err != nil {
		logger.Error("Server stopped with error", "error", err)
		return 1
	}

	logger.Info("Server stopped")
	return 0
}

func newLogger(level, format string, w io.Writer) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	switch format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

func printVersion() {
	fmt.Printf("Chatsync Server\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
