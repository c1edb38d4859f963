// Package main is the entry point for the filter gateway.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/vyrodovalexey/filtergw/internal/config"
	"github.com/vyrodovalexey/filtergw/internal/observability"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	checkOnly   bool
	showVersion bool
}

func main() {
	flags := parseFlags(flag.CommandLine, os.Args[1:])

	if flags.showVersion {
		printVersion()
		return
	}

	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  flags.logLevel,
		Format: flags.logFormat,
		Output: "stdout",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, flags, logger); err != nil {
		_ = logger.Sync()
		logger.Fatal("gateway failed", observability.Error(err))
	}
}

// parseFlags parses command line flags with GATEWAY_* environment fallbacks.
func parseFlags(fs *flag.FlagSet, args []string) cliFlags {
	var f cliFlags
	fs.StringVar(&f.configPath, "config", getEnvOrDefault("GATEWAY_CONFIG_PATH", "configs/gateway.yaml"),
		"Path to configuration file")
	fs.StringVar(&f.logLevel, "log-level", getEnvOrDefault("GATEWAY_LOG_LEVEL", "info"),
		"Log level (debug, info, warn, error)")
	fs.StringVar(&f.logFormat, "log-format", getEnvOrDefault("GATEWAY_LOG_FORMAT", "json"),
		"Log format (json, console)")
	fs.BoolVar(&f.checkOnly, "check", getEnvBool("GATEWAY_CHECK_CONFIG", false),
		"Validate the configuration and exit")
	fs.BoolVar(&f.showVersion, "version", false, "Show version information")
	_ = fs.Parse(args)
	return f
}

// printVersion prints version information.
func printVersion() {
	fmt.Printf("filtergw version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

// run loads the configuration, starts every component and blocks until ctx
// is done.
func run(ctx context.Context, flags cliFlags, logger observability.Logger) error {
	logger.Info("starting filtergw",
		observability.String("version", version),
		observability.String("config", flags.configPath),
	)

	configPath, err := config.ResolveConfigPath(flags.configPath)
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	app, err := newApplication(cfg, logger)
	if err != nil {
		return err
	}
	if err := app.validator().Validate(cfg); err != nil {
		app.close(context.Background())
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger.Info("configuration loaded",
		observability.String("name", cfg.Metadata.Name),
		observability.Int("routes", len(cfg.Spec.Routes)),
		observability.Int("filters", len(app.chain.Filters())),
	)

	if flags.checkOnly {
		app.close(context.Background())
		logger.Info("configuration is valid")
		return nil
	}

	if err := app.start(ctx, configPath); err != nil {
		app.shutdown()
		return err
	}

	<-ctx.Done()
	logger.Info("received shutdown signal")
	app.shutdown()

	return nil
}
