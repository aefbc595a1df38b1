package main

import (
	"context"
	"fmt"
	"os"

	"feedpipe/internal/app"
	"feedpipe/internal/config"
	"feedpipe/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	logger     *zap.Logger
	cfg        config.Config
	configPath string
	driver     string
	dsn        string
	redisAddr  string
	badgerPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "feedpipe",
	Short:         "feedpipe - RSS/Atom ingestion and categorization pipeline",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		applyFlagOverrides(cmd)
		if err := cfg.Validate(); err != nil {
			return err
		}

		logger, err = logging.New(logging.Options{
			Level:      cfg.Logging.Level,
			Encoding:   cfg.Logging.Encoding,
			File:       cfg.Logging.File,
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
		})
		return err
	},
}

// applyFlagOverrides lets explicit flags win over file and environment.
func applyFlagOverrides(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("driver") {
		cfg.Storage.Driver = driver
	}
	if flags.Changed("dsn") {
		cfg.Storage.DSN = dsn
	}
	if flags.Changed("redis") {
		cfg.Storage.RedisAddr = redisAddr
	}
	if flags.Changed("badger") {
		cfg.Storage.BadgerPath = badgerPath
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = logLevel
	}
}

// mustApp wires the application or exits.
func mustApp(ctx context.Context) *app.App {
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to init application", zap.Error(err))
	}
	return a
}

func main() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Path to YAML config (default $"+config.ConfigPathEnv+")")
	pf.StringVar(&driver, "driver", "", "Storage driver: postgres, sqlite or hybrid")
	pf.StringVar(&dsn, "dsn", "", "Database DSN for postgres/sqlite")
	pf.StringVar(&redisAddr, "redis", "", "Address of Redis server (hybrid driver)")
	pf.StringVar(&badgerPath, "badger", "", "Path to BadgerDB data directory (hybrid driver)")
	pf.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(serverCmd, runCmd, feedCmd, categorizeCmd, classifyCmd)

	err := rootCmd.Execute()
	if logger != nil {
		_ = logger.Sync()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
