package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/repokit/repokit/internal/config"
	"github.com/repokit/repokit/internal/logging"
	"github.com/repokit/repokit/internal/manifest"
	"github.com/repokit/repokit/internal/server"
	"github.com/repokit/repokit/internal/version"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Start the repository server",
	Long: `Start the repository server: the inbound HTTP endpoint accepting
client messages, the single-consumer dispatcher processing them against the
manifest store, and the store directory watcher.

Examples:
  repokit serve
  repokit serve --port 9000 --store /var/lib/repokit
  REPOKIT_SERVER_PORT=9000 repokit serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 0, "inbound endpoint port")
	serveCmd.Flags().String("host", "", "inbound endpoint host")
	serveCmd.Flags().String("store", "", "manifest store directory")
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	viper.BindPFlag("storage.path", serveCmd.Flags().Lookup("store"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, closeLogs, err := buildLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLogs()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info(ctx, "repokit starting",
		"version", version.Short(), "store", cfg.Storage.Path, "port", cfg.Server.Port)

	if err := os.MkdirAll(cfg.Storage.Path, 0o755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}
	store := manifest.NewManager(osfs.New(cfg.Storage.Path))

	svc := server.NewService(store, logger, cfg.Callback, cfg.Server.QueueSize)

	if cfg.Storage.Watch {
		watcher, err := server.NewStoreWatcher(cfg.Storage.Path, logger)
		if err != nil {
			return fmt.Errorf("failed to watch store directory: %w", err)
		}
		defer watcher.Close()
		watcher.Start(ctx)
	}

	go svc.Run(ctx)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	if err := svc.ListenAndServe(ctx, addr); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}

	logger.Info(ctx, "repokit stopped")
	return nil
}

// buildLogger assembles the configured logger, optionally teeing into a
// daily log file. The returned func closes the file logger, if any.
func buildLogger(cfg *config.Config) (logging.Logger, func(), error) {
	logConfig := &logging.LoggerConfig{
		Level:  logging.ParseLevel(cfg.Logging.Level),
		Format: cfg.Logging.Format,
		Output: os.Stdout,
	}

	if cfg.Logging.Dir == "" {
		return logging.NewLogger(logConfig), func() {}, nil
	}

	fileLogger, err := logging.NewFileLogger(logConfig, cfg.Logging.Dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return fileLogger, func() { fileLogger.Close() }, nil
}
