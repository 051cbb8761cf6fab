package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/CageChen/ezworkspace/internal/config"
	"github.com/CageChen/ezworkspace/internal/logging"
	"github.com/CageChen/ezworkspace/internal/project"
	"github.com/CageChen/ezworkspace/internal/session"
	"github.com/CageChen/ezworkspace/internal/workspace"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configFile string
	backend    string
	verbose    bool

	sess   *session.Session
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ezws",
	Short: "Edit an ezworkspace from the command line",
	Long: `ezws runs workspace operations against the configured backend: a sandbox
persisted below the config directory, or a host process reached over HTTP or
WebSocket.`,
	SilenceUsage:      true,
	PersistentPreRunE: openSession,
}

// Execute runs the root command and releases the session, also after a
// failed command.
func Execute() error {
	err := rootCmd.Execute()
	if cerr := closeSession(); err == nil {
		err = cerr
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", "Workspace backend (sandbox/host)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log backend operations")
}

func openSession(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("ignoring .env: %v", err)
	}

	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return err
	}
	if backend != "" {
		cfg.Backend = backend
	}
	if err := persistSandbox(cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level := "warn"
	if verbose {
		level = "debug"
	}
	logger, err = logging.New(logging.Config{Level: level, Development: true})
	if err != nil {
		return err
	}

	sess, err = session.Open(cmd.Context(), cfg, logger)
	return err
}

// persistSandbox keeps sandbox state between invocations: an in-memory
// sandbox would be gone by the next command.
func persistSandbox(cfg *config.Config) error {
	if cfg.Backend != config.BackendSandbox {
		return nil
	}
	cfg.Sandbox.Storage = config.StorageDisk
	if cfg.Sandbox.DBDriver == project.DriverDuckDB && cfg.Sandbox.DBDSN == "" {
		cfg.Sandbox.DBDSN = filepath.Join(config.GetConfigDir(), "projects.duckdb")
		return os.MkdirAll(config.GetConfigDir(), 0o755)
	}
	return nil
}

func closeSession() error {
	if logger != nil {
		_ = logger.Sync()
	}
	if sess == nil {
		return nil
	}
	err := sess.Close()
	sess = nil
	return err
}

func ws() *workspace.Workspace {
	return sess.Workspace()
}

func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
