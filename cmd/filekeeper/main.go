// Package main provides the filekeeper command line.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ajaxzhan/filekeeper/internal/config"
	"github.com/ajaxzhan/filekeeper/internal/logging"
	"github.com/ajaxzhan/filekeeper/internal/server"
	"github.com/ajaxzhan/filekeeper/internal/service"
)

var (
	cfg          *config.Config
	configPath   string
	rootOverride string
	userFlag     string
	remoteAddr   string
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:           "filekeeper",
	Short:         "A file manager with an out-of-band permission index",
	Long:          "filekeeper manages files under a root directory and keeps owner and read/write flags for every entry in a side index.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logging.Sync()
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "Path to configuration file (YAML or TOML)")
	flags.StringVar(&rootOverride, "root", "", "Managed root directory (overrides config)")
	flags.StringVarP(&userFlag, "user", "u", "", "Acting user (defaults to users.default)")
	flags.StringVar(&remoteAddr, "remote", "", "Address of a filekeeper server to operate on instead of the local tree")
	flags.StringVar(&logLevel, "log-level", "", "Log level (overrides config)")

	rootCmd.AddCommand(
		createFileCmd,
		readFileCmd,
		writeFileCmd,
		deleteFileCmd,
		mkdirCmd,
		rmdirCmd,
		chmodCmd,
		lsCmd,
		indexCmd,
		shellCmd,
		serveCmd,
		mountCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorColor.Sprint("Error: ")+err.Error())
		os.Exit(1)
	}
}

// setup loads the configuration, applies flag overrides and starts logging.
func setup() error {
	loaded, err := config.LoadOrDefault(configPath)
	if err != nil {
		return err
	}
	cfg = loaded

	if rootOverride != "" {
		cfg.Storage.Root = rootOverride
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.NormalizePaths(); err != nil {
		return fmt.Errorf("failed to normalize paths: %w", err)
	}

	return logging.Init(&logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
}

// actingUser returns the --user flag or the configured default user.
func actingUser() string {
	if userFlag != "" {
		return userFlag
	}
	return cfg.Users.Default
}

// openFileSystem returns the local service, or a client when --remote is set.
// The returned close function releases either.
func openFileSystem(ctx context.Context) (service.FileSystem, func() error, error) {
	if remoteAddr != "" {
		client, err := server.Dial(remoteAddr)
		if err != nil {
			return nil, nil, err
		}
		return client, client.Close, nil
	}

	svc, err := service.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return svc, svc.Close, nil
}

// withFileSystem runs fn against the configured file system.
func withFileSystem(cmd *cobra.Command, fn func(ctx context.Context, fsys service.FileSystem) error) error {
	ctx := cmd.Context()
	fsys, closeFn, err := openFileSystem(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeFn(); err != nil {
			logging.Warn("Failed to close file system", logging.Err(err))
		}
	}()
	return fn(ctx, fsys)
}
