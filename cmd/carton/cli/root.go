// Package cli implements the carton command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/meigma/carton"
	"github.com/meigma/carton/cmd/carton/cli/config"
)

// Build information set via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flags.
var verbose bool

var rootCmd = &cobra.Command{
	Use:   "carton",
	Short: "Pack and unpack file archives",
	Long: `Carton packs directory trees into archives and unpacks them again.

It supports tar (plain, gzip, zstd, lz4), zip, and read-only eStargz,
selecting the format from the file extension. Extraction validates entry
names and symlink targets so a hostile archive cannot write outside the
destination directory.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose debug logging")
	rootCmd.PersistentFlags().String("progress", "auto", "Progress display: auto, tty, or plain")
	//nolint:errcheck // flag is registered above
	viper.BindPFlag("progress", rootCmd.PersistentFlags().Lookup("progress"))
	rootCmd.Version = version
}

// initConfig loads the config file and environment overrides. A missing
// config file is not an error.
func initConfig() {
	viper.SetEnvPrefix("CARTON")
	viper.AutomaticEnv()

	path, err := config.File()
	if err != nil {
		return
	}
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: could not read config: %v\n", err)
	}
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, formatError(err))
	}
	return err
}

// newLogger returns a debug logger when verbose mode is on, nil otherwise.
func newLogger() *slog.Logger {
	if !verbose {
		return nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// signalContext returns a context that is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// formatError converts carton errors to user-friendly messages.
func formatError(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, carton.ErrPathTraversal):
		return "Error: path traversal detected (security violation)"
	case errors.Is(err, carton.ErrInvalidArchive):
		return "Error: invalid or corrupt archive"
	case errors.Is(err, carton.ErrInvalidSymlink):
		return fmt.Sprintf("Error: unsafe symlink: %v", err)
	case errors.Is(err, carton.ErrExtractLimits):
		return "Error: extraction limits exceeded"
	case errors.Is(err, carton.ErrConfiguration):
		return fmt.Sprintf("Error: invalid configuration: %v", err)
	case errors.Is(err, context.Canceled):
		return "Error: operation canceled"
	default:
		return fmt.Sprintf("Error: %v", err)
	}
}
