package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/colship/colship"
	"github.com/colship/colship/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "colship",
	Short: "Colship packages and publishes collection releases",
	Long: `Colship runs the collection release pipeline: it derives a version from
a pushed tag, packages the collection into an archive and uploads it to the
release host. It can also build a dynamic host inventory from the CMDB.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringP("dir", "C", ".", "Project directory holding the configuration file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
}

// newLogger builds the application logger honoring the verbose flag.
func newLogger(cmd *cobra.Command) colship.Logger {
	level := slog.LevelInfo
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	return colship.NewSlogLogger(logging.New(level))
}

// projectDir returns the configured project directory.
func projectDir(cmd *cobra.Command) string {
	dir, _ := cmd.Flags().GetString("dir")
	if dir == "" {
		dir = "."
	}
	return dir
}
