package main

import (
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/colship/colship"
	"github.com/colship/colship/config"
	"github.com/colship/colship/history"
	"github.com/colship/colship/release"
)

// releaseCmd represents the release command
var releaseCmd = &cobra.Command{
	Use:   "release",
	Short: "Run the full release pipeline for a pushed tag",
	Long: `Runs the release pipeline end to end: validates the collection source,
derives the version from the tag ref, checks requirements, builds the
archive and publishes it to the release host.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := projectDir(cmd)
		logger := newLogger(cmd)

		cfg, err := config.Load(dir)
		if err != nil {
			return err
		}

		refFlag, _ := cmd.Flags().GetString("ref")
		ref := release.ResolveRef(refFlag)
		if ref == "" {
			return fmt.Errorf("no tag ref: pass --ref or set %s", release.EnvRef)
		}
		if !release.RefMatchesPattern(ref, cfg.Release.TagPattern) {
			return fmt.Errorf("ref '%s' does not match the release tag pattern '%s'", ref, cfg.Release.TagPattern)
		}

		dryRun, _ := cmd.Flags().GetBool("dry-run")
		if !dryRun && cfg.Hub.URL == "" {
			return fmt.Errorf("no hub URL configured: set hub.url in %s or %s", config.FileName, config.EnvHubURL)
		}

		pipeline := release.NewPipeline(release.PipelineOptions{
			Ref:              ref,
			SourceDir:        cfg.Collection.Dir,
			OutputDir:        cfg.Collection.Output,
			RequirementsPath: cfg.Collection.Requirements,
			HubURL:           cfg.Hub.URL,
			Token:            cfg.Token(),
			TokenEnv:         cfg.Hub.TokenEnv,
			DryRun:           dryRun,
		})

		metrics := colship.NewMetrics(prometheus.DefaultRegisterer)
		pipeline.Use(metrics.StepMiddleware(), colship.StepTracingMiddleware())

		middleware := []colship.Middleware{
			colship.LoggingMiddleware(),
			colship.TracingMiddleware(),
			metrics.Middleware(),
		}
		if timeout, _ := cmd.Flags().GetDuration("timeout"); timeout > 0 {
			middleware = append(middleware, colship.TimeLimitMiddleware(timeout))
		}

		runner := colship.NewRunner(
			colship.WithLogger(logger),
			colship.WithMiddleware(middleware...),
		)

		result := runner.ExecuteWithOptions(pipeline, colship.RunOptions{
			Logger:  logger,
			Context: cmd.Context(),
		})

		recordRun(cmd, cfg, &result)

		if !result.Success {
			return result.Error
		}

		version := result.FinalStore[colship.KeyVersion]
		archive := result.FinalStore[colship.KeyArchivePath]
		fmt.Printf("released version %v (%v) in %s\n",
			version, archive, result.ExecutionTime.Round(time.Millisecond))
		return nil
	},
}

// recordRun persists the run outcome; history problems are logged, not
// fatal, a broken local database must not fail a release.
func recordRun(cmd *cobra.Command, cfg *config.Config, result *colship.RunResult) {
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		return
	}
	defer store.Close()

	if err := store.Record(cmd.Context(), result); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
}

func init() {
	rootCmd.AddCommand(releaseCmd)

	releaseCmd.Flags().String("ref", "", "Tag ref that triggered the release (e.g. refs/tags/v1.2.3)")
	releaseCmd.Flags().Bool("dry-run", false, "Run the pipeline without contacting the release host")
	releaseCmd.Flags().Duration("timeout", 0, "Abort the run when it exceeds this duration (0 disables)")
}
