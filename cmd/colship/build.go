package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/colship/colship"
	"github.com/colship/colship/config"
	"github.com/colship/colship/release"
)

// buildCmd represents the build command
var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the collection archive without publishing",
	Long: `Runs the release pipeline up to the build step: validates the source,
derives the version from the tag ref, checks requirements and packages the
archive. Nothing leaves the machine.`,
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

		pipeline := release.NewPipeline(release.PipelineOptions{
			Ref:              ref,
			SourceDir:        cfg.Collection.Dir,
			OutputDir:        cfg.Collection.Output,
			RequirementsPath: cfg.Collection.Requirements,
			SkipPublish:      true,
		})

		runner := colship.NewRunner(colship.WithLogger(logger))
		result := runner.ExecuteWithOptions(pipeline, colship.RunOptions{
			Logger:  logger,
			Context: cmd.Context(),
		})
		if !result.Success {
			return result.Error
		}

		fmt.Printf("built %v (sha256 %v)\n",
			result.FinalStore[colship.KeyArchivePath],
			result.FinalStore[colship.KeyArchiveSHA256])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().String("ref", "", "Tag ref or tag name to build (e.g. v1.2.3)")
}
