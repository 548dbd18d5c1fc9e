package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/colship/colship/config"
	"github.com/colship/colship/history"
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show past pipeline runs",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(projectDir(cmd))
		if err != nil {
			return err
		}

		store, err := history.Open(cfg.History.Path)
		if err != nil {
			return err
		}
		defer store.Close()

		if len(args) == 1 {
			run, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printRun(*run)
			return nil
		}

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := store.List(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("no runs recorded")
			return nil
		}
		for _, run := range runs {
			printRun(run)
		}
		return nil
	},
}

func printRun(run history.Run) {
	fmt.Printf("%s  %s  %-9s  %s  %s\n",
		run.ID,
		run.StartedAt.Local().Format(time.RFC3339),
		run.Status,
		run.Duration.Round(time.Millisecond),
		run.Pipeline)
	if run.Error != "" {
		fmt.Printf("  error: %s\n", run.Error)
	}
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().Int("limit", 20, "Maximum number of runs to show")
}
