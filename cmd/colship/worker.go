package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/colship/colship"
)

// workerCmd runs the process as a pipeline worker. It is spawned by a parent
// colship process and speaks the IPC protocol over stdio, so it is hidden
// from help output.
var workerCmd = &cobra.Command{
	Use:    "worker",
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return colship.RunWorker(os.Stdin, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
