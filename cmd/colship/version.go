package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/colship/colship"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of colship",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("colship version %s\n", colship.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
