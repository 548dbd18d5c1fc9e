package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/colship/colship/config"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file into the project",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.Init(projectDir(cmd))
		if err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
