package main

import (
	"os"

	"github.com/cottand/liquid/cmd"
	"github.com/spf13/cobra"
)

func main() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "liquid [subcommand]",
	Short:        "liquid\n refinement type checking for control-flow-graph programs",
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(cmd.CheckCmd)
	rootCmd.AddCommand(cmd.RunCmd)
	rootCmd.AddCommand(cmd.BuildCmd)
}
