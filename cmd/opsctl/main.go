// Command opsctl classifies text and manages runbooks from the shell.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"ops_server/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:           "opsctl",
	Short:         "opsctl - keyword classification and runbook tooling",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := logger.LevelWarn
		if verbose {
			level = logger.LevelDebug
		}
		logger.Init(logger.Config{Level: level, Output: os.Stderr, Service: "opsctl", Console: true})
	},
}

var verbose bool

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging on stderr")

	rootCmd.AddCommand(classifyCmd, expandCmd, assetTypeCmd)
	rootCmd.AddCommand(runbookCmd, seedCmd)
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
