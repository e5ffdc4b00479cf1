package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	shederrors "github.com/maxkimambo/shed/internal/errors"
	"github.com/maxkimambo/shed/internal/logger"
	"github.com/maxkimambo/shed/internal/shed"
)

var (
	debug      bool
	verbose    bool
	jsonLogs   bool
	quiet      bool
	configFile string
	version    = "v0.1.0"

	rootCmd = &cobra.Command{
		Use:   "shed",
		Short: "A fixed-capacity, lock-free work scheduler for frame-based task graphs",
		Long: `shed runs task graphs on a lock-free scheduler whose entire state lives in one
pre-sized block of memory. Tasks are grouped into channels, each drained by its own
set of workers, and a task becomes ready as soon as its last dependency completes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.Setup(verbose || debug, jsonLogs, quiet)
			shed.SetAssert(logAssert)
		},
	}
)

// logAssert reports scheduler invariant violations with their position.
func logAssert(expression, file string, line int) {
	logger.Op.WithFields(map[string]interface{}{
		"expression": expression,
		"file":       file,
		"line":       line,
	}).Error("Scheduler invariant violated")
}

// Execute runs the root command and prints any error in CLI form.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprint(os.Stderr, shederrors.FormatForCLI(err))
	}
	return err
}

func init() {
	rootCmd.Version = version
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress non-error output")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to a YAML configuration file")

	rootCmd.AddCommand(sizeCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(benchCmd)
}
