// Command hexpat runs pattern language files against binary data from
// the command line.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hexpat-lang/hexpat/core/console"
)

var (
	dataFile       string
	includeDirs    []string
	allowDangerous bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "hexpat",
		Short:         "Pattern language runtime for binary data",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataFile, "data", "", "binary file to analyze")
	rootCmd.PersistentFlags().StringArrayVar(&includeDirs, "include", nil, "additional include directory (repeatable)")
	rootCmd.PersistentFlags().BoolVar(&allowDangerous, "allow-dangerous", false, "allow dangerous functions such as std::file::read")

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newEvalCommand())
	rootCmd.AddCommand(newReplCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// printConsole writes the run's diagnostics to stderr.
func printConsole(messages []console.Message) {
	for _, msg := range messages {
		fmt.Fprintf(os.Stderr, "[%s] %s\n", msg.Level, msg.Text)
	}
}
