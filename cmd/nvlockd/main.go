package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nvlockd/nvlockd/cmd/nvlockd/commands"
	"github.com/nvlockd/nvlockd/internal/obslog"
)

var rootCmd = &cobra.Command{
	Use:   "nvlockd",
	Short: "nvlockd - single-GPU lock arbitration scheduler",
	Long: `nvlockd is the broker half of a GPU-sharing pair: it grants a GPU
"lock" to at most one registered client at a time, in first-come-first-served
order and for a bounded time quantum, so that independent host processes
sharing one physical GPU see the whole device and do not thrash against
each other.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		debug, _ := cmd.Flags().GetBool("debug")
		jsonLogs, _ := cmd.Flags().GetBool("json")
		if err := obslog.Initialize(jsonLogs, debug); err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().Bool("debug", false, "enable verbose logging")
	rootCmd.PersistentFlags().Bool("json", false, "emit logs as JSON instead of console text")

	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
