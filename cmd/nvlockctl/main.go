// Command nvlockctl sends exactly one administrative message to a running
// nvlockd scheduler: a mode change or a new time quantum (spec.md §6
// "Control tool"). It never participates in the wire protocol beyond that
// single frame.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nvlockd/nvlockd/internal/transport"
	"github.com/nvlockd/nvlockd/internal/wire"
)

var (
	antiThrash string
	setTQ      int
	socketDir  string
)

var rootCmd = &cobra.Command{
	Use:   "nvlockctl",
	Short: "Send a single administrative message to nvlockd",
	RunE:  run,
}

func init() {
	rootCmd.Flags().StringVar(&antiThrash, "anti-thrash", "", "switch scheduler mode: on or off")
	rootCmd.Flags().IntVar(&setTQ, "set-tq", 0, "set the time quantum, in seconds")
	rootCmd.Flags().StringVar(&socketDir, "socket-dir", transport.DefaultDir, "scheduler socket directory")
}

func run(cmd *cobra.Command, args []string) error {
	frame, err := buildFrame()
	if err != nil {
		return err
	}

	conn, err := transport.Dial(socketDir)
	if err != nil {
		return fmt.Errorf("connect to scheduler: %w", err)
	}
	defer conn.Close()

	if err := wire.Encode(conn, frame); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// buildFrame validates the mutually exclusive flag set and builds exactly
// one wire frame, or returns an error for bad arguments (spec.md §6 "exits
// non-zero on bad arguments").
func buildFrame() (wire.Frame, error) {
	haveMode := antiThrash != ""
	haveTQ := cmdFlagSet("set-tq")

	switch {
	case haveMode && haveTQ:
		return wire.Frame{}, fmt.Errorf("--anti-thrash and --set-tq are mutually exclusive")
	case haveMode:
		switch antiThrash {
		case "on":
			return wire.Frame{Type: wire.SCHED_ON}, nil
		case "off":
			return wire.Frame{Type: wire.SCHED_OFF}, nil
		default:
			return wire.Frame{}, fmt.Errorf("--anti-thrash must be \"on\" or \"off\", got %q", antiThrash)
		}
	case haveTQ:
		return wire.Frame{Type: wire.SET_TQ, Data: strconv.Itoa(setTQ)}, nil
	default:
		return wire.Frame{}, fmt.Errorf("exactly one of --anti-thrash or --set-tq is required")
	}
}

func cmdFlagSet(name string) bool {
	f := rootCmd.Flags().Lookup(name)
	return f != nil && f.Changed
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
