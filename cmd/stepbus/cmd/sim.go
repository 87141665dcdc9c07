package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"stepbus/core"
	"stepbus/sim"
)

var (
	tracePath     string
	traceInterval uint32
)

var simCmd = &cobra.Command{
	Use:   "sim <script|->",
	Short: "Run a console script on a simulated board",
	Long: `Run console commands from a file (or stdin with -) against a simulated
board, optionally recording a CBOR trace of every motor.

Example:
  stepbus sim --board b3 --trace run.cbor moves.txt`,
	Args: cobra.ExactArgs(1),
	RunE: runSim,
}

func init() {
	rootCmd.AddCommand(simCmd)
	simCmd.Flags().StringVarP(&tracePath, "trace", "t", "", "Write a CBOR trace to this file")
	simCmd.Flags().Uint32Var(&traceInterval, "interval", 100, "Ticks between trace samples")
}

func runSim(cmd *cobra.Command, args []string) error {
	var script io.Reader = os.Stdin
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open script: %w", err)
		}
		defer f.Close()
		script = f
	}

	rig, err := newRig()
	if err != nil {
		return err
	}
	if tracePath != "" {
		rig.Record(traceInterval)
	}

	console := sim.NewConsole(rig, os.Stdout)
	if err := console.RunScript(script); err != nil {
		if debug {
			core.DumpTimingRing()
		}
		return err
	}

	if tracePath == "" {
		return nil
	}
	trace := rig.Trace()
	if trace == nil {
		// The script saved the trace itself
		return nil
	}
	f, err := os.Create(tracePath)
	if err != nil {
		return fmt.Errorf("failed to create trace file: %w", err)
	}
	defer f.Close()
	if err := trace.WriteCBOR(f); err != nil {
		return err
	}
	fmt.Printf("Trace: %d samples, %d events -> %s\n", len(trace.Samples), len(trace.Events), tracePath)
	return nil
}
