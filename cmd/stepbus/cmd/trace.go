package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"stepbus/core"
	"stepbus/sim"
)

var traceMotor int

var traceCmd = &cobra.Command{
	Use:   "trace <file>",
	Short: "Print a CBOR trace recorded by sim",
	Args:  cobra.ExactArgs(1),
	RunE:  runTrace,
}

func init() {
	rootCmd.AddCommand(traceCmd)
	traceCmd.Flags().IntVarP(&traceMotor, "motor", "m", -1, "Only print this motor")
}

func runTrace(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open trace: %w", err)
	}
	defer f.Close()
	trace, err := sim.ReadTrace(f)
	if err != nil {
		return err
	}

	fmt.Printf("Board %s, sample every %d ticks, %d samples, %d events\n",
		trace.Board, trace.Interval, len(trace.Samples), len(trace.Events))
	fmt.Printf("%10s %5s %7s %9s %6s %5s\n", "time", "motor", "pos", "physical", "speed", "state")
	for _, s := range trace.Samples {
		if traceMotor >= 0 && int(s.Motor) != traceMotor {
			continue
		}
		fmt.Printf("%9.4fs %5d %7d %9d %6d  0x%02x\n",
			float64(s.Tick)/core.TicksPerSecond, s.Motor, s.Position, s.Physical, s.Speed, s.State)
	}

	if len(trace.Events) > 0 {
		fmt.Println("\nEvents:")
	}
	for _, e := range trace.Events {
		if traceMotor >= 0 && int(e.Motor) != traceMotor {
			continue
		}
		fmt.Printf("  clock %10d motor %d %-10s %d %d\n", e.Tick, e.Motor, core.EventName(e.Type), e.Value1, e.Value2)
	}
	return nil
}
