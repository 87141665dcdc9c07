package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"stepbus/config"
)

var boardsCmd = &cobra.Command{
	Use:   "boards",
	Short: "List the board presets",
	RunE:  runBoards,
}

func init() {
	rootCmd.AddCommand(boardsCmd)
}

func runBoards(cmd *cobra.Command, args []string) error {
	for _, name := range config.PresetNames() {
		board, err := config.Preset(name)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d motor(s) at 0x%02x-0x%02x, bus SDA %s SCL %s\n",
			name, len(board.Motors), board.BaseAddress, int(board.BaseAddress)+len(board.Motors)-1,
			board.SDAPin, board.SCLPin)
		for i, m := range board.Motors {
			fmt.Printf("  %d %-8s %s\n", i, m.Kind, describePins(&m))
		}
	}
	return nil
}

func describePins(m *config.MotorConfig) string {
	var parts []string
	add := func(name, pin string) {
		if pin != "" {
			parts = append(parts, name+"="+pin)
		}
	}
	if len(m.PhasePins) > 0 {
		add("phases", strings.Join(m.PhasePins, ","))
	}
	add("step", m.StepPin)
	add("dir", m.DirPin)
	add("reset", m.ResetPin)
	add("ms1", m.MS1Pin)
	add("ms2", m.MS2Pin)
	add("ms3", m.MS3Pin)
	add("fault", m.FaultPin)
	add("limit", m.LimitPin)
	return strings.Join(parts, " ")
}
