package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"stepbus/config"
	"stepbus/core"
	"stepbus/sim"
)

var (
	// Board selection flags
	boardName  string
	configPath string

	debug bool
)

var rootCmd = &cobra.Command{
	Use:   "stepbus",
	Short: "Stepper motor bus controller emulator",
	Long: `stepbus - runs the stepper controller firmware logic against simulated
driver chips, home switches and a simulated bus master.

Boards come from a preset (--board b1|b3|u6) or a JSON description
(--config board.json).

Link modes (serve, watch):
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --listen :8765 (frames on ws://host:8765/link)`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if debug {
			core.SetDebugWriter(func(s string) { fmt.Fprintln(os.Stderr, s) })
			core.SetDebugEnabled(true)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&boardName, "board", "b1", "Board preset")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "JSON board description (overrides --board)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Print controller debug output to stderr")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// loadBoard returns the board selected by the flags
func loadBoard() (*config.BoardConfig, error) {
	if configPath == "" {
		return config.Preset(boardName)
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read board config: %w", err)
	}
	board, err := config.LoadConfig(data)
	if err != nil {
		return nil, fmt.Errorf("invalid board config %s: %w", configPath, err)
	}
	return board, nil
}

// newRig builds a rig for the selected board
func newRig() (*sim.Rig, error) {
	board, err := loadBoard()
	if err != nil {
		return nil, err
	}
	return sim.NewRig(board)
}
