package cmd

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"stepbus/sim"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Drive a simulated board interactively",
	Long: `Open an interactive console on a simulated board. Simulated time only
advances when a command runs it (run, wait) or sends a command.

Type 'help' for the command list.`,
	RunE: runConsole,
}

func init() {
	rootCmd.AddCommand(consoleCmd)
}

func runConsole(cmd *cobra.Command, args []string) error {
	rig, err := newRig()
	if err != nil {
		return err
	}
	console := sim.NewConsole(rig, os.Stdout)

	fmt.Printf("stepbus console - board %s, %d motor(s) at 0x%02x\n", rig.Board.Name, rig.Device.NumMotors(), rig.Device.BaseAddress())
	fmt.Println("Enter commands (type 'help' for available commands, 'quit' to exit):")

	scanner := bufio.NewScanner(os.Stdin)
	for !console.Quit {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		if err := console.Exec(scanner.Text()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
	return scanner.Err()
}
