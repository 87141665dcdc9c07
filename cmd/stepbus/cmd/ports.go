package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"stepbus/host/serial"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports",
	Long: `List the serial ports present on this host. rp2040 boards running the
controller firmware enumerate as USB CDC devices with vendor ID 2E8A.`,
	RunE: runPorts,
}

func init() {
	rootCmd.AddCommand(portsCmd)
}

func runPorts(cmd *cobra.Command, args []string) error {
	ports, err := serial.List()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found")
		return nil
	}
	for _, p := range ports {
		line := p.Name
		if p.USB {
			line += fmt.Sprintf("  USB %s:%s", p.VID, p.PID)
			if p.Product != "" {
				line += " " + p.Product
			}
			if p.SerialNumber != "" {
				line += " serial " + p.SerialNumber
			}
		}
		if p.IsPico() {
			line += "  (rp2040)"
		}
		fmt.Println(line)
	}
	return nil
}
