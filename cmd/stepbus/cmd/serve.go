package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"stepbus/core"
	"stepbus/host/serial"
	"stepbus/sim"
)

var (
	// Link flags
	portName   string
	baudRate   int
	listenAddr string

	statusInterval time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Emulate a board in real time behind a bus link",
	Long: `Run the selected board in real time and answer bus link frames from a
serial port, WebSocket clients, or both. Every frame carries one bus
transaction and is answered with a frame echoing its sequence number.

Examples:
  # Serve a three motor board on a USB serial adapter
  stepbus serve --board b3 --port /dev/ttyUSB0

  # Serve over WebSocket and print status every 5 s
  stepbus serve --listen :8765 --status 5s`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addLinkFlags(serveCmd)
	serveCmd.Flags().DurationVar(&statusInterval, "status", 0, "Print motor status at this interval (0 = off)")
}

func addLinkFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&portName, "port", "p", "", "Serial port device")
	cmd.Flags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")
	cmd.Flags().StringVarP(&listenAddr, "listen", "l", "", "WebSocket listen address")
}

// startLinks serves the emulator on the links selected by the flags until
// ctx is done. Errors are reported to errs.
func startLinks(ctx context.Context, e *sim.Emulator, logger *log.Logger, errs chan<- error) ([]string, error) {
	var info []string

	if portName != "" {
		cfg := serial.DefaultConfig(portName)
		cfg.Baud = baudRate
		// Serve treats an empty read as end of stream
		cfg.ReadTimeout = 0
		port, err := serial.Open(cfg)
		if err != nil {
			return nil, err
		}
		go func() {
			<-ctx.Done()
			port.Close()
		}()
		go func() {
			if err := e.Serve(port); err != nil && ctx.Err() == nil {
				errs <- fmt.Errorf("serial link: %w", err)
			}
		}()
		info = append(info, fmt.Sprintf("Serial: %s @ %d baud", portName, baudRate))
	}

	if listenAddr != "" {
		ln, err := net.Listen("tcp", listenAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to listen on %s: %w", listenAddr, err)
		}
		mux := http.NewServeMux()
		mux.HandleFunc("/link", func(w http.ResponseWriter, r *http.Request) {
			port, err := serial.Upgrade(w, r)
			if err != nil {
				logger.Printf("WebSocket upgrade failed: %v", err)
				return
			}
			defer port.Close()
			logger.Printf("Link opened by %s", r.RemoteAddr)
			err = e.Serve(port)
			logger.Printf("Link from %s closed: %v", r.RemoteAddr, err)
		})
		server := &http.Server{Handler: mux}
		go func() {
			<-ctx.Done()
			server.Close()
		}()
		go func() {
			if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errs <- fmt.Errorf("websocket link: %w", err)
			}
		}()
		info = append(info, fmt.Sprintf("WebSocket: ws://%s/link", ln.Addr()))
	}

	if len(info) == 0 {
		return nil, fmt.Errorf("either --port or --listen must be specified")
	}
	return info, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	if debug {
		// Fault reports from the real-time loop go through a queue
		core.InitAsyncDebug()
	}
	rig, err := newRig()
	if err != nil {
		return err
	}
	e := sim.NewEmulator(rig)
	logger := log.New(os.Stderr, "", log.LstdFlags)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 2)
	info, err := startLinks(ctx, e, logger, errs)
	if err != nil {
		return err
	}

	fmt.Printf("stepbus - emulating board %s (%d motors at 0x%02x)\n", rig.Board.Name, rig.Device.NumMotors(), rig.Device.BaseAddress())
	for _, line := range info {
		fmt.Println(line)
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	if statusInterval > 0 {
		go func() {
			ticker := time.NewTicker(statusInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					printSnapshot(e.Snapshot())
				}
			}
		}()
	}

	go func() {
		if err := e.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errs <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errs:
		return err
	}
}

func printSnapshot(s sim.Snapshot) {
	fmt.Printf("t=%.2fs raised=%d link errors=%d\n", float64(s.Tick)/core.TicksPerSecond, s.Raised, s.LinkErrors)
	for _, m := range s.Motors {
		fmt.Printf("  %d @0x%02x %-8s %-13s pos %6d -> %6d speed %5d state 0x%02x\n",
			m.Index, m.Address, m.Kind, m.State, m.Position, m.Target, m.Speed, m.StateByte)
	}
}
