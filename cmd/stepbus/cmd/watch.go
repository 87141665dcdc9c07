package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"stepbus/core"
	"stepbus/protocol"
	"stepbus/sim"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Emulate a board in real time with a live view",
	Long: `Run the selected board in real time and show every motor live. The
board can be driven from the keyboard and, with --port or --listen, by a
bus master over a link at the same time.

Keys:
  h  fake-home every motor     o  energize every motor
  m  move every motor          s  soft stop every motor
  x  hard stop every motor     q  quit`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	addLinkFlags(watchCmd)
}

const maxWatchLog = 8

type watchModel struct {
	e        *sim.Emulator
	board    string
	links    []string
	maxPos   []uint16
	snap     sim.Snapshot
	log      []string
	far      bool
	width    int
	quitting bool
}

type refreshMsg time.Time

type linkErrMsg struct{ err error }

func refreshCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(refreshCmd(), tea.EnterAltScreen)
}

func (m *watchModel) addLog(msg string) {
	m.log = append(m.log, time.Now().Format("15:04:05")+" "+msg)
	if len(m.log) > maxWatchLog {
		m.log = m.log[len(m.log)-maxWatchLog:]
	}
}

// sendAll sends one command per motor, built by build
func (m *watchModel) sendAll(what string, build func(i int) protocol.Command) {
	for i := range m.maxPos {
		if err := m.e.Send(i, build(i)); err != nil {
			m.addLog(fmt.Sprintf("%s motor %d: %v", what, i, err))
			return
		}
	}
	m.addLog(what)
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "h":
			m.sendAll("fake home", func(int) protocol.Command { return protocol.Control(protocol.OpFakeHome) })
		case "o":
			m.sendAll("motor on", func(int) protocol.Command { return protocol.Control(protocol.OpMotorOn) })
		case "m":
			m.far = !m.far
			m.sendAll("move", func(i int) protocol.Command {
				if m.far {
					return protocol.Move(m.maxPos[i] / 4 * 3)
				}
				return protocol.Move(m.maxPos[i] / 4)
			})
		case "s":
			m.sendAll("soft stop", func(int) protocol.Command { return protocol.Control(protocol.OpSoftStop) })
		case "x":
			m.sendAll("hard stop", func(int) protocol.Command { return protocol.Control(protocol.OpHardStop) })
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case refreshMsg:
		prev := m.snap.Raised
		m.snap = m.e.Snapshot()
		if m.snap.Raised > prev {
			m.addLog(fmt.Sprintf("%d error(s) raised", m.snap.Raised-prev))
		}
		return m, refreshCmd()

	case linkErrMsg:
		m.addLog("link: " + msg.err.Error())
	}
	return m, nil
}

var (
	watchTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)
	watchHeaderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	watchLabelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	watchBoxStyle    = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240")).
				Padding(0, 1)

	stateStyles = map[core.MotorState]lipgloss.Style{
		core.StateIdle:         lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		core.StateMoving:       lipgloss.NewStyle().Foreground(lipgloss.Color("14")),
		core.StateHoming:       lipgloss.NewStyle().Foreground(lipgloss.Color("13")),
		core.StateSoftStopping: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		core.StateFaulted:      lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
	}
)

// positionBar draws pos within [0, limit] as a bar of width cells
func positionBar(pos int16, limit uint16, width int) string {
	if limit == 0 || width <= 0 {
		return ""
	}
	p := int(pos)
	if p < 0 {
		p = 0
	}
	if p > int(limit) {
		p = int(limit)
	}
	filled := p * width / int(limit)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func (m watchModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder
	s.WriteString(watchTitleStyle.Render("STEPBUS - " + strings.ToUpper(m.board)))
	s.WriteString("\n")
	header := fmt.Sprintf("t=%.1fs | errors raised: %d | link errors: %d | Press 'q' to quit",
		float64(m.snap.Tick)/core.TicksPerSecond, m.snap.Raised, m.snap.LinkErrors)
	s.WriteString(watchHeaderStyle.Render(header))
	s.WriteString("\n")
	for _, l := range m.links {
		s.WriteString(watchHeaderStyle.Render(l))
		s.WriteString("\n")
	}
	s.WriteString("\n")

	barWidth := 30
	if m.width > 100 {
		barWidth = m.width - 70
	}

	var rows strings.Builder
	rows.WriteString(watchLabelStyle.Render(fmt.Sprintf("%-2s %-5s %-14s %7s %7s %6s %3s %5s", "#", "addr", "state", "pos", "target", "speed", "ms", "flags")))
	for _, mv := range m.snap.Motors {
		style, ok := stateStyles[mv.State]
		if !ok {
			style = lipgloss.NewStyle()
		}
		flags := stateFlags(mv.StateByte)
		rows.WriteString("\n")
		rows.WriteString(fmt.Sprintf("%-2d 0x%02x  %s %7d %7d %6d %3d %5s ",
			mv.Index, mv.Address, style.Render(fmt.Sprintf("%-14s", mv.State)), mv.Position, mv.Target, mv.Speed, mv.Microstep, flags))
		if mv.Index < len(m.maxPos) {
			rows.WriteString(positionBar(mv.Position, m.maxPos[mv.Index], barWidth))
		}
	}
	s.WriteString(watchBoxStyle.Render(rows.String()))
	s.WriteString("\n\n")

	if len(m.log) > 0 {
		s.WriteString(watchBoxStyle.Render(strings.Join(m.log, "\n")))
		s.WriteString("\n")
	}
	s.WriteString(watchHeaderStyle.Render("h home  o on  m move  s stop  x halt  q quit"))
	s.WriteString("\n")
	return s.String()
}

// stateFlags abbreviates the state byte: H homed, O on, B busy, E error
func stateFlags(state uint8) string {
	flags := []byte("----")
	if state&protocol.StateHomed != 0 {
		flags[0] = 'H'
	}
	if state&protocol.StateMotorOn != 0 {
		flags[1] = 'O'
	}
	if state&protocol.StateBusy != 0 {
		flags[2] = 'B'
	}
	if state&protocol.StateErrorBit != 0 {
		flags[3] = 'E'
	}
	return string(flags)
}

func runWatch(cmd *cobra.Command, args []string) error {
	rig, err := newRig()
	if err != nil {
		return err
	}
	e := sim.NewEmulator(rig)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Link logging would scribble over the view
	logger := log.New(io.Discard, "", 0)
	errs := make(chan error, 2)
	var links []string
	if portName != "" || listenAddr != "" {
		if links, err = startLinks(ctx, e, logger, errs); err != nil {
			return err
		}
	}

	maxPos := make([]uint16, len(rig.Board.Motors))
	for i, mc := range rig.Board.Motors {
		maxPos[i] = mc.Settings.MaxPosition
	}

	go e.Run(ctx)

	p := tea.NewProgram(watchModel{
		e:      e,
		board:  rig.Board.Name,
		links:  links,
		maxPos: maxPos,
		snap:   e.Snapshot(),
		width:  80,
	})
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-errs:
				p.Send(linkErrMsg{err})
			}
		}
	}()

	_, err = p.Run()
	return err
}
