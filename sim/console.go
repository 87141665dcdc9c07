package sim

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/google/shlex"

	"stepbus/core"
	"stepbus/protocol"
)

var (
	errUsage      = errors.New("wrong arguments")
	errUnknownCmd = errors.New("unknown command")
	errNoTrace    = errors.New("not recording")
)

// defaultRunLimit bounds "run" to one simulated minute
const defaultRunLimit = 60 * core.TicksPerSecond

// Console runs text commands against a rig. Lines are split like a shell
// would split them.
type Console struct {
	rig *Rig
	out io.Writer

	// Quit is set by the "quit" command
	Quit bool
}

type consoleCmd struct {
	usage string
	help  string
	run   func(c *Console, args []string) error
}

var consoleCmds map[string]consoleCmd

func init() {
	consoleCmds = map[string]consoleCmd{
		"help":     {"help", "list commands", (*Console).help},
		"status":   {"status [motor]", "read the status of one or all motors", (*Console).status},
		"on":       {"on <motor>", "energize a motor", control(protocol.OpMotorOn)},
		"home":     {"home <motor>", "start the homing sequence", control(protocol.OpStartHoming)},
		"fakehome": {"fakehome <motor|all>", "mark a motor homed where it stands", (*Console).fakeHome},
		"arm":      {"arm <motor>", "report the home test position on the next read", control(protocol.OpArmTestPosition)},
		"move":     {"move <motor> <pos> [speed [accel]]", "move to an absolute position", (*Console).move},
		"stop":     {"stop <motor> [reset]", "decelerate to a stop, optionally de-energizing", (*Console).stop},
		"halt":     {"halt <motor>", "stop at once", control(protocol.OpHardStop)},
		"set":      {"set <motor> <word>... [limit=<ctrl>]", "load settings in wire order", (*Console).set},
		"raw":      {"raw <motor> <hex>...", "write raw bytes to a motor", (*Console).raw},
		"run":      {"run [ticks]", "run until every motor is idle", (*Console).run},
		"wait":     {"wait <ticks>", "run a fixed number of ticks", (*Console).wait},
		"fault":    {"fault <motor> on|off", "drive a driver chip's fault output", (*Console).fault},
		"switch":   {"switch <motor> <at> [high]", "fit a home switch closed at or below a physical position", (*Console).homeSwitch},
		"record":   {"record [interval]", "start tracing every interval ticks", (*Console).record},
		"save":     {"save <file>", "stop tracing and write the trace as CBOR", (*Console).save},
		"quit":     {"quit", "leave the console", (*Console).quit},
	}
}

// NewConsole creates a console writing its replies to out
func NewConsole(rig *Rig, out io.Writer) *Console {
	return &Console{rig: rig, out: out}
}

// Exec runs one command line. Blank lines and lines starting with '#' are ignored.
func (c *Console) Exec(line string) error {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}
	args, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("failed to parse %q: %w", line, err)
	}
	if len(args) == 0 {
		return nil
	}
	cmd, ok := consoleCmds[strings.ToLower(args[0])]
	if !ok {
		return fmt.Errorf("%w: %s", errUnknownCmd, args[0])
	}
	if err := cmd.run(c, args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			return fmt.Errorf("usage: %s", cmd.usage)
		}
		return err
	}
	return nil
}

// RunScript executes every line of r, stopping at the first error or quit
func (c *Console) RunScript(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	n := 0
	for scanner.Scan() && !c.Quit {
		n++
		if err := c.Exec(scanner.Text()); err != nil {
			return fmt.Errorf("line %d: %w", n, err)
		}
	}
	return scanner.Err()
}

func (c *Console) help(args []string) error {
	names := make([]string, 0, len(consoleCmds))
	for name := range consoleCmds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		cmd := consoleCmds[name]
		fmt.Fprintf(c.out, "  %-38s %s\n", cmd.usage, cmd.help)
	}
	return nil
}

func (c *Console) motor(arg string) (int, error) {
	i, err := strconv.Atoi(arg)
	if err != nil || i < 0 || i >= c.rig.Device.NumMotors() {
		return 0, fmt.Errorf("no motor %q", arg)
	}
	return i, nil
}

func parseU16(arg string) (uint16, error) {
	v, err := strconv.ParseUint(arg, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("bad value %q: %w", arg, err)
	}
	return uint16(v), nil
}

func (c *Console) send(i int, cmd protocol.Command) error {
	if err := c.rig.Send(i, cmd); err != nil {
		return fmt.Errorf("motor %d: %w", i, err)
	}
	// Let the main loop take the command
	c.rig.Step()
	return nil
}

func control(op byte) func(c *Console, args []string) error {
	return func(c *Console, args []string) error {
		if len(args) != 1 {
			return errUsage
		}
		i, err := c.motor(args[0])
		if err != nil {
			return err
		}
		return c.send(i, protocol.Control(op))
	}
}

// FormatStatus renders a status record on one line
func FormatStatus(i int, addr uint8, st protocol.Status) string {
	if st.IsTestPosition() {
		return fmt.Sprintf("motor %d @0x%02x: test position %d", i, addr, int16(st.Position()))
	}
	var flags []string
	if st.MotorOn() {
		flags = append(flags, "on")
	}
	if st.Homed() {
		flags = append(flags, "homed")
	}
	if st.Busy() {
		flags = append(flags, "busy")
	}
	s := fmt.Sprintf("motor %d @0x%02x: pos %d state 0x%02x [%s]", i, addr, st.Position(), st.State, strings.Join(flags, " "))
	if st.HasError() {
		s += " error: " + core.ErrorCode(st.ErrorBits()).Error()
	}
	return s
}

func (c *Console) status(args []string) error {
	motors := make([]int, 0, c.rig.Device.NumMotors())
	switch len(args) {
	case 0:
		for i := 0; i < c.rig.Device.NumMotors(); i++ {
			motors = append(motors, i)
		}
	case 1:
		i, err := c.motor(args[0])
		if err != nil {
			return err
		}
		motors = append(motors, i)
	default:
		return errUsage
	}
	for _, i := range motors {
		st, err := c.rig.Status(i)
		if err != nil {
			return fmt.Errorf("motor %d: %w", i, err)
		}
		fmt.Fprintln(c.out, FormatStatus(i, c.rig.Device.Address(i), st))
	}
	return nil
}

func (c *Console) fakeHome(args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	if args[0] == "all" {
		for i := 0; i < c.rig.Device.NumMotors(); i++ {
			if err := c.rig.Send(i, protocol.Control(protocol.OpFakeHome)); err != nil {
				return fmt.Errorf("motor %d: %w", i, err)
			}
		}
		c.rig.Step()
		return nil
	}
	return control(protocol.OpFakeHome)(c, args)
}

func (c *Console) move(args []string) error {
	if len(args) < 2 || len(args) > 4 {
		return errUsage
	}
	i, err := c.motor(args[0])
	if err != nil {
		return err
	}
	var v [3]uint16
	for j, arg := range args[1:] {
		if v[j], err = parseU16(arg); err != nil {
			return err
		}
	}
	switch len(args) {
	case 2:
		return c.send(i, protocol.Move(v[0]))
	case 3:
		return c.send(i, protocol.SpeedMove(v[0], v[1]))
	}
	return c.send(i, protocol.AccelSpeedMove(v[0], v[1], uint8(v[2])))
}

func (c *Console) stop(args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return errUsage
	}
	i, err := c.motor(args[0])
	if err != nil {
		return err
	}
	op := byte(protocol.OpSoftStop)
	if len(args) == 2 {
		if args[1] != "reset" {
			return errUsage
		}
		op = protocol.OpSoftStopReset
	}
	return c.send(i, protocol.Control(op))
}

func (c *Console) set(args []string) error {
	if len(args) < 2 {
		return errUsage
	}
	i, err := c.motor(args[0])
	if err != nil {
		return err
	}
	var words []uint16
	limit := -1
	for _, arg := range args[1:] {
		if v, ok := strings.CutPrefix(arg, "limit="); ok {
			ctrl, err := strconv.ParseUint(v, 0, 8)
			if err != nil {
				return fmt.Errorf("bad limit control %q: %w", v, err)
			}
			limit = int(ctrl)
			continue
		}
		w, err := parseU16(arg)
		if err != nil {
			return err
		}
		words = append(words, w)
	}
	if len(words) == 0 || len(words) > protocol.MaxSettingWords {
		return errUsage
	}
	cmd := protocol.LoadSettings(words...)
	if limit >= 0 {
		if len(words) != protocol.MaxSettingWords {
			return fmt.Errorf("limit control needs all %d setting words", protocol.MaxSettingWords)
		}
		cmd = cmd.WithLimitControl(uint8(limit))
	}
	return c.send(i, cmd)
}

func (c *Console) raw(args []string) error {
	if len(args) < 2 {
		return errUsage
	}
	i, err := c.motor(args[0])
	if err != nil {
		return err
	}
	data := make([]byte, 0, len(args)-1)
	for _, arg := range args[1:] {
		b, err := strconv.ParseUint(strings.TrimPrefix(arg, "0x"), 16, 8)
		if err != nil {
			return fmt.Errorf("bad byte %q: %w", arg, err)
		}
		data = append(data, byte(b))
	}
	if err := c.rig.Bus.Tx(c.rig.Address(i), data, nil); err != nil {
		return fmt.Errorf("motor %d: %w", i, err)
	}
	c.rig.Step()
	return nil
}

func (c *Console) run(args []string) error {
	limit := defaultRunLimit
	if len(args) > 1 {
		return errUsage
	}
	if len(args) == 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return fmt.Errorf("bad tick count %q", args[0])
		}
		limit = n
	}
	n, err := c.rig.RunUntilIdle(limit)
	if err != nil {
		return fmt.Errorf("after %d ticks: %w", n, err)
	}
	fmt.Fprintf(c.out, "idle after %d ticks (%.3f s)\n", n, float64(n)/core.TicksPerSecond)
	return nil
}

func (c *Console) wait(args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 0 {
		return fmt.Errorf("bad tick count %q", args[0])
	}
	c.rig.Advance(n)
	return nil
}

func (c *Console) fault(args []string) error {
	if len(args) != 2 || (args[1] != "on" && args[1] != "off") {
		return errUsage
	}
	i, err := c.motor(args[0])
	if err != nil {
		return err
	}
	c.rig.Axes[i].SetFault(args[1] == "on")
	return nil
}

func (c *Console) homeSwitch(args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return errUsage
	}
	i, err := c.motor(args[0])
	if err != nil {
		return err
	}
	at, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("bad position %q", args[1])
	}
	s := Switch{At: at}
	if len(args) == 3 {
		if args[2] != "high" {
			return errUsage
		}
		s.ActiveHigh = true
	}
	c.rig.Axes[i].SetSwitch(s)
	return nil
}

func (c *Console) record(args []string) error {
	interval := uint64(100)
	if len(args) > 1 {
		return errUsage
	}
	if len(args) == 1 {
		v, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("bad interval %q", args[0])
		}
		interval = v
	}
	c.rig.Record(uint32(interval))
	return nil
}

func (c *Console) save(args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	trace := c.rig.Trace()
	if trace == nil {
		return errNoTrace
	}
	f, err := os.Create(args[0])
	if err != nil {
		return fmt.Errorf("failed to create trace file: %w", err)
	}
	if err := trace.WriteCBOR(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "wrote %d samples, %d events to %s\n", len(trace.Samples), len(trace.Events), args[0])
	return nil
}

func (c *Console) quit(args []string) error {
	c.Quit = true
	return nil
}
