// Package interactive provides the interactive command-line interface
// for aircli.
package interactive

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/chzyer/readline"

	"github.com/mertbulan/philips-airpurifier/pkg/purifier"
)

// Console handles interactive mode for aircli.
type Console struct {
	fan *purifier.Fan
	rl  *readline.Instance
}

// New creates a new interactive console for a fan.
func New(fan *purifier.Fan) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "air> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Console{fan: fan, rl: rl}, nil
}

// Stdout returns a writer that properly coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (c *Console) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Run starts the interactive command loop.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			c.printHelp()

		case "status", "s":
			c.cmdStatus(ctx)

		case "attrs", "a":
			c.cmdAttrs()

		case "watch", "w":
			c.cmdWatch(ctx)

		case "speed":
			c.cmdSpeed(ctx, args)

		case "set":
			c.cmdSet(ctx, args)

		case "on":
			c.cmdPower(ctx, true)

		case "off":
			c.cmdPower(ctx, false)

		case "id":
			c.cmdID()

		case "quit", "exit", "q":
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return

		default:
			fmt.Fprintf(c.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (c *Console) printHelp() {
	speeds := make([]string, 0, len(c.fan.Model().Speeds))
	for _, s := range c.fan.Model().Speeds {
		speeds = append(speeds, string(s))
	}

	fmt.Fprintf(c.rl.Stdout(), `
Air Purifier Commands:
  Status:
    status, s           - Fetch and show the raw device status
    attrs, a            - Show named device attributes
    watch, w            - Stream live status updates (Enter to stop)
    id                  - Show the device identity

  Control:
    on                  - Power on
    off                 - Power off
    speed <speed>       - Set fan speed (%s)
    set <key> <value>   - Send a raw control value

  Other:
    help, ?             - Show this help
    quit, q             - Exit
`, strings.Join(speeds, ", "))
}

func (c *Console) cmdStatus(ctx context.Context) {
	status, err := c.fan.Client().FetchStatus(ctx)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Failed to fetch status: %v\n", err)
		return
	}

	keys := make([]string, 0, len(status))
	for k := range status {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(c.rl.Stdout(), "  %-16s %s\n", k, status[k])
	}

	if speed := c.fan.Speed(); speed != "" {
		fmt.Fprintf(c.rl.Stdout(), "Speed: %s\n", speed)
	}
}

func (c *Console) cmdAttrs() {
	attrs := c.fan.Attributes()
	if len(attrs) == 0 {
		fmt.Fprintln(c.rl.Stdout(), "No attributes in the last status")
		return
	}

	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(c.rl.Stdout(), "  %-36s %s\n", k, attrs[k])
	}
}

// cmdWatch streams status updates until the user presses Enter.
func (c *Console) cmdWatch(ctx context.Context) {
	watchCtx, stop := context.WithCancel(ctx)
	defer stop()

	updates, err := c.fan.Client().StatusStream(watchCtx)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Failed to start stream: %v\n", err)
		return
	}

	fmt.Fprintln(c.rl.Stdout(), "Watching for updates (press Enter to stop)...")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for status := range updates {
			speed := c.fan.Model().SpeedOf(status)
			fmt.Fprintf(c.rl.Stdout(), "[update] pwr=%s mode=%s om=%s speed=%s pm25=%s iaql=%s\n",
				status[purifier.KeyPower], status[purifier.KeyMode],
				status[purifier.KeySpeed], speed,
				status[purifier.KeyPM25], status[purifier.KeyAllergenIndex])
		}
		if err := c.fan.Client().StreamErr(); err != nil {
			fmt.Fprintf(c.rl.Stdout(), "Stream ended: %v\n", err)
		}
	}()

	c.rl.Readline()
	stop()
	<-done
}

func (c *Console) cmdSpeed(ctx context.Context, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: speed <speed>")
		return
	}
	speed := purifier.Speed(strings.ToLower(args[0]))
	if !c.fan.Model().Supports(speed) {
		fmt.Fprintf(c.rl.Stdout(), "Unsupported speed: %s\n", args[0])
		return
	}
	if err := c.fan.SetSpeed(ctx, speed); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Failed to set speed: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "Speed set to %s\n", speed)
}

func (c *Console) cmdSet(ctx context.Context, args []string) {
	if len(args) != 2 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: set <key> <value>")
		return
	}
	if err := c.fan.Client().SendControl(ctx, args[0], args[1]); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "%s = %s acknowledged\n", args[0], args[1])
}

func (c *Console) cmdPower(ctx context.Context, on bool) {
	var err error
	if on {
		err = c.fan.TurnOn(ctx)
	} else {
		err = c.fan.TurnOff(ctx)
	}
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Failed: %v\n", err)
		return
	}
	if on {
		fmt.Fprintln(c.rl.Stdout(), "Powered on")
	} else {
		fmt.Fprintln(c.rl.Stdout(), "Powered off")
	}
}

func (c *Console) cmdID() {
	id := c.fan.Client().Identity()
	fmt.Fprintf(c.rl.Stdout(), "  Device ID: %s\n", id.DeviceID)
	fmt.Fprintf(c.rl.Stdout(), "  Model:     %s\n", id.ModelID)
	fmt.Fprintf(c.rl.Stdout(), "  Unique ID: %s\n", id.UniqueID())
}
