package cli

import (
	"bufio"
	gocontext "context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/example/safebridge/internal/core/dispatch"
)

// errMockOnly is returned by press/hangup when calls go to a real ARS.
var errMockOnly = errors.New("only available in mock ARS mode")

// dispatchActions is what the console drives; *cli.DispatchAdapter implements it.
type dispatchActions interface {
	Approve(ctx gocontext.Context, hospitalID string) error
	Reject(ctx gocontext.Context, hospitalID string) error
	Research(ctx gocontext.Context, c dispatch.CaseInfo) error
	Cancel(ctx gocontext.Context) error
	Status()
}

// hospitalSimulator answers mock calls; *mockars.ARS implements it.
type hospitalSimulator interface {
	Press(ctx gocontext.Context, hospitalID, digit string) error
	Hangup(hospitalID, status string) error
	Ringing() []string
}

// Console reads operator commands line by line.
type Console struct {
	actions  dispatchActions
	sim      hospitalSimulator // nil with a real ARS
	caseInfo dispatch.CaseInfo
	out      io.Writer
}

// NewConsole creates a console for one case. sim may be nil.
func NewConsole(actions dispatchActions, sim hospitalSimulator, c dispatch.CaseInfo, out io.Writer) *Console {
	return &Console{actions: actions, sim: sim, caseInfo: c, out: out}
}

const consoleHelp = `Commands:
  approve <hpid>         accept a hospital
  reject <hpid>          refuse a hospital
  research               search again and restart dispatch
  status                 show candidates
  press <hpid> <1|2>     answer a mock call (1 accept, 2 decline)
  hangup <hpid> <status> end a mock call (busy, no-answer, failed, canceled)
  ringing                list unanswered mock calls
  cancel                 end dispatch without approving
  quit                   leave the console`

// Run processes lines from in until quit, EOF or ctx is done.
func (c *Console) Run(ctx gocontext.Context, in io.Reader) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			quit, err := c.Execute(ctx, line)
			if err != nil {
				fmt.Fprintln(c.out, color.New(color.FgRed).Sprintf("✗ %v", err))
			}
			if quit {
				return nil
			}
		}
	}
}

// Execute runs one command line.
func (c *Console) Execute(ctx gocontext.Context, line string) (quit bool, err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "approve", "a":
		if len(args) != 1 {
			return false, fmt.Errorf("usage: approve <hpid>")
		}
		return false, c.actions.Approve(ctx, args[0])
	case "reject", "r":
		if len(args) != 1 {
			return false, fmt.Errorf("usage: reject <hpid>")
		}
		return false, c.actions.Reject(ctx, args[0])
	case "research":
		return false, c.actions.Research(ctx, c.caseInfo)
	case "status", "s":
		c.actions.Status()
		return false, nil
	case "press":
		if len(args) != 2 {
			return false, fmt.Errorf("usage: press <hpid> <1|2>")
		}
		if c.sim == nil {
			return false, fmt.Errorf("press: %w", errMockOnly)
		}
		return false, c.sim.Press(ctx, args[0], args[1])
	case "hangup":
		if len(args) != 2 {
			return false, fmt.Errorf("usage: hangup <hpid> <status>")
		}
		if c.sim == nil {
			return false, fmt.Errorf("hangup: %w", errMockOnly)
		}
		return false, c.sim.Hangup(args[0], args[1])
	case "ringing":
		if c.sim == nil {
			return false, fmt.Errorf("ringing: %w", errMockOnly)
		}
		ringing := c.sim.Ringing()
		if len(ringing) == 0 {
			fmt.Fprintln(c.out, "No unanswered calls")
		} else {
			fmt.Fprintf(c.out, "Ringing: %s\n", strings.Join(ringing, ", "))
		}
		return false, nil
	case "cancel":
		return false, c.actions.Cancel(ctx)
	case "help", "?":
		fmt.Fprintln(c.out, consoleHelp)
		return false, nil
	case "quit", "exit", "q":
		return true, nil
	}
	return false, fmt.Errorf("unknown command %q (type help)", cmd)
}
