// Package cli is the interactive command shell driving an emulated
// controller.
package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dio.wtf/nxcontrol/joycontrol/amiibo"
	"dio.wtf/nxcontrol/joycontrol/blob"
	"dio.wtf/nxcontrol/joycontrol/controller"
	"dio.wtf/nxcontrol/joycontrol/log"
	"github.com/google/shlex"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// PulseDuration is how long push keeps buttons pressed.
const PulseDuration = 100 * time.Millisecond

var ErrExit = errors.New("exit")

// Emulator is what the shell drives.
type Emulator interface {
	Controller() controller.Type
	Pulse(ctx context.Context, buttons []string, hold time.Duration) error
	Hold(ctx context.Context, buttons ...string) error
	Release(ctx context.Context, buttons ...string) error
	SetStick(ctx context.Context, side string, fn func(*controller.StickState) error) error
	SetNfc(ctx context.Context, tag *amiibo.Tag) error
	Nfc(ctx context.Context) (*amiibo.Info, error)
}

type Command interface {
	Name() string
	Usage() string
	Run(ctx context.Context, sh *Shell, args []string) (string, error)
}

type Shell struct {
	emulator Emulator
	store    blob.Store
	commands map[string]Command
	buttons  []string
}

func NewShell(emulator Emulator, store blob.Store) *Shell {
	sh := &Shell{
		emulator: emulator,
		store:    store,
		commands: make(map[string]Command),
		buttons:  controller.NewButtonState(emulator.Controller()).AvailableButtons(),
	}
	for _, cmd := range []Command{
		helpCommand{},
		pushCommand{},
		holdCommand{},
		releaseCommand{},
		stickCommand{},
		nfcCommand{},
		exitCommand{},
	} {
		sh.Register(cmd)
	}
	return sh
}

// Register adds cmd unless a command of that name exists.
func (s *Shell) Register(cmd Command) {
	if _, ok := s.commands[cmd.Name()]; ok {
		log.WarnF("Command %s already registered", cmd.Name())
		return
	}
	s.commands[cmd.Name()] = cmd
}

func (s *Shell) Emulator() Emulator {
	return s.emulator
}

// Execute runs every "&&" separated command of line and returns one output
// line per command. ErrExit is returned once an exit command ran.
func (s *Shell) Execute(ctx context.Context, line string) ([]string, error) {
	var out []string
	for _, part := range strings.Split(line, "&&") {
		args, err := shlex.Split(part)
		if nil != err {
			out = append(out, err.Error())
			continue
		}
		if len(args) == 0 {
			continue
		}

		name := strings.ToLower(args[0])
		cmd, ok := s.commands[name]
		if !ok {
			if s.isButton(name) {
				cmd, args = pushCommand{}, append([]string{"push"}, args...)
			} else {
				out = append(out, fmt.Sprintf("command %s not found, call help for help.", args[0]))
				continue
			}
		}

		result, err := cmd.Run(ctx, s, args[1:])
		if errors.Is(err, ErrExit) {
			return out, ErrExit
		}
		if nil != err {
			log.DebugF("%s: %v", name, err)
			out = append(out, err.Error())
			continue
		}
		if result != "" {
			out = append(out, result)
		}
	}
	return out, nil
}

func (s *Shell) isButton(name string) bool {
	return slices.Contains(s.buttons, name)
}

func (s *Shell) help() string {
	names := maps.Keys(s.commands)
	slices.Sort(names)

	var builder strings.Builder
	builder.WriteString("Commands:\n")
	for _, name := range names {
		builder.WriteString(fmt.Sprintf("  %-8s %s\n", name, s.commands[name].Usage()))
	}
	builder.WriteString("Buttons: ")
	builder.WriteString(strings.Join(s.buttons, ", "))
	builder.WriteString("\nChain commands with &&, a bare button list is pushed.")
	return builder.String()
}
