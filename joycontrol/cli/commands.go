package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"dio.wtf/nxcontrol/joycontrol/amiibo"
	"dio.wtf/nxcontrol/joycontrol/controller"
)

var (
	ErrMissingArgument = errors.New("missing argument")
	ErrUnknownStickCmd = errors.New("unknown stick command")
)

type helpCommand struct{}

func (helpCommand) Name() string  { return "help" }
func (helpCommand) Usage() string { return "show this help" }

func (helpCommand) Run(_ context.Context, sh *Shell, _ []string) (string, error) {
	return sh.help(), nil
}

type pushCommand struct{}

func (pushCommand) Name() string  { return "push" }
func (pushCommand) Usage() string { return "<button>... press and release buttons together" }

func (pushCommand) Run(ctx context.Context, sh *Shell, args []string) (string, error) {
	return "", sh.emulator.Pulse(ctx, args, PulseDuration)
}

type holdCommand struct{}

func (holdCommand) Name() string  { return "hold" }
func (holdCommand) Usage() string { return "<button>... press buttons until released" }

func (holdCommand) Run(ctx context.Context, sh *Shell, args []string) (string, error) {
	return "", sh.emulator.Hold(ctx, args...)
}

type releaseCommand struct{}

func (releaseCommand) Name() string  { return "release" }
func (releaseCommand) Usage() string { return "<button>... release held buttons" }

func (releaseCommand) Run(ctx context.Context, sh *Shell, args []string) (string, error) {
	return "", sh.emulator.Release(ctx, args...)
}

type stickCommand struct{}

func (stickCommand) Name() string { return "stick" }
func (stickCommand) Usage() string {
	return "<l|r> <center|up|down|left|right> | <l|r> <h|v> <value> move a stick"
}

func (stickCommand) Run(ctx context.Context, sh *Shell, args []string) (string, error) {
	if len(args) < 2 {
		return "", fmt.Errorf("stick: %w", ErrMissingArgument)
	}
	side, action := args[0], strings.ToLower(args[1])

	var fn func(*controller.StickState) error
	if direction, ok := controller.ParseStickDirection(action); ok {
		fn = func(s *controller.StickState) error {
			return s.SetDirection(direction)
		}
	} else {
		if len(args) < 3 {
			return "", fmt.Errorf("stick %s: %w", action, ErrMissingArgument)
		}
		value, err := strconv.ParseUint(args[2], 0, 16)
		if nil != err {
			return "", fmt.Errorf("stick value %q: %w", args[2], err)
		}
		switch action {
		case "h", "horizontal":
			fn = func(s *controller.StickState) error { return s.SetH(uint16(value)) }
		case "v", "vertical":
			fn = func(s *controller.StickState) error { return s.SetV(uint16(value)) }
		default:
			return "", fmt.Errorf("%w %q", ErrUnknownStickCmd, action)
		}
	}
	return "", sh.emulator.SetStick(ctx, side, fn)
}

type nfcCommand struct{}

func (nfcCommand) Name() string  { return "nfc" }
func (nfcCommand) Usage() string { return "[<file>|remove] load an amiibo dump, remove it or show the current one" }

func (nfcCommand) Run(ctx context.Context, sh *Shell, args []string) (string, error) {
	if len(args) == 0 {
		info, err := sh.emulator.Nfc(ctx)
		if nil != err {
			return "", err
		}
		if nil == info {
			return "no tag loaded", nil
		}
		return fmt.Sprintf("tag %X from %q", info.UID, info.Source), nil
	}

	if strings.ToLower(args[0]) == "remove" {
		if err := sh.emulator.SetNfc(ctx, nil); nil != err {
			return "", err
		}
		return "tag removed", nil
	}

	tag, err := amiibo.Load(sh.store, args[0])
	if nil != err {
		return "", err
	}
	// the tag belongs to the report loop once it is handed over
	loaded := fmt.Sprintf("tag %X loaded", tag.UID())
	if err := sh.emulator.SetNfc(ctx, tag); nil != err {
		return "", err
	}
	return loaded, nil
}

type exitCommand struct{}

func (exitCommand) Name() string  { return "exit" }
func (exitCommand) Usage() string { return "leave the shell" }

func (exitCommand) Run(context.Context, *Shell, []string) (string, error) {
	return "", ErrExit
}
