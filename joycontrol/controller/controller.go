package controller

import (
	"fmt"
	"strings"
)

// Type identifies which controller is emulated. The value is the device type
// byte reported in the device info subcommand reply.
type Type uint8

const (
	JoyconL       Type = 0x01
	JoyconR       Type = 0x02
	ProController Type = 0x03
)

// UnknownControllerError is returned when a controller name cannot be parsed.
type UnknownControllerError struct {
	Name string
}

func (e *UnknownControllerError) Error() string {
	return fmt.Sprintf("unknown controller: %s", e.Name)
}

// ParseType parses JOYCON_L, JOYCON_R or PRO_CONTROLLER, ignoring case.
func ParseType(s string) (Type, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "JOYCON_L":
		return JoyconL, nil
	case "JOYCON_R":
		return JoyconR, nil
	case "PRO_CONTROLLER":
		return ProController, nil
	default:
		return 0, &UnknownControllerError{Name: s}
	}
}

func (t Type) String() string {
	switch t {
	case JoyconL:
		return "Joy-Con (L)"
	case JoyconR:
		return "Joy-Con (R)"
	case ProController:
		return "Pro Controller"
	default:
		return "UNKNOWN"
	}
}

func (t Type) HasLeftStick() bool {
	return t == JoyconL || t == ProController
}

func (t Type) HasRightStick() bool {
	return t == JoyconR || t == ProController
}
