package controller

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"
)

var (
	proControllerButtons = []string{
		"y", "x", "b", "a", "r", "zr", "minus", "plus", "r_stick", "l_stick", "home", "capture",
		"down", "up", "right", "left", "l", "zl",
	}
	joyconRButtons = []string{
		"y", "x", "b", "a", "sr", "sl", "r", "zr", "plus", "r_stick", "home",
	}
	joyconLButtons = []string{
		"minus", "l_stick", "capture", "down", "up", "right", "left", "sr", "sl", "l", "zl",
	}
)

type buttonBit struct {
	index int
	mask  byte
}

// https://github.com/dekuNukem/Nintendo_Switch_Reverse_Engineering/blob/master/bluetooth_hid_notes.md
//
// | Byte       | x80  | x40 | x20     | x10     | x08  | x04     | x02 | x01 |
// |:----------:|:----:|:---:|:-------:|:-------:|:----:|:-------:|:---:|:---:|
// | 0 (Right)  | Y    | X   | B       | A       | SR   | SL      | R   | ZR  |
// | 1 (Shared) | -    | +   | R Stick | L Stick | Home | Capture | --  | --  |
// | 2 (Left)   | Down | Up  | Right   | Left    | SR   | SL      | L   | ZL  |
var (
	sharedButtonBits = map[string]buttonBit{
		"minus":   {1, 0x80},
		"plus":    {1, 0x40},
		"r_stick": {1, 0x20},
		"l_stick": {1, 0x10},
		"home":    {1, 0x08},
		"capture": {1, 0x04},
	}
	rightButtonBits = map[string]buttonBit{
		"y":  {0, 0x80},
		"x":  {0, 0x40},
		"b":  {0, 0x20},
		"a":  {0, 0x10},
		"sr": {0, 0x08},
		"sl": {0, 0x04},
		"r":  {0, 0x02},
		"zr": {0, 0x01},
	}
	leftButtonBits = map[string]buttonBit{
		"down":  {2, 0x80},
		"up":    {2, 0x40},
		"right": {2, 0x20},
		"left":  {2, 0x10},
		"sr":    {2, 0x08},
		"sl":    {2, 0x04},
		"l":     {2, 0x02},
		"zl":    {2, 0x01},
	}
)

// ButtonNotAvailableError is returned for a button the controller does not have.
type ButtonNotAvailableError struct {
	Button     string
	Controller Type
}

func (e *ButtonNotAvailableError) Error() string {
	return fmt.Sprintf("given button %q is not available to %s", e.Button, e.Controller)
}

// ButtonState holds the pressed flag of every button available to one
// controller type. Button names are lower case.
type ButtonState struct {
	controller Type
	buttons    map[string]bool
}

func NewButtonState(controller Type) *ButtonState {
	available := availableButtons(controller)
	buttons := make(map[string]bool, len(available))
	for _, name := range available {
		buttons[name] = false
	}
	return &ButtonState{
		controller: controller,
		buttons:    buttons,
	}
}

func availableButtons(controller Type) []string {
	switch controller {
	case JoyconL:
		return joyconLButtons
	case JoyconR:
		return joyconRButtons
	case ProController:
		return proControllerButtons
	default:
		return nil
	}
}

func (b *ButtonState) Controller() Type {
	return b.controller
}

// AvailableButtons returns the fixed, ordered button list of the controller.
func (b *ButtonState) AvailableButtons() []string {
	return slices.Clone(availableButtons(b.controller))
}

func (b *ButtonState) SetButton(button string, pushed bool) error {
	button = strings.ToLower(button)
	if _, ok := b.buttons[button]; !ok {
		return &ButtonNotAvailableError{Button: button, Controller: b.controller}
	}
	b.buttons[button] = pushed
	return nil
}

func (b *ButtonState) Button(button string) (bool, error) {
	button = strings.ToLower(button)
	pushed, ok := b.buttons[button]
	if !ok {
		return false, &ButtonNotAvailableError{Button: button, Controller: b.controller}
	}
	return pushed, nil
}

func (b *ButtonState) Clear() {
	for name := range b.buttons {
		b.buttons[name] = false
	}
}

// Bytes returns the 3 button bytes of the input report.
func (b *ButtonState) Bytes() [3]byte {
	var data [3]byte
	b.fill(&data, sharedButtonBits)
	switch b.controller {
	case JoyconR:
		b.fill(&data, rightButtonBits)
	case JoyconL:
		b.fill(&data, leftButtonBits)
	case ProController:
		// SR/SL are not part of the available set, so they never light up.
		b.fill(&data, rightButtonBits)
		b.fill(&data, leftButtonBits)
	}
	return data
}

func (b *ButtonState) fill(data *[3]byte, bits map[string]buttonBit) {
	for name, info := range bits {
		if b.buttons[name] {
			data[info.index] |= info.mask
		}
	}
}
