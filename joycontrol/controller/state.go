package controller

import (
	"errors"
	"strings"

	"dio.wtf/nxcontrol/joycontrol/amiibo"
	"dio.wtf/nxcontrol/joycontrol/memory"
)

var (
	ErrNoButtonsGiven    = errors.New("no buttons given")
	ErrStickNotAvailable = errors.New("stick is not available to this controller")
)

// State is everything a report is built from. It is owned by the goroutine
// producing reports; nothing in here is safe for concurrent use.
type State struct {
	controller Type
	spiFlash   *memory.FlashMemory
	nfc        *amiibo.Tag

	buttons *ButtonState
	lStick  *StickState
	rStick  *StickState

	sent chan struct{}
}

func NewState(controller Type, spiFlash *memory.FlashMemory) *State {
	s := &State{
		controller: controller,
		spiFlash:   spiFlash,
		buttons:    NewButtonState(controller),
	}
	if controller.HasLeftStick() {
		s.lStick = newStick(leftCalibration(spiFlash))
	}
	if controller.HasRightStick() {
		s.rStick = newStick(rightCalibration(spiFlash))
	}
	return s
}

func leftCalibration(spiFlash *memory.FlashMemory) *StickCalibration {
	if spiFlash == nil {
		return nil
	}
	if data, ok := spiFlash.UserLeftStickCalibration(); ok {
		return LeftStickCalibration(data)
	}
	return LeftStickCalibration(spiFlash.FactoryLeftStickCalibration())
}

func rightCalibration(spiFlash *memory.FlashMemory) *StickCalibration {
	if spiFlash == nil {
		return nil
	}
	if data, ok := spiFlash.UserRightStickCalibration(); ok {
		return RightStickCalibration(data)
	}
	return RightStickCalibration(spiFlash.FactoryRightStickCalibration())
}

func newStick(calibration *StickCalibration) *StickState {
	stick := &StickState{calibration: calibration}
	if calibration != nil {
		_ = stick.SetCenter()
	}
	return stick
}

func (s *State) Controller() Type {
	return s.controller
}

func (s *State) SpiFlash() *memory.FlashMemory {
	return s.spiFlash
}

func (s *State) Buttons() *ButtonState {
	return s.buttons
}

// LeftStick is nil for a right Joy-Con.
func (s *State) LeftStick() *StickState {
	return s.lStick
}

// RightStick is nil for a left Joy-Con.
func (s *State) RightStick() *StickState {
	return s.rStick
}

// Stick looks up a stick by "l"/"left" or "r"/"right".
func (s *State) Stick(side string) (*StickState, error) {
	var stick *StickState
	switch strings.ToLower(side) {
	case "l", "left":
		stick = s.lStick
	case "r", "right":
		stick = s.rStick
	}
	if stick == nil {
		return nil, ErrStickNotAvailable
	}
	return stick, nil
}

func (s *State) SetNfc(tag *amiibo.Tag) {
	s.nfc = tag
}

// Nfc returns the loaded tag or nil.
func (s *State) Nfc() *amiibo.Tag {
	return s.nfc
}

// Sent returns a channel closed once the next report has been handed to the
// transport.
func (s *State) Sent() <-chan struct{} {
	if s.sent == nil {
		s.sent = make(chan struct{})
	}
	return s.sent
}

// NotifySent wakes everyone waiting on Sent.
func (s *State) NotifySent() {
	if s.sent != nil {
		close(s.sent)
		s.sent = nil
	}
}
