package controller

import "fmt"

// StickCalibration holds the 12 bit reference values of one analog stick.
type StickCalibration struct {
	HCenter         uint16
	VCenter         uint16
	HMaxAboveCenter uint16
	VMaxAboveCenter uint16
	HMaxBelowCenter uint16
	VMaxBelowCenter uint16
}

// unpack12 reads the two 12 bit values packed in b[0:3].
func unpack12(b []byte) (uint16, uint16) {
	first := uint16(b[1])<<8&0xF00 | uint16(b[0])
	second := uint16(b[2])<<4 | uint16(b[1])>>4
	return first, second
}

// LeftStickCalibration decodes the 9 calibration bytes of a left stick:
// max above center, center, max below center.
func LeftStickCalibration(data [9]byte) *StickCalibration {
	c := &StickCalibration{}
	c.HMaxAboveCenter, c.VMaxAboveCenter = unpack12(data[0:3])
	c.HCenter, c.VCenter = unpack12(data[3:6])
	c.HMaxBelowCenter, c.VMaxBelowCenter = unpack12(data[6:9])
	return c
}

// RightStickCalibration decodes the 9 calibration bytes of a right stick:
// center, max below center, max above center.
func RightStickCalibration(data [9]byte) *StickCalibration {
	c := &StickCalibration{}
	c.HCenter, c.VCenter = unpack12(data[0:3])
	c.HMaxBelowCenter, c.VMaxBelowCenter = unpack12(data[3:6])
	c.HMaxAboveCenter, c.VMaxAboveCenter = unpack12(data[6:9])
	return c
}

func (c StickCalibration) String() string {
	return fmt.Sprintf("h_center:%d v_center:%d h_max_above_center:%d v_max_above_center:%d h_max_below_center:%d v_max_below_center:%d",
		c.HCenter, c.VCenter, c.HMaxAboveCenter, c.VMaxAboveCenter, c.HMaxBelowCenter, c.VMaxBelowCenter)
}
