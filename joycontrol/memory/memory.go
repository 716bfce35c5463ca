// Package memory emulates the SPI flash of the controller.
//
// https://github.com/dekuNukem/Nintendo_Switch_Reverse_Engineering/blob/master/spi_flash_notes.md
package memory

import (
	"fmt"

	"dio.wtf/nxcontrol/joycontrol/blob"
	"golang.org/x/exp/slices"
)

const (
	Size = 0x80000

	factoryLeftStickCalibration  = 0x603D
	factoryRightStickCalibration = 0x6046
	userLeftStickMagic           = 0x8010
	userLeftStickCalibration     = 0x8012
	userRightStickMagic          = 0x801B
	userRightStickCalibration    = 0x801D

	calibrationSize = 9
)

var (
	userCalibrationMagic = []byte{0xB2, 0xA1}

	defaultLeftStickCalibration  = []byte{0x00, 0x07, 0x70, 0x00, 0x08, 0x80, 0x00, 0x07, 0x70}
	defaultRightStickCalibration = []byte{0x00, 0x08, 0x80, 0x00, 0x07, 0x70, 0x00, 0x07, 0x70}
)

// SizeMismatchError is returned when a flash dump has the wrong size.
type SizeMismatchError struct {
	Got  int
	Want int
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("given data size %d does not match size %d", e.Got, e.Want)
}

type FlashMemory struct {
	data []byte
}

// New wraps a flash dump. A nil dump gives an erased (0xFF) flash with the
// default stick calibration written to it.
func New(data []byte) (*FlashMemory, error) {
	if data == nil {
		data = make([]byte, Size)
		for i := range data {
			data[i] = 0xFF
		}
		copy(data[factoryLeftStickCalibration:], defaultLeftStickCalibration)
		copy(data[factoryRightStickCalibration:], defaultRightStickCalibration)
		return &FlashMemory{data: data}, nil
	}
	if len(data) != Size {
		return nil, &SizeMismatchError{Got: len(data), Want: Size}
	}
	return &FlashMemory{data: slices.Clone(data)}, nil
}

// Load reads a flash dump from the store.
func Load(store blob.Store, path string) (*FlashMemory, error) {
	data, err := store.Load(path)
	if nil != err {
		return nil, fmt.Errorf("load spi flash %s: %w", path, err)
	}
	return New(data)
}

func (m *FlashMemory) Bytes() []byte {
	return m.data
}

// Read returns size bytes starting at addr, padded with 0xFF past the end.
func (m *FlashMemory) Read(addr uint32, size int) []byte {
	out := make([]byte, size)
	for i := range out {
		out[i] = 0xFF
	}
	if int(addr) < len(m.data) {
		copy(out, m.data[addr:])
	}
	return out
}

func (m *FlashMemory) FactoryLeftStickCalibration() [9]byte {
	return m.calibration(factoryLeftStickCalibration)
}

func (m *FlashMemory) FactoryRightStickCalibration() [9]byte {
	return m.calibration(factoryRightStickCalibration)
}

// UserLeftStickCalibration returns ok=false when no user calibration is stored.
func (m *FlashMemory) UserLeftStickCalibration() (cal [9]byte, ok bool) {
	if !slices.Equal(m.data[userLeftStickMagic:userLeftStickMagic+2], userCalibrationMagic) {
		return cal, false
	}
	return m.calibration(userLeftStickCalibration), true
}

func (m *FlashMemory) UserRightStickCalibration() (cal [9]byte, ok bool) {
	if !slices.Equal(m.data[userRightStickMagic:userRightStickMagic+2], userCalibrationMagic) {
		return cal, false
	}
	return m.calibration(userRightStickCalibration), true
}

func (m *FlashMemory) calibration(offset int) (cal [9]byte) {
	copy(cal[:], m.data[offset:offset+calibrationSize])
	return
}
