package mcu

import (
	"sync"

	"dio.wtf/nxcontrol/joycontrol/log"
	"github.com/sigurn/crc8"
)

// FrameLength is the size of an MCU frame in a 0x31 input report.
const FrameLength = 313

// CRC-8/SMBUS: poly 0x07, init 0x00, no reflection, no final xor.
var crcTable = crc8.MakeTable(crc8.CRC8)

func Checksum(data []byte) byte {
	return crc8.Checksum(data, crcTable)
}

type packOptions struct {
	fill     byte
	length   int
	checksum func([]byte) byte
}

type PackOption func(*packOptions)

// WithFill sets the padding byte. Default 0x00.
func WithFill(fill byte) PackOption {
	return func(o *packOptions) {
		o.fill = fill
	}
}

// WithLength sets the total frame length including the checksum byte.
func WithLength(length int) PackOption {
	return func(o *packOptions) {
		o.length = length
	}
}

func WithChecksum(checksum func([]byte) byte) PackOption {
	return func(o *packOptions) {
		o.checksum = checksum
	}
}

// PackMessage pads data to the frame length and replaces the last byte with
// the checksum of everything before it. Data longer than the frame is kept
// as is and only gets its last byte replaced.
func PackMessage(data []byte, opts ...PackOption) []byte {
	o := packOptions{
		length:   FrameLength,
		checksum: Checksum,
	}
	for _, opt := range opts {
		opt(&o)
	}

	length := o.length
	if len(data) > length {
		log.WarnF("MCU: packing %d bytes into a %d byte frame", len(data), o.length)
		length = len(data)
	}
	frame := make([]byte, length)
	copy(frame, data)
	for i := len(data); i < length; i++ {
		frame[i] = o.fill
	}
	frame[length-1] = o.checksum(frame[:length-1])
	return frame
}

var noResponse = sync.OnceValue(func() []byte {
	return PackMessage([]byte{0xFF})
})

// NoResponse is the frame sent when the MCU has nothing to say. The slice is
// shared and must not be modified.
func NoResponse() []byte {
	return noResponse()
}
