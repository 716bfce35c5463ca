package report

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

const (
	OutputReportHeader byte = 0xA2
	// OutputReportMinLength covers header, id, counter, rumble and the
	// subcommand or MCU command byte.
	OutputReportMinLength int = 12
)

var (
	ErrBadLengthData     = errors.New("receive bad length data")
	ErrMalformedData     = errors.New("receive malformed data")
	ErrUnknownOutputId   = errors.New("receive unknown output report id")
	ErrUnknownSubcommand = errors.New("receive unknown subcommand")
)

// OutputReport represents report sent from the Switch to the Controller.
type OutputReport []byte

func (o OutputReport) Validate() error {
	if len(o) < OutputReportMinLength {
		return ErrBadLengthData
	}
	if o[0] != OutputReportHeader {
		return ErrMalformedData
	}
	id := o.Id()
	if id != RumbleAndSubcommand &&
		id != RumbleOnly &&
		id != RequestMcuData &&
		id != UpdateNfcPacket {
		return ErrUnknownOutputId
	}
	if id == RumbleAndSubcommand && !o.Subcommand().Known() {
		return ErrUnknownSubcommand
	}
	return nil
}

func (o OutputReport) Id() OutputReportId {
	return OutputReportId(o[1])
}

func (o OutputReport) PacketCounter() byte {
	return o[2]
}

func (o OutputReport) Subcommand() Subcommand {
	return Subcommand(o[11])
}

func (o OutputReport) SubcommandData() []byte {
	return o[12:]
}

// McuRequest is the payload of a 0x11 report, starting at the MCU command.
func (o OutputReport) McuRequest() []byte {
	return o[11:]
}

// SpiReadRequest decodes the little endian address and the size of a SPI
// flash read.
func SpiReadRequest(data []byte) (uint32, int, error) {
	if len(data) < 5 {
		return 0, 0, ErrMalformedData
	}
	return binary.LittleEndian.Uint32(data[0:4]), int(data[4]), nil
}

func (o OutputReport) String() string {
	var builder strings.Builder
	if o.Id() == RumbleAndSubcommand {
		builder.WriteString(fmt.Sprintf("--- %s Msg ---", o.Subcommand().String()))
	} else {
		builder.WriteString(fmt.Sprintf("--- %s ---", o.Id().String()))
	}
	builder.WriteString("\nPayload:    ")
	for _, p := range o[:11] {
		builder.WriteString(fmt.Sprintf("0x%02X ", p))
	}
	builder.WriteString("\nSubcommand: ")
	for _, p := range o[11:] {
		builder.WriteString(fmt.Sprintf("0x%02X ", p))
	}
	return builder.String()
}
