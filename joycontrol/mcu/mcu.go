// Package mcu emulates the NFC/IR micro controller of the right Joy-Con and
// the Pro Controller.
//
// https://github.com/dekuNukem/Nintendo_Switch_Reverse_Engineering/blob/master/bluetooth_hid_subcommands_notes.md
package mcu

import (
	"dio.wtf/nxcontrol/joycontrol/amiibo"
	"dio.wtf/nxcontrol/joycontrol/log"
)

type PowerState uint8

const (
	Suspended     PowerState = 0x00
	Ready         PowerState = 0x01
	ReadyUpdate   PowerState = 0x02
	ConfiguredNfc PowerState = 0x04
)

func (p PowerState) String() string {
	switch p {
	case Suspended:
		return "Suspended"
	case Ready:
		return "Ready"
	case ReadyUpdate:
		return "ReadyUpdate"
	case ConfiguredNfc:
		return "ConfiguredNfc"
	default:
		return "UNKNOWN"
	}
}

// Command is the first byte of an MCU request (output report 0x11).
type Command uint8

const (
	RequestStatus  Command = 0x01
	RequestNfcData Command = 0x02
	RequestIrData  Command = 0x03
	SetMode        Command = 0x21
)

func (c Command) String() string {
	switch c {
	case RequestStatus:
		return "RequestStatus"
	case RequestNfcData:
		return "RequestNfcData"
	case RequestIrData:
		return "RequestIrData"
	case SetMode:
		return "SetMode"
	default:
		return "UNKNOWN"
	}
}

// Mode is the MCU mode requested by the configure subcommand (0x21).
type Mode uint8

const (
	ModeStandby Mode = 0x01
	ModeNfc     Mode = 0x04
	ModeIr      Mode = 0x05
	ModeUpdate  Mode = 0x06
)

const (
	// QueueCapacity is the number of frames QueueResponse accepts.
	QueueCapacity = 4

	configReplyLength = 34
	// Ticks spent in ProcessingWrite before going back to None.
	writeProcessingTicks = 4
	// Polls answered with the removed tag after a write or an unload.
	forcedRemovalPolls = 5
)

var statusHeader = []byte{
	0x01,       // MCU status report
	0x00, 0xFF, // Unknown
	0x00, 0x08, // Major firmware
	0x00, 0x1B, // Minor firmware
}

// TagSource gives access to the currently loaded tag, nil when none.
type TagSource interface {
	Nfc() *amiibo.Tag
}

type MicroControllerUnit struct {
	tags TagSource

	powerState PowerState
	nfcState   NfcState

	nfcCounter     int
	lastPollUID    []byte
	pendingRemoval int
	removeAfterW   bool
	writeBuffer    []byte
	onWrite        func(*amiibo.Tag)

	seqNo    byte
	ackSeqNo byte

	queue [][]byte
}

type Option func(*MicroControllerUnit)

// WithRemoveAfterWrite makes the tag disappear for a few polls once the host
// finished writing it, as if it was lifted off the reader.
func WithRemoveAfterWrite() Option {
	return func(m *MicroControllerUnit) {
		m.removeAfterW = true
	}
}

// WithWriteHook registers fn to be called with the tag after the host wrote
// to it.
func WithWriteHook(fn func(*amiibo.Tag)) Option {
	return func(m *MicroControllerUnit) {
		m.onWrite = fn
	}
}

func New(tags TagSource, opts ...Option) *MicroControllerUnit {
	m := &MicroControllerUnit{
		tags:       tags,
		powerState: Suspended,
		nfcState:   None,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MicroControllerUnit) PowerState() PowerState {
	return m.powerState
}

func (m *MicroControllerUnit) SetPowerState(state PowerState) {
	log.DebugF("MCU: power state %s -> %s", m.powerState, state)
	m.powerState = state
}

func (m *MicroControllerUnit) NfcState() NfcState {
	return m.nfcState
}

func (m *MicroControllerUnit) SetNfcState(state NfcState) {
	m.nfcState = state
}

// SetPower handles subcommand 0x22: 0x00 suspends, anything else resumes.
func (m *MicroControllerUnit) SetPower(data []byte) {
	if len(data) == 0 || data[0] == 0x00 {
		m.SetPowerState(Suspended)
		m.nfcState = None
		m.FlushResponseQueue()
		return
	}
	m.SetPowerState(Ready)
}

// Configure handles subcommand 0x21 (21 00 <mode>) and returns the status
// bytes for the reply.
func (m *MicroControllerUnit) Configure(data []byte) []byte {
	if len(data) >= 3 && Command(data[0]) == SetMode {
		switch Mode(data[2]) {
		case ModeNfc:
			m.SetPowerState(ConfiguredNfc)
		case ModeStandby:
			m.SetPowerState(Ready)
		case ModeUpdate:
			m.SetPowerState(ReadyUpdate)
		default:
			log.DebugF("MCU: mode %#02x not supported", data[2])
		}
	} else {
		log.WarnF("MCU: malformed configure request % X", data)
	}
	return PackMessage(append(statusHeader[:len(statusHeader):len(statusHeader)], byte(m.powerState)),
		WithLength(configReplyLength))
}

// StatusData is the answer to an MCU status request. It is nil when the MCU
// does not answer in its current power state.
func (m *MicroControllerUnit) StatusData() []byte {
	switch m.powerState {
	case Suspended:
		log.Debug("MCU: status request while suspended")
		return NoResponse()
	case Ready, ConfiguredNfc:
		return PackMessage(append(statusHeader[:len(statusHeader):len(statusHeader)], byte(m.powerState)))
	default:
		return nil
	}
}

// QueueResponse appends a frame unless the queue is full.
func (m *MicroControllerUnit) QueueResponse(frame []byte) {
	if frame == nil {
		return
	}
	if len(m.queue) >= QueueCapacity {
		log.Warn("MCU: response queue full, dropped packet")
		return
	}
	m.queue = append(m.queue, frame)
}

// ForceQueueResponse appends a frame even if that overfills the queue.
func (m *MicroControllerUnit) ForceQueueResponse(frame []byte) {
	if frame == nil {
		return
	}
	m.queue = append(m.queue, frame)
	if len(m.queue) > QueueCapacity {
		log.WarnF("MCU: response queue holds %d frames, capacity is %d", len(m.queue), QueueCapacity)
	}
}

func (m *MicroControllerUnit) FlushResponseQueue() {
	m.queue = nil
}

func (m *MicroControllerUnit) QueueLen() int {
	return len(m.queue)
}

// Data pops the oldest queued frame, or returns NoResponse.
func (m *MicroControllerUnit) Data() []byte {
	if len(m.queue) == 0 {
		return NoResponse()
	}
	frame := m.queue[0]
	m.queue[0] = nil
	m.queue = m.queue[1:]
	return frame
}

// Tick is called once per NFC mode input report.
func (m *MicroControllerUnit) Tick() {
	if m.powerState != ConfiguredNfc {
		return
	}
	frame := m.NfcStatusData()
	if len(m.queue) == 0 {
		m.queue = append(m.queue, frame)
	}
}

// Request handles an MCU request, data starting at the command byte.
func (m *MicroControllerUnit) Request(data []byte) {
	if len(data) == 0 {
		return
	}
	switch Command(data[0]) {
	case RequestStatus:
		m.QueueResponse(m.StatusData())
	case RequestNfcData:
		m.nfcRequest(data[1:])
	case RequestIrData:
		log.Debug("MCU: IR requests are not supported")
	default:
		log.WarnF("MCU: unknown request %#02x", data[0])
	}
}

// TagRemoved is called when the loaded tag was taken away.
func (m *MicroControllerUnit) TagRemoved() {
	m.pendingRemoval = forcedRemovalPolls
}
