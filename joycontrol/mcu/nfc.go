package mcu

import (
	"bytes"

	"dio.wtf/nxcontrol/joycontrol/amiibo"
	"dio.wtf/nxcontrol/joycontrol/log"
)

type NfcState uint8

const (
	None            NfcState = 0x00
	Poll            NfcState = 0x01
	PendingRead     NfcState = 0x02
	Writing         NfcState = 0x03
	AwaitingWrite   NfcState = 0x04
	ProcessingWrite NfcState = 0x05
	PollAgain       NfcState = 0x09
)

func (s NfcState) String() string {
	switch s {
	case None:
		return "None"
	case Poll:
		return "Poll"
	case PendingRead:
		return "PendingRead"
	case Writing:
		return "Writing"
	case AwaitingWrite:
		return "AwaitingWrite"
	case ProcessingWrite:
		return "ProcessingWrite"
	case PollAgain:
		return "PollAgain"
	default:
		return "UNKNOWN"
	}
}

// NfcCommand is the second byte of an NFC request.
type NfcCommand uint8

const (
	NfcStartPolling NfcCommand = 0x01
	NfcStopPolling  NfcCommand = 0x02
	NfcStatus       NfcCommand = 0x04
	NfcRead         NfcCommand = 0x06
	NfcWrite        NfcCommand = 0x08
)

// NFC request layout following the MCU command byte:
// <nfc command> 00 <seq> <eop> <payload length> <payload...>
const (
	nfcRequestHeader = 5
	nfcEndOfPacket   = 0x08
)

// Bytes of a write payload before the first (page, length, data) record:
// uid length, 7 byte uid, then fixed tag info.
const writeHeaderLength = 1 + 7 + 13

// Fixed bytes following the uid in the first read frame, as sent by a
// genuine controller for an NTAG215.
var readInfo = []byte{
	0x00, 0x00, 0x00, 0x7D, 0xFD, 0xF0, 0x79, 0x36,
	0x51, 0x42, 0x70, 0x6D, 0x7A, 0x0A, 0x3A, 0x03,
}

const firstReadChunk = 245

// NfcStatusData advances the poll state machine by one tick and returns the
// frame describing the new state.
func (m *MicroControllerUnit) NfcStatusData() []byte {
	m.nfcCounter--

	var tag *amiibo.Tag
	if m.tags != nil {
		tag = m.tags.Nfc()
	}
	if (m.nfcState == Poll || m.nfcState == PollAgain) &&
		(m.removeAfterW || tag == nil) && m.pendingRemoval > 0 {
		tag = amiibo.Removed()
		m.pendingRemoval--
	}

	switch m.nfcState {
	case ProcessingWrite:
		if m.nfcCounter <= 0 {
			m.nfcState = None
		}
	case Poll:
		if tag != nil {
			uid := tag.UID()
			if bytes.Equal(uid, m.lastPollUID) {
				m.nfcState = PollAgain
			} else {
				m.lastPollUID = uid
			}
		} else {
			m.lastPollUID = nil
		}
	case PollAgain:
		if tag == nil {
			m.nfcState = Poll
			m.lastPollUID = nil
		} else if uid := tag.UID(); !bytes.Equal(uid, m.lastPollUID) {
			m.nfcState = Poll
			m.lastPollUID = uid
		}
	}

	if tag != nil && m.nfcState != None {
		out := []byte{
			0x2A, 0x00, 0x05, m.seqNo, m.ackSeqNo, 0x09, 0x31, byte(m.nfcState),
			0x00, 0x00, 0x00, 0x01, 0x01, 0x02, 0x00, 0x07,
		}
		return PackMessage(append(out, tag.UID()...))
	}
	return PackMessage([]byte{0x2A, 0x00, 0x05, 0x00, 0x00, 0x09, 0x31, byte(m.nfcState)})
}

func (m *MicroControllerUnit) nfcRequest(data []byte) {
	if len(data) < nfcRequestHeader {
		log.WarnF("MCU: short NFC request % X", data)
		return
	}
	command := NfcCommand(data[0])
	m.ackSeqNo = data[2]
	endOfPacket := data[3] == nfcEndOfPacket
	payload := data[5:]
	if n := int(data[4]); n < len(payload) {
		payload = payload[:n]
	}

	if m.powerState != ConfiguredNfc {
		log.DebugF("MCU: NFC request %#02x while %s", byte(command), m.powerState)
	}

	switch command {
	case NfcStartPolling:
		if m.nfcState != Poll && m.nfcState != PollAgain {
			m.nfcState = Poll
		}
	case NfcStopPolling:
		m.nfcState = None
		m.lastPollUID = nil
	case NfcStatus:
		// answered by the next tick
	case NfcRead:
		m.read()
	case NfcWrite:
		m.write(payload, endOfPacket)
	default:
		log.WarnF("MCU: unknown NFC command %#02x", byte(command))
	}
}

func (m *MicroControllerUnit) read() {
	var tag *amiibo.Tag
	if m.tags != nil {
		tag = m.tags.Nfc()
	}
	if tag == nil {
		log.Warn("MCU: read requested without a tag")
		return
	}
	data := tag.Data()
	if len(data) < amiibo.Size {
		log.WarnF("MCU: tag of %d bytes cannot be read", len(data))
		return
	}
	m.nfcState = PendingRead

	m.seqNo++
	first := []byte{
		0x3A, 0x00, 0x07, m.seqNo, 0x00, 0x01, 0x31, 0x02,
		0x00, 0x00, 0x00, 0x01, 0x02, 0x00, 0x07,
	}
	first = append(first, tag.UID()...)
	first = append(first, readInfo...)
	first = append(first, data[:firstReadChunk]...)

	m.seqNo++
	second := []byte{0x3A, 0x00, 0x07, m.seqNo, 0x00, 0x09, 0x27}
	second = append(second, data[firstReadChunk:amiibo.Size]...)

	m.FlushResponseQueue()
	m.QueueResponse(PackMessage(first))
	m.QueueResponse(PackMessage(second))
}

func (m *MicroControllerUnit) write(payload []byte, endOfPacket bool) {
	if m.nfcState != Writing && m.nfcState != AwaitingWrite {
		m.writeBuffer = m.writeBuffer[:0]
		m.nfcState = Writing
	} else {
		m.nfcState = AwaitingWrite
	}
	m.writeBuffer = append(m.writeBuffer, payload...)
	if !endOfPacket {
		return
	}

	m.applyWrite(m.writeBuffer)
	m.writeBuffer = m.writeBuffer[:0]
	m.nfcState = ProcessingWrite
	m.nfcCounter = writeProcessingTicks
	if m.removeAfterW {
		m.pendingRemoval = forcedRemovalPolls
	}
}

// applyWrite walks the (page, length, data) records of a completed write.
func (m *MicroControllerUnit) applyWrite(buf []byte) {
	var tag *amiibo.Tag
	if m.tags != nil {
		tag = m.tags.Nfc()
	}
	if tag == nil {
		log.Warn("MCU: write requested without a tag")
		return
	}
	if len(buf) < writeHeaderLength {
		log.WarnF("MCU: write payload of %d bytes has no records", len(buf))
		return
	}

	written := 0
	for i := writeHeaderLength; i+2 <= len(buf); {
		page, n := int(buf[i]), int(buf[i+1])
		if page == 0 && n == 0 {
			break
		}
		end := i + 2 + n
		if end > len(buf) {
			log.WarnF("MCU: truncated write record for page %d", page)
			break
		}
		if err := tag.Write(page*4, buf[i+2:end]); err != nil {
			log.WarnF("MCU: write to page %d: %v", page, err)
		} else {
			written += n
		}
		i = end
	}
	log.InfoF("MCU: wrote %d bytes to tag", written)
	if m.onWrite != nil && written > 0 {
		m.onWrite(tag)
	}
}
