package report

import (
	"fmt"
	"strings"
)

const (
	InputReportHeader byte = 0xA1

	// StandardLength is the size of 0x21 and 0x30 reports including the header.
	StandardLength = 50
	// NfcLength is the size of 0x31 reports, which carry an MCU frame.
	NfcLength = 363
	// McuDataOffset is where the MCU frame starts in a 0x31 report.
	McuDataOffset = 50
)

// Battery and connection info byte.
const (
	BatteryFullPro    byte = 0x90
	BatteryFullJoycon byte = 0x8E
)

// InputReport represents report sent from the Controller to the Switch.
type InputReport []byte

func (i InputReport) SetReportId(id InputReportId) {
	i[1] = byte(id)
}

func (i InputReport) ReportId() InputReportId {
	return InputReportId(i[1])
}

func (i InputReport) SetTimer(timer byte) {
	i[2] = timer
}

func (i InputReport) SetBattery(battery byte) {
	i[3] = battery
}

func (i InputReport) SetButtons(data [3]byte) {
	copy(i[4:7], data[:])
}

func (i InputReport) SetLeftStick(data [3]byte) {
	copy(i[7:10], data[:])
}

func (i InputReport) SetRightStick(data [3]byte) {
	copy(i[10:13], data[:])
}

func (i InputReport) SetVibrator(vibrator byte) {
	i[13] = vibrator
}

func (i InputReport) SetImuData(enabled bool) {
	if !enabled {
		return
	}

	data := []byte{
		0x75, 0xFD, 0xFD, 0xFF, 0x09, 0x10, 0x21, 0x00, 0xD5,
		0xFF, 0xE0, 0xFF, 0x72, 0xFD, 0xF9, 0xFF, 0x0A, 0x10,
		0x22, 0x00, 0xD5, 0xFF, 0xE0, 0xFF, 0x76, 0xFD, 0xFC,
		0xFF, 0x09, 0x10, 0x23, 0x00, 0xD5, 0xFF, 0xE0, 0xFF}
	copy(i[14:14+len(data)], data)
}

// SetMcuData copies an MCU frame into a 0x31 report.
func (i InputReport) SetMcuData(frame []byte) {
	if len(i) < NfcLength {
		return
	}
	copy(i[McuDataOffset:NfcLength], frame)
}

func (i InputReport) McuData() []byte {
	if len(i) < NfcLength {
		return nil
	}
	return i[McuDataOffset:NfcLength]
}

func (i InputReport) ack(ack byte, subcommand Subcommand) {
	i[14] = ack
	i[15] = byte(subcommand)
}

func (i InputReport) Ack() byte {
	return i[14]
}

func (i InputReport) ReplySubcommand() Subcommand {
	return Subcommand(i[15])
}

func (i InputReport) ReplyData() []byte {
	return i[16:]
}

func (i InputReport) AckSetInputReportMode() {
	i.ack(0x80, SetInputReportMode)
}

func (i InputReport) AckDeviceInfo(controller byte, mac []byte) {
	i.ack(0x82, RequestDeviceInfo)

	i[16] = 0x03 // Firmware version
	i[17] = 0x8B

	i[18] = controller

	i[19] = 0x02 // Unknown Byte, always 2

	copy(i[20:26], mac)

	i[26] = 0x01 // Unknown byte, always 1
	i[27] = 0x01 // Controller colours location
}

func (i InputReport) AckTriggerButtonsElapsedTime() {
	i.ack(0x83, TriggerButtonsElapsedTime)
}

func (i InputReport) AckSetShipmentLowPowerState() {
	i.ack(0x80, SetShipmentLowPowerState)
}

// AckSpiFlashRead echoes the 5 request bytes (address, size) followed by the
// flash content.
//
// https://github.com/dekuNukem/Nintendo_Switch_Reverse_Engineering/blob/master/spi_flash_notes.md
func (i InputReport) AckSpiFlashRead(request []byte, content []byte) {
	i.ack(0x90, SpiFlashRead)
	copy(i[16:21], request)
	copy(i[21:], content)
}

// AckSetNfcMcuConfig carries the packed MCU status.
func (i InputReport) AckSetNfcMcuConfig(status []byte) {
	i.ack(0xA0, SetNfcMcuConfig)
	copy(i[16:], status)
}

func (i InputReport) AckSetNfcMcuState() {
	i.ack(0x80, SetNfcMcuState)
}

func (i InputReport) AckSetPlayerLights() {
	i.ack(0x80, SetPlayerLights)
}

func (i InputReport) AckEnableImu() {
	i.ack(0x80, EnableImu)
}

func (i InputReport) AckEnableVibration() {
	i.ack(0x82, EnableVibration)
}

func (i InputReport) String() string {
	var builder strings.Builder

	id := i.ReportId()
	if id == SubcommandReplies {
		builder.WriteString(fmt.Sprintf("--- %s Msg ---", i.ReplySubcommand().String()))
	} else {
		builder.WriteString(fmt.Sprintf("--- %s ---", id.String()))
	}
	builder.WriteString("\nPayload:    ")
	for _, p := range i[:14] {
		builder.WriteString(fmt.Sprintf("0x%02X ", p))
	}
	builder.WriteString("\nSubcommand: ")
	for _, p := range i[14:StandardLength] {
		builder.WriteString(fmt.Sprintf("0x%02X ", p))
	}
	return builder.String()
}
