// Package report encodes and decodes the HID reports exchanged with the
// console.
//
// https://github.com/dekuNukem/Nintendo_Switch_Reverse_Engineering/blob/master/bluetooth_hid_notes.md
package report

type OutputReportId uint8

const (
	RumbleAndSubcommand OutputReportId = 0x01
	UpdateNfcPacket     OutputReportId = 0x03
	RumbleOnly          OutputReportId = 0x10
	RequestMcuData      OutputReportId = 0x11
)

func (o OutputReportId) String() string {
	switch o {
	case RumbleAndSubcommand:
		return "RumbleAndSubcommand"
	case UpdateNfcPacket:
		return "UpdateNfcPacket"
	case RumbleOnly:
		return "RumbleOnly"
	case RequestMcuData:
		return "RequestMcuData"
	default:
		return "UNKNOWN"
	}
}

type InputReportId uint8

const (
	SubcommandReplies  InputReportId = 0x21
	StandardFullModeId InputReportId = 0x30
	NfcMcuModeId       InputReportId = 0x31
	SimpleHidId        InputReportId = 0x3F
)

func (i InputReportId) String() string {
	switch i {
	case SubcommandReplies:
		return "SubcommandReplies"
	case StandardFullModeId:
		return "StandardFullMode"
	case NfcMcuModeId:
		return "NfcMcuMode"
	case SimpleHidId:
		return "SimpleHid"
	default:
		return "UNKNOWN"
	}
}

// https://github.com/dekuNukem/Nintendo_Switch_Reverse_Engineering/blob/master/bluetooth_hid_subcommands_notes.md
type Subcommand uint8

const (
	RequestDeviceInfo         Subcommand = 0x02
	SetInputReportMode        Subcommand = 0x03
	TriggerButtonsElapsedTime Subcommand = 0x04
	SetShipmentLowPowerState  Subcommand = 0x08
	SpiFlashRead              Subcommand = 0x10
	SetNfcMcuConfig           Subcommand = 0x21
	SetNfcMcuState            Subcommand = 0x22
	SetPlayerLights           Subcommand = 0x30
	EnableImu                 Subcommand = 0x40
	EnableVibration           Subcommand = 0x48
)

func (s Subcommand) String() string {
	switch s {
	case RequestDeviceInfo:
		return "RequestDeviceInfo"
	case SetInputReportMode:
		return "SetInputReportMode"
	case TriggerButtonsElapsedTime:
		return "TriggerButtonsElapsedTime"
	case SetShipmentLowPowerState:
		return "SetShipmentLowPowerState"
	case SpiFlashRead:
		return "SpiFlashRead"
	case SetNfcMcuConfig:
		return "SetNfcMcuConfig"
	case SetNfcMcuState:
		return "SetNfcMcuState"
	case SetPlayerLights:
		return "SetPlayerLights"
	case EnableImu:
		return "EnableImu"
	case EnableVibration:
		return "EnableVibration"
	default:
		return "UNKNOWN"
	}
}

func (s Subcommand) Known() bool {
	return s.String() != "UNKNOWN"
}
