package joycontrol

import (
	"context"
	"sync"
	"testing"
	"time"

	"dio.wtf/nxcontrol/joycontrol/amiibo"
	"dio.wtf/nxcontrol/joycontrol/controller"
	"dio.wtf/nxcontrol/joycontrol/mcu"
	"dio.wtf/nxcontrol/joycontrol/memory"
	R "dio.wtf/nxcontrol/joycontrol/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	mu       sync.Mutex
	sent     [][]byte
	incoming chan []byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{incoming: make(chan []byte, 8)}
}

func (f *fakeTransport) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, append([]byte(nil), data...))
	return nil
}

func (f *fakeTransport) Incoming() <-chan []byte {
	return f.incoming
}

func (f *fakeTransport) reports() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.sent...)
}

func newTestProtocol(t *testing.T, c controller.Type, reconnect bool, opts ...Option) *Protocol {
	spiFlash, err := memory.New(nil)
	require.NoError(t, err)
	return NewProtocol(c, spiFlash, reconnect, opts...)
}

func subcommandReport(subcommand R.Subcommand, data ...byte) []byte {
	o := make([]byte, 50)
	o[0] = R.OutputReportHeader
	o[1] = byte(R.RumbleAndSubcommand)
	o[11] = byte(subcommand)
	copy(o[12:], data)
	return o
}

func mcuReport(data ...byte) []byte {
	o := make([]byte, 50)
	o[0] = R.OutputReportHeader
	o[1] = byte(R.RequestMcuData)
	copy(o[11:], data)
	return o
}

func TestNextReportBytesStandard(t *testing.T) {
	p := newTestProtocol(t, controller.ProController, false)

	data := p.NextReportBytes()
	require.Len(t, data, R.StandardLength)
	assert.Equal(t, R.InputReportHeader, data[0])
	assert.Equal(t, byte(R.StandardFullModeId), data[1])
	assert.Equal(t, R.BatteryFullPro, data[3])
	assert.Equal(t, []byte{0x00, 0x00, 0x00}, data[4:7])
	assert.Equal(t, []byte{0x00, 0x00, 0x80}, data[7:10])
	assert.Equal(t, []byte{0x00, 0x00, 0x80}, data[10:13])
	assert.Equal(t, byte(0x80), data[13])
}

func TestNextReportBytesJoycon(t *testing.T) {
	p := newTestProtocol(t, controller.JoyconL, false)

	data := p.NextReportBytes()
	assert.Equal(t, R.BatteryFullJoycon, data[3])
	assert.Equal(t, []byte{0x00, 0x00, 0x80}, data[7:10])
	assert.Equal(t, []byte{0x00, 0x00, 0x00}, data[10:13])
}

func TestSetInputReportMode(t *testing.T) {
	p := newTestProtocol(t, controller.ProController, false)
	assert.Equal(t, pairingInterval, p.interval())

	reply := p.HandleOutputReport(subcommandReport(R.SetInputReportMode, byte(R.NfcMcuModeId)))
	require.NotNil(t, reply)
	assert.Equal(t, R.SubcommandReplies, reply.ReportId())
	assert.Equal(t, byte(0x80), reply.Ack())
	assert.Equal(t, R.SetInputReportMode, reply.ReplySubcommand())
	assert.Equal(t, reportInterval, p.interval())
	assert.Nil(t, p.resend)

	data := p.NextReportBytes()
	require.Len(t, data, R.NfcLength)
	assert.Equal(t, byte(R.NfcMcuModeId), data[1])
	assert.Equal(t, mcu.NoResponse(), data[R.McuDataOffset:])
}

func TestReconnectSkipsPairingCadence(t *testing.T) {
	p := newTestProtocol(t, controller.JoyconR, true)
	assert.Equal(t, reportInterval, p.interval())
}

func TestDeviceInfo(t *testing.T) {
	p := newTestProtocol(t, controller.JoyconR, false)
	mac := []byte{0xDC, 0xA6, 0x32, 0xC4, 0xDC, 0x93}
	p.Setup(mac)

	reply := p.HandleOutputReport(subcommandReport(R.RequestDeviceInfo))
	require.NotNil(t, reply)
	assert.Equal(t, byte(0x82), reply.Ack())
	assert.Equal(t, []byte{0x03, 0x8B, byte(controller.JoyconR), 0x02}, []byte((*reply)[16:20]))
	assert.Equal(t, mac, []byte((*reply)[20:26]))
}

func TestSpiFlashRead(t *testing.T) {
	p := newTestProtocol(t, controller.ProController, false)

	reply := p.HandleOutputReport(subcommandReport(R.SpiFlashRead, 0x3D, 0x60, 0x00, 0x00, 0x12))
	require.NotNil(t, reply)
	assert.Equal(t, byte(0x90), reply.Ack())
	assert.Equal(t, []byte{0x3D, 0x60, 0x00, 0x00, 0x12}, []byte((*reply)[16:21]))
	assert.Equal(t, []byte{
		0x00, 0x07, 0x70, 0x00, 0x08, 0x80, 0x00, 0x07, 0x70,
		0x00, 0x08, 0x80, 0x00, 0x07, 0x70, 0x00, 0x07, 0x70,
	}, []byte((*reply)[21:39]))
}

func TestInvalidOutputReports(t *testing.T) {
	p := newTestProtocol(t, controller.ProController, false)

	bad := subcommandReport(R.RequestDeviceInfo)
	bad[0] = 0x00
	assert.Nil(t, p.HandleOutputReport(bad))
	assert.Nil(t, p.HandleOutputReport([]byte{0xA2}))

	reply := p.HandleOutputReport(subcommandReport(0x50))
	require.NotNil(t, reply)
	assert.Equal(t, R.StandardFullModeId, reply.ReportId())

	rumble := subcommandReport(0)
	rumble[1] = byte(R.RumbleOnly)
	assert.Nil(t, p.HandleOutputReport(rumble))
}

func TestResendSchedule(t *testing.T) {
	p := newTestProtocol(t, controller.ProController, false)

	p.HandleOutputReport(subcommandReport(R.EnableVibration))
	require.NotNil(t, p.resend)

	data := p.NextReportBytes()
	assert.Equal(t, byte(R.StandardFullModeId), data[1], "reply is not due yet")

	p.resend.due = time.Now().Add(-time.Millisecond)
	data = p.NextReportBytes()
	assert.Equal(t, byte(R.SubcommandReplies), data[1])
	assert.Equal(t, byte(R.EnableVibration), data[15])
	assert.Nil(t, p.resend, "a reply is repeated once")

	p.HandleOutputReport(subcommandReport(R.EnableImu, 0x01))
	require.NotNil(t, p.resend)
	assert.True(t, p.imuEnabled)
	rumble := subcommandReport(0)
	rumble[1] = byte(R.RumbleOnly)
	p.HandleOutputReport(rumble)
	assert.Nil(t, p.resend, "new output report cancels the resend")

	p.HandleOutputReport(subcommandReport(R.SetNfcMcuState, 0x01))
	assert.Nil(t, p.resend)
}

func TestNfcPolling(t *testing.T) {
	p := newTestProtocol(t, controller.ProController, false)
	data := make([]byte, amiibo.Size)
	copy(data, []byte{0x04, 0x11, 0x22, 0x99, 0x33, 0x44, 0x55, 0x66})
	tag := amiibo.New(data, amiibo.Amiibo, "")
	p.state.SetNfc(tag)

	p.HandleOutputReport(subcommandReport(R.SetInputReportMode, byte(R.NfcMcuModeId)))
	p.HandleOutputReport(subcommandReport(R.SetNfcMcuState, 0x01))

	reply := p.HandleOutputReport(subcommandReport(R.SetNfcMcuConfig, 0x21, 0x00, 0x04))
	require.NotNil(t, reply)
	assert.Equal(t, byte(0xA0), reply.Ack())
	assert.Equal(t, []byte{0x01, 0x00, 0xFF, 0x00, 0x08, 0x00, 0x1B, 0x04}, reply.ReplyData()[:8])

	assert.Nil(t, p.HandleOutputReport(mcuReport(0x02, 0x01, 0x00, 0x01, 0x08, 0x00)))

	report := p.NextReportBytes()
	frame := report[R.McuDataOffset:]
	assert.Equal(t, byte(mcu.Poll), frame[7])
	assert.Equal(t, tag.UID(), frame[16:23])

	report = p.NextReportBytes()
	assert.Equal(t, byte(mcu.PollAgain), report[R.McuDataOffset+7])
}

func TestRunAnswersOutputReports(t *testing.T) {
	p := newTestProtocol(t, controller.ProController, false)
	transport := newFakeTransport()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx, transport) }()

	transport.incoming <- subcommandReport(R.RequestDeviceInfo)
	require.Eventually(t, func() bool {
		for _, r := range transport.reports() {
			if r[1] == byte(R.SubcommandReplies) && r[15] == byte(R.RequestDeviceInfo) {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
}

func TestRunStopsWhenTransportCloses(t *testing.T) {
	p := newTestProtocol(t, controller.ProController, false)
	transport := newFakeTransport()
	close(transport.incoming)
	assert.ErrorIs(t, p.Run(context.Background(), transport), ErrTransportClosed)
}

func TestPulse(t *testing.T) {
	p := newTestProtocol(t, controller.ProController, true)
	transport := newFakeTransport()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx, transport)

	require.NoError(t, p.Pulse(ctx, []string{"a", "ZL"}, 20*time.Millisecond))

	reports := transport.reports()
	pressed := -1
	for i, r := range reports {
		if r[4] == 0x10 && r[6] == 0x01 {
			pressed = i
			break
		}
	}
	require.NotEqual(t, -1, pressed, "no report with both buttons pressed")
	last := reports[len(reports)-1]
	assert.Equal(t, []byte{0x00, 0x00, 0x00}, last[4:7])
}

func TestPulseCancelledReleases(t *testing.T) {
	p := newTestProtocol(t, controller.ProController, true)
	transport := newFakeTransport()
	runCtx, stop := context.WithCancel(context.Background())
	defer stop()
	go p.Run(runCtx, transport)

	ctx, cancel := context.WithTimeout(runCtx, 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Pulse(ctx, []string{"a"}, time.Hour), context.DeadlineExceeded)

	var a bool
	require.NoError(t, p.Apply(runCtx, func(s *controller.State) error {
		a, _ = s.Buttons().Button("a")
		return nil
	}))
	assert.False(t, a)
}

func TestPulseErrors(t *testing.T) {
	p := newTestProtocol(t, controller.JoyconL, true)
	transport := newFakeTransport()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx, transport)

	assert.ErrorIs(t, p.Pulse(ctx, nil, time.Millisecond), controller.ErrNoButtonsGiven)

	err := p.Pulse(ctx, []string{"up", "a"}, time.Millisecond)
	var notAvailable *controller.ButtonNotAvailableError
	require.ErrorAs(t, err, &notAvailable)
	assert.Equal(t, "a", notAvailable.Button)

	var up bool
	require.NoError(t, p.Apply(ctx, func(s *controller.State) error {
		up, _ = s.Buttons().Button("up")
		return nil
	}))
	assert.False(t, up, "batch is rejected as a whole")
}

func TestHoldRelease(t *testing.T) {
	p := newTestProtocol(t, controller.ProController, true)
	transport := newFakeTransport()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx, transport)

	require.NoError(t, p.Hold(ctx, "home"))
	reports := transport.reports()
	assert.Equal(t, byte(0x08), reports[len(reports)-1][5])

	require.NoError(t, p.Release(ctx, "home"))
	reports = transport.reports()
	assert.Equal(t, byte(0x00), reports[len(reports)-1][5])

	assert.ErrorIs(t, p.Release(ctx), controller.ErrNoButtonsGiven)
}

func TestSetStick(t *testing.T) {
	p := newTestProtocol(t, controller.JoyconL, true)
	transport := newFakeTransport()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx, transport)

	require.NoError(t, p.SetStick(ctx, "l", func(s *controller.StickState) error {
		return s.SetH(0x0AB)
	}))
	reports := transport.reports()
	assert.Equal(t, byte(0xAB), reports[len(reports)-1][7])

	err := p.SetStick(ctx, "r", func(s *controller.StickState) error { return nil })
	assert.ErrorIs(t, err, controller.ErrStickNotAvailable)
}

func TestSetNfc(t *testing.T) {
	p := newTestProtocol(t, controller.ProController, true)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx, newFakeTransport())

	data := make([]byte, amiibo.Size)
	copy(data, []byte{0x04, 0x11, 0x22, 0x99, 0x33, 0x44, 0x55, 0x66})
	tag := amiibo.New(data, amiibo.Amiibo, "mario.bin")
	require.NoError(t, p.SetNfc(ctx, tag))
	got, err := p.Nfc(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, amiibo.Info{UID: tag.UID(), Source: "mario.bin"}, *got)

	require.NoError(t, p.Apply(ctx, func(s *controller.State) error {
		return s.Nfc().Write(0, []byte{0x05})
	}))
	assert.Equal(t, byte(0x04), got.UID[0], "snapshot does not follow later writes")

	require.NoError(t, p.SetNfc(ctx, nil))
	got, err = p.Nfc(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestApplyHonoursContext(t *testing.T) {
	p := newTestProtocol(t, controller.ProController, true)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := p.Apply(ctx, func(*controller.State) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
