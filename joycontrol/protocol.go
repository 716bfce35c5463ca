package joycontrol

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"dio.wtf/nxcontrol/joycontrol/amiibo"
	"dio.wtf/nxcontrol/joycontrol/controller"
	"dio.wtf/nxcontrol/joycontrol/log"
	"dio.wtf/nxcontrol/joycontrol/mcu"
	"dio.wtf/nxcontrol/joycontrol/memory"
	R "dio.wtf/nxcontrol/joycontrol/report"
	"golang.org/x/exp/slices"
)

const (
	pairingInterval = time.Second
	reportInterval  = time.Second / 60
	releaseTimeout  = time.Second

	neverRepeat time.Duration = -1
)

// resendDelay is how long an acknowledged subcommand waits for the next
// output report before its reply is sent once more.
var resendDelay = map[R.Subcommand]time.Duration{
	R.RequestDeviceInfo:         time.Second,
	R.SetInputReportMode:        neverRepeat,
	R.TriggerButtonsElapsedTime: time.Second,
	R.SetShipmentLowPowerState:  time.Second,
	R.SpiFlashRead:              time.Second,
	R.SetNfcMcuConfig:           neverRepeat,
	R.SetNfcMcuState:            neverRepeat,
	R.SetPlayerLights:           time.Second,
	R.EnableImu:                 time.Second,
	R.EnableVibration:           time.Second,
}

type pendingReply struct {
	data []byte
	due  time.Time
}

type mutation struct {
	fn   func(*controller.State) error
	done chan error
}

// Protocol answers the console on behalf of an emulated controller. Run owns
// the controller state; everything else reaches it through Apply.
type Protocol struct {
	controller controller.Type
	state      *controller.State
	spiFlash   *memory.FlashMemory
	mcu        *mcu.MicroControllerUnit
	mcuOptions []mcu.Option

	pairing    bool
	mode       R.InputReportId
	lastTime   time.Time
	elapsed    int64
	imuEnabled bool
	macAddr    []byte
	resend     *pendingReply

	mutations chan mutation
	pulse     chan struct{}
}

type Option func(*Protocol)

func WithMcuOptions(opts ...mcu.Option) Option {
	return func(p *Protocol) {
		p.mcuOptions = append(p.mcuOptions, opts...)
	}
}

// NewProtocol creates the protocol for a controller. reconnect skips the
// slow pairing cadence for a host that is already paired.
func NewProtocol(c controller.Type, spiFlash *memory.FlashMemory, reconnect bool, opts ...Option) *Protocol {
	p := &Protocol{
		controller: c,
		state:      controller.NewState(c, spiFlash),
		spiFlash:   spiFlash,
		pairing:    !reconnect,
		lastTime:   time.Now(),
		mutations:  make(chan mutation),
		pulse:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.mcu = mcu.New(p.state, p.mcuOptions...)
	return p
}

func (p *Protocol) Setup(macAddr []byte) {
	p.macAddr = macAddr
}

func (p *Protocol) Controller() controller.Type {
	return p.controller
}

func (p *Protocol) interval() time.Duration {
	if p.pairing && p.mode == 0 {
		return pairingInterval
	}
	return reportInterval
}

// Run sends input reports and answers output reports until ctx is done or
// the transport fails.
func (p *Protocol) Run(ctx context.Context, transport Transport) error {
	interval := p.interval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	incoming := transport.Incoming()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m := <-p.mutations:
			m.done <- m.fn(p.state)
		case data, ok := <-incoming:
			if !ok {
				return ErrTransportClosed
			}
			if reply := p.HandleOutputReport(data); nil != reply {
				if err := p.send(transport, reply); nil != err {
					return err
				}
			}
		case <-ticker.C:
			if err := p.send(transport, p.nextReport()); nil != err {
				return err
			}
		}

		if next := p.interval(); next != interval {
			log.DebugF("Report interval %v -> %v", interval, next)
			interval = next
			ticker.Reset(interval)
		}
	}
}

func (p *Protocol) send(transport Transport, input *R.InputReport) error {
	defer FreeReport(input)
	if err := transport.Send(*input); nil != err {
		return fmt.Errorf("send %s report: %w", input.ReportId(), err)
	}
	p.state.NotifySent()
	return nil
}

// NextReportBytes builds the next periodic input report and marks the
// current state as sent.
func (p *Protocol) NextReportBytes() []byte {
	input := p.nextReport()
	defer FreeReport(input)
	data := slices.Clone(*input)
	p.state.NotifySent()
	return data
}

func (p *Protocol) nextReport() *R.InputReport {
	if nil != p.resend && !time.Now().Before(p.resend.due) {
		input := AllocStandardReport()
		copy(*input, p.resend.data)
		p.resend = nil
		log.DebugF("Resend %s reply", input.ReplySubcommand())
		return input
	}

	var input *R.InputReport
	if p.mode == R.NfcMcuModeId {
		input = AllocNfcReport()
		input.SetReportId(R.NfcMcuModeId)
		p.fillInputReport(*input)
		p.mcu.Tick()
		input.SetMcuData(p.mcu.Data())
	} else {
		input = AllocStandardReport()
		input.SetReportId(R.StandardFullModeId)
		p.fillInputReport(*input)
	}
	input.SetImuData(p.imuEnabled)
	return input
}

func (p *Protocol) fillInputReport(input R.InputReport) {
	p.updateTimer()
	input.SetTimer(byte(p.elapsed))
	if p.controller == controller.ProController {
		input.SetBattery(R.BatteryFullPro)
	} else {
		input.SetBattery(R.BatteryFullJoycon)
	}
	input.SetButtons(p.state.Buttons().Bytes())
	if stick := p.state.LeftStick(); nil != stick {
		input.SetLeftStick(stick.Bytes())
	}
	if stick := p.state.RightStick(); nil != stick {
		input.SetRightStick(stick.Bytes())
	}
	input.SetVibrator(0x80)
}

func (p *Protocol) updateTimer() {
	duration := time.Since(p.lastTime)

	p.elapsed = (p.elapsed + (duration.Microseconds() * 4)) & 0xFF
	p.lastTime = time.Now()
}

// HandleOutputReport processes a report from the console and returns the
// reply to send right away, if any.
func (p *Protocol) HandleOutputReport(data []byte) *R.InputReport {
	p.resend = nil

	output := R.OutputReport(data)
	if err := output.Validate(); nil != err {
		if errors.Is(err, R.ErrUnknownSubcommand) {
			log.DebugF("Unknown subcommand %#02x", byte(output.Subcommand()))
			return p.standardReply()
		}
		log.WarnF("Drop output report: %v", err)
		return nil
	}
	log.TraceF("%s", output)

	switch output.Id() {
	case R.RumbleOnly:
		return nil
	case R.RequestMcuData:
		p.OnMcuRequest(output.McuRequest())
		return nil
	case R.UpdateNfcPacket:
		log.Debug("NFC update packets are not supported")
		return nil
	}

	input := p.processSubcommandReport(output)
	if delay := resendDelay[output.Subcommand()]; delay > 0 {
		p.resend = &pendingReply{
			data: slices.Clone(*input),
			due:  time.Now().Add(delay),
		}
	}
	return input
}

// OnMcuRequest forwards an MCU request (output report 0x11) to the MCU.
func (p *Protocol) OnMcuRequest(data []byte) {
	p.mcu.Request(data)
}

func (p *Protocol) processSubcommandReport(output R.OutputReport) (input *R.InputReport) {
	subcommand := output.Subcommand()
	data := output.SubcommandData()
	log.DebugF("Subcommand %s % X", subcommand, data[:min(len(data), 8)])

	switch subcommand {
	case R.RequestDeviceInfo:
		input = p.answerDeviceInfo()
	case R.SetInputReportMode:
		input = p.answerSetMode(data)
	case R.TriggerButtonsElapsedTime:
		input = p.answerTriggerButtonsElapsedTime()
	case R.SetShipmentLowPowerState:
		input = p.answerSetShipmentState()
	case R.SpiFlashRead:
		input = p.answerSpiRead(data)
	case R.SetNfcMcuConfig:
		input = p.answerSetNfcMcuConfig(data)
	case R.SetNfcMcuState:
		input = p.answerSetNfcMcuState(data)
	case R.SetPlayerLights:
		input = p.answerSetPlayerLights(data)
	case R.EnableImu:
		input = p.answerEnableImu(data)
	case R.EnableVibration:
		input = p.answerEnableVibration()
	default:
		// Currently set so that the controller ignores any unknown
		// subcommands. This is better than sending a NACK response
		// since we'd just get stuck in an infinite loop arguing
		// with the Switch.
		input = p.standardReply()
	}
	return
}

func arg(data []byte, i int) byte {
	if i < len(data) {
		return data[i]
	}
	return 0
}

func (p *Protocol) standardReply() *R.InputReport {
	input := AllocStandardReport()
	input.SetReportId(R.StandardFullModeId)
	p.fillInputReport(*input)
	input.SetImuData(p.imuEnabled)
	return input
}

func (p *Protocol) subcommandReply() *R.InputReport {
	input := AllocStandardReport()
	input.SetReportId(R.SubcommandReplies)
	p.fillInputReport(*input)
	return input
}

func (p *Protocol) answerDeviceInfo() *R.InputReport {
	input := p.subcommandReply()
	input.AckDeviceInfo(byte(p.controller), p.macAddr)
	return input
}

func (p *Protocol) answerSetMode(data []byte) *R.InputReport {
	mode := R.InputReportId(arg(data, 0))
	switch mode {
	case R.StandardFullModeId, R.NfcMcuModeId, R.SimpleHidId:
		if mode != p.mode {
			log.InfoF("Input report mode %s", mode)
		}
		p.mode = mode
	default:
		log.WarnF("Input report mode %#02x not supported", byte(mode))
	}

	input := p.subcommandReply()
	input.AckSetInputReportMode()
	return input
}

func (p *Protocol) answerTriggerButtonsElapsedTime() *R.InputReport {
	input := p.subcommandReply()
	input.AckTriggerButtonsElapsedTime()
	return input
}

func (p *Protocol) answerSetShipmentState() *R.InputReport {
	input := p.subcommandReply()
	input.AckSetShipmentLowPowerState()
	return input
}

func (p *Protocol) answerSpiRead(data []byte) *R.InputReport {
	input := p.subcommandReply()
	addr, size, err := R.SpiReadRequest(data)
	if nil != err {
		log.WarnF("SPI flash read: %v", err)
		input.AckSpiFlashRead(data, nil)
		return input
	}

	var content []byte
	if nil != p.spiFlash {
		content = p.spiFlash.Read(addr, size)
	} else {
		content = bytes.Repeat([]byte{0xFF}, size)
	}
	input.AckSpiFlashRead(data[:5], content)
	return input
}

func (p *Protocol) answerSetNfcMcuConfig(data []byte) *R.InputReport {
	input := p.subcommandReply()
	input.AckSetNfcMcuConfig(p.mcu.Configure(data))
	return input
}

func (p *Protocol) answerSetNfcMcuState(data []byte) *R.InputReport {
	p.mcu.SetPower(data)
	input := p.subcommandReply()
	input.AckSetNfcMcuState()
	return input
}

func (p *Protocol) answerSetPlayerLights(data []byte) *R.InputReport {
	log.InfoF("Player lights %04b", arg(data, 0)&0x0F)
	input := p.subcommandReply()
	input.AckSetPlayerLights()
	return input
}

func (p *Protocol) answerEnableImu(data []byte) *R.InputReport {
	p.imuEnabled = arg(data, 0) == 0x01

	input := p.subcommandReply()
	input.AckEnableImu()
	return input
}

func (p *Protocol) answerEnableVibration() *R.InputReport {
	input := p.subcommandReply()
	input.AckEnableVibration()
	return input
}

// Apply runs fn on the controller state inside the report loop.
func (p *Protocol) Apply(ctx context.Context, fn func(*controller.State) error) error {
	m := mutation{fn: fn, done: make(chan error, 1)}
	select {
	case p.mutations <- m:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-m.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// applyAndWait runs fn and waits until a report carrying its result was
// sent.
func (p *Protocol) applyAndWait(ctx context.Context, fn func(*controller.State) error) error {
	var sent <-chan struct{}
	err := p.Apply(ctx, func(s *controller.State) error {
		if err := fn(s); nil != err {
			return err
		}
		sent = s.Sent()
		return nil
	})
	if nil != err {
		return err
	}
	select {
	case <-sent:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Protocol) setButtons(ctx context.Context, buttons []string, pushed bool) error {
	if len(buttons) == 0 {
		return controller.ErrNoButtonsGiven
	}
	return p.applyAndWait(ctx, func(s *controller.State) error {
		bs := s.Buttons()
		for _, button := range buttons {
			if _, err := bs.Button(button); nil != err {
				return err
			}
		}
		for _, button := range buttons {
			if err := bs.SetButton(button, pushed); nil != err {
				return err
			}
		}
		return nil
	})
}

// Pulse presses all buttons in one report, holds them and releases them in
// one report. Only one pulse runs at a time.
func (p *Protocol) Pulse(ctx context.Context, buttons []string, hold time.Duration) error {
	if len(buttons) == 0 {
		return controller.ErrNoButtonsGiven
	}
	select {
	case p.pulse <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-p.pulse }()

	if err := p.setButtons(ctx, buttons, true); nil != err {
		return err
	}
	timer := time.NewTimer(hold)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		// release anyway so a cancelled pulse does not leave buttons held
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		return errors.Join(ctx.Err(), p.setButtons(releaseCtx, buttons, false))
	}
	return p.setButtons(ctx, buttons, false)
}

func (p *Protocol) Hold(ctx context.Context, buttons ...string) error {
	return p.setButtons(ctx, buttons, true)
}

func (p *Protocol) Release(ctx context.Context, buttons ...string) error {
	return p.setButtons(ctx, buttons, false)
}

// SetStick applies fn to the stick on side ("l" or "r").
func (p *Protocol) SetStick(ctx context.Context, side string, fn func(*controller.StickState) error) error {
	return p.applyAndWait(ctx, func(s *controller.State) error {
		stick, err := s.Stick(side)
		if nil != err {
			return err
		}
		return fn(stick)
	})
}

// SetNfc loads tag onto the reader, nil takes the current one away.
func (p *Protocol) SetNfc(ctx context.Context, tag *amiibo.Tag) error {
	return p.Apply(ctx, func(s *controller.State) error {
		previous := s.Nfc()
		s.SetNfc(tag)
		if nil == tag && nil != previous {
			p.mcu.TagRemoved()
		}
		return nil
	})
}

// Nfc returns a snapshot of the loaded tag, nil when the reader is empty.
// The snapshot is taken inside the report loop, so it cannot race with MCU
// writes to the tag.
func (p *Protocol) Nfc(ctx context.Context) (info *amiibo.Info, err error) {
	err = p.Apply(ctx, func(s *controller.State) error {
		if tag := s.Nfc(); nil != tag {
			snapshot := tag.Info()
			info = &snapshot
		}
		return nil
	})
	return
}
