package cli

import (
	"context"
	"errors"
	"testing"
	"time"

	"dio.wtf/nxcontrol/joycontrol/amiibo"
	"dio.wtf/nxcontrol/joycontrol/controller"
	"dio.wtf/nxcontrol/joycontrol/memory"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	name string
	args []string
}

// fakeEmulator applies commands to a real state without a report loop.
type fakeEmulator struct {
	state *controller.State
	calls []call
}

func newFakeEmulator(t *testing.T, c controller.Type) *fakeEmulator {
	spiFlash, err := memory.New(nil)
	require.NoError(t, err)
	return &fakeEmulator{state: controller.NewState(c, spiFlash)}
}

func (f *fakeEmulator) Controller() controller.Type {
	return f.state.Controller()
}

func (f *fakeEmulator) setButtons(buttons []string, pushed bool) error {
	if len(buttons) == 0 {
		return controller.ErrNoButtonsGiven
	}
	for _, b := range buttons {
		if _, err := f.state.Buttons().Button(b); nil != err {
			return err
		}
	}
	for _, b := range buttons {
		f.state.Buttons().SetButton(b, pushed)
	}
	return nil
}

func (f *fakeEmulator) Pulse(_ context.Context, buttons []string, hold time.Duration) error {
	f.calls = append(f.calls, call{"pulse", buttons})
	if err := f.setButtons(buttons, true); nil != err {
		return err
	}
	return f.setButtons(buttons, false)
}

func (f *fakeEmulator) Hold(_ context.Context, buttons ...string) error {
	f.calls = append(f.calls, call{"hold", buttons})
	return f.setButtons(buttons, true)
}

func (f *fakeEmulator) Release(_ context.Context, buttons ...string) error {
	f.calls = append(f.calls, call{"release", buttons})
	return f.setButtons(buttons, false)
}

func (f *fakeEmulator) SetStick(_ context.Context, side string, fn func(*controller.StickState) error) error {
	stick, err := f.state.Stick(side)
	if nil != err {
		return err
	}
	return fn(stick)
}

func (f *fakeEmulator) SetNfc(_ context.Context, tag *amiibo.Tag) error {
	f.state.SetNfc(tag)
	return nil
}

func (f *fakeEmulator) Nfc(context.Context) (*amiibo.Info, error) {
	tag := f.state.Nfc()
	if nil == tag {
		return nil, nil
	}
	info := tag.Info()
	return &info, nil
}

type fakeStore map[string][]byte

func (f fakeStore) Load(path string) ([]byte, error) {
	data, ok := f[path]
	if !ok {
		return nil, errors.New("not found")
	}
	return data, nil
}

func (f fakeStore) Save(path string, data []byte) error {
	f[path] = data
	return nil
}

func TestExecuteChain(t *testing.T) {
	emu := newFakeEmulator(t, controller.ProController)
	sh := NewShell(emu, fakeStore{})

	out, err := sh.Execute(context.Background(), "hold a b && release a && push 'zl'")
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, []call{
		{"hold", []string{"a", "b"}},
		{"release", []string{"a"}},
		{"pulse", []string{"zl"}},
	}, emu.calls)

	b, _ := emu.state.Buttons().Button("b")
	assert.True(t, b)
}

func TestBareButtonsArePushed(t *testing.T) {
	emu := newFakeEmulator(t, controller.JoyconR)
	sh := NewShell(emu, fakeStore{})

	_, err := sh.Execute(context.Background(), "A x")
	require.NoError(t, err)
	assert.Equal(t, []call{{"pulse", []string{"A", "x"}}}, emu.calls)
}

func TestExecuteErrorsKeepGoing(t *testing.T) {
	emu := newFakeEmulator(t, controller.JoyconL)
	sh := NewShell(emu, fakeStore{})

	out, err := sh.Execute(context.Background(), "frobnicate && push a && push && hold up")
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "command frobnicate not found, call help for help.", out[0])
	assert.Contains(t, out[1], `"a" is not available`)
	assert.Equal(t, controller.ErrNoButtonsGiven.Error(), out[2])

	up, _ := emu.state.Buttons().Button("up")
	assert.True(t, up)
}

func TestExit(t *testing.T) {
	emu := newFakeEmulator(t, controller.ProController)
	sh := NewShell(emu, fakeStore{})

	_, err := sh.Execute(context.Background(), "hold a && exit && release a")
	assert.ErrorIs(t, err, ErrExit)
	assert.Len(t, emu.calls, 1)
}

func TestHelp(t *testing.T) {
	sh := NewShell(newFakeEmulator(t, controller.JoyconL), fakeStore{})
	out, err := sh.Execute(context.Background(), "help")
	require.NoError(t, err)
	require.Len(t, out, 1)
	for _, name := range []string{"push", "hold", "release", "stick", "nfc", "exit"} {
		assert.Contains(t, out[0], name)
	}
	assert.Contains(t, out[0], "capture")
	assert.NotContains(t, out[0], "home")
}

func TestStickCommand(t *testing.T) {
	emu := newFakeEmulator(t, controller.ProController)
	sh := NewShell(emu, fakeStore{})
	ctx := context.Background()

	out, err := sh.Execute(ctx, "stick l up && stick r h 0x123 && stick r v 291")
	require.NoError(t, err)
	assert.Empty(t, out)

	left := emu.state.LeftStick()
	cal, err := left.Calibration()
	require.NoError(t, err)
	assert.Equal(t, cal.VCenter+cal.VMaxAboveCenter, left.V())
	assert.Equal(t, uint16(0x123), emu.state.RightStick().H())
	assert.Equal(t, uint16(291), emu.state.RightStick().V())

	out, _ = sh.Execute(ctx, "stick && stick l h && stick l h 0x1000 && stick l spin 1 && stick l h zz")
	require.Len(t, out, 5)
	assert.Contains(t, out[0], ErrMissingArgument.Error())
	assert.Contains(t, out[1], ErrMissingArgument.Error())
	assert.Equal(t, controller.ErrInvalidStickValue.Error(), out[2])
	assert.Contains(t, out[3], ErrUnknownStickCmd.Error())
	assert.Contains(t, out[4], "zz")

	joycon := newFakeEmulator(t, controller.JoyconL)
	out, _ = NewShell(joycon, fakeStore{}).Execute(ctx, "stick r center")
	assert.Equal(t, []string{controller.ErrStickNotAvailable.Error()}, out)
}

func TestNfcCommand(t *testing.T) {
	data := make([]byte, amiibo.Size)
	copy(data, []byte{0x04, 0x11, 0x22, 0x99, 0x33, 0x44, 0x55, 0x66})
	emu := newFakeEmulator(t, controller.ProController)
	sh := NewShell(emu, fakeStore{"mario.bin": data})
	ctx := context.Background()

	out, _ := sh.Execute(ctx, "nfc")
	assert.Equal(t, []string{"no tag loaded"}, out)

	out, _ = sh.Execute(ctx, "nfc mario.bin")
	assert.Equal(t, []string{"tag 04112233445566 loaded"}, out)
	require.NotNil(t, emu.state.Nfc())
	assert.Equal(t, "mario.bin", emu.state.Nfc().Source())

	out, _ = sh.Execute(ctx, "nfc")
	assert.Equal(t, []string{`tag 04112233445566 from "mario.bin"`}, out)

	out, _ = sh.Execute(ctx, "nfc remove")
	assert.Equal(t, []string{"tag removed"}, out)
	assert.Nil(t, emu.state.Nfc())

	out, _ = sh.Execute(ctx, "nfc missing.bin")
	require.Len(t, out, 1)
	assert.Contains(t, out[0], "missing.bin")
}

func TestModel(t *testing.T) {
	emu := newFakeEmulator(t, controller.ProController)
	m := newModel(context.Background(), NewShell(emu, fakeStore{}))

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("hold")})
	next, _ = next.Update(tea.KeyMsg{Type: tea.KeySpace})
	next, _ = next.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("ax")})
	next, _ = next.Update(tea.KeyMsg{Type: tea.KeyBackspace})
	assert.Contains(t, next.View(), prompt+"hold a")

	next, cmd := next.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.NotContains(t, next.View(), prompt+"hold a\n"+prompt)

	msg := cmd()
	require.IsType(t, resultMsg{}, msg)
	assert.Equal(t, []call{{"hold", []string{"a"}}}, emu.calls)

	next, cmd = next.Update(msg)
	assert.Nil(t, cmd)
	assert.Contains(t, next.View(), prompt+"hold a\n"+prompt)

	_, cmd = next.Update(resultMsg{exit: true})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}
