package joycontrol

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"dio.wtf/nxcontrol/joycontrol/log"
	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"
	"golang.org/x/exp/slices"
	"golang.org/x/sys/unix"
)

//go:embed sdp/controller.xml
var sdpRecord string

const (
	GAMEPAD_CLASS = "0x002508"
	HID_PATH      = "/nxcontrol/controller"
	HID_UUID      = "00001124-0000-1000-8000-00805f9b34fb"

	watchInterval = time.Second
	readBufSize   = 512
)

var ErrNoAdapter = errors.New("no bluetooth adapter found")

// Server advertises the emulated controller and connects it to a console.
type Server struct {
	device    *Device
	protocol  *Protocol
	reconnect bool
	host      string
}

type ServerOption func(*Server)

// WithReconnect connects to an already paired console instead of waiting
// for a new pairing. An empty host picks the first paired console.
func WithReconnect(host string) ServerOption {
	return func(s *Server) {
		s.reconnect = true
		s.host = host
	}
}

func NewServer(protocol *Protocol, opts ...ServerOption) (*Server, error) {
	device, err := NewDevice()
	if nil != err {
		return nil, err
	}
	s := &Server{
		device:   device,
		protocol: protocol,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run connects to the console and serves reports until ctx is done or the
// connection drops.
func (s *Server) Run(ctx context.Context) error {
	toggleCleanBluez(true)
	addr, err := s.device.GetAddress()
	if nil != err {
		return fmt.Errorf("adapter address: %w", err)
	}
	mac, err := net.ParseMAC(addr)
	if nil != err {
		return fmt.Errorf("adapter address %s: %w", addr, err)
	}
	s.protocol.Setup(mac)

	if err := s.Setup(); nil != err {
		return err
	}

	var transport *l2capTransport
	if s.reconnect {
		transport, err = s.Reconnect()
	} else {
		transport, err = s.Connect(ctx, addr)
	}
	if nil != err {
		return err
	}
	defer transport.Close()

	return s.protocol.Run(ctx, transport)
}

// Stop undoes the bluetoothd override.
func (s *Server) Stop() {
	toggleCleanBluez(false)
}

func (s *Server) Setup() (err error) {
	alias := s.protocol.Controller().String()
	if err = s.device.SetPowered(true); nil != err {
		log.Error(err)
	}
	if err = s.device.SetPairable(true); nil != err {
		log.Error(err)
	}
	if err = s.device.SetPairableTimeout(0); nil != err {
		log.Error(err)
	}
	if err = s.device.SetDiscoverableTimeout(180); nil != err {
		log.Error(err)
	}
	if err = s.device.SetAlias(alias); nil != err {
		log.Error(err)
	} else {
		log.DebugF("setting device name to %s...", alias)
	}

	options := map[string]interface{}{
		"ServiceRecord":         sdpRecord,
		"Role":                  "server",
		"RequireAuthentication": false,
		"RequireAuthorization":  false,
		"AutoConnect":           true,
	}
	if err = s.device.RegisterProfile(HID_PATH, uuid.MustParse(HID_UUID).String(), options); nil != err {
		return fmt.Errorf("register HID profile: %w", err)
	}
	return nil
}

// Connect waits for a console to pair.
func (s *Server) Connect(ctx context.Context, addr string) (*l2capTransport, error) {
	log.DebugF("MAC: %s", addr)

	ctrlSock, err := SetupSocket(addr, ControlPSM)
	if nil != err {
		return nil, err
	}
	defer unix.Close(ctrlSock)
	itrSock, err := SetupSocket(addr, InterruptPSM)
	if nil != err {
		return nil, err
	}
	defer unix.Close(itrSock)

	s.device.SetDiscoverable(true)
	s.device.SetClass(GAMEPAD_CLASS)

	acceptCtx, stop := context.WithCancel(ctx)
	defer stop()
	go s.watchConnReset(acceptCtx)
	go func() {
		<-acceptCtx.Done()
		// unblocks Accept
		unix.Shutdown(ctrlSock, unix.SHUT_RDWR)
		unix.Shutdown(itrSock, unix.SHUT_RDWR)
	}()

	ctrl, ctrlAddr, err := unix.Accept(ctrlSock)
	if nil != err {
		if nil != ctx.Err() {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("accept control: %w", err)
	}
	log.DebugF("Accept control %d from %v", ctrl, ctrlAddr)
	itr, itrAddr, err := unix.Accept(itrSock)
	if nil != err {
		unix.Close(ctrl)
		if nil != ctx.Err() {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("accept interrupt: %w", err)
	}
	log.DebugF("Accept interrupt %d from %v", itr, itrAddr)
	if l2, ok := itrAddr.(*unix.SockaddrL2); ok {
		log.InfoF("Connected to %s", net.HardwareAddr(l2.Addr[:]))
	}

	// stop advertising
	s.device.SetDiscoverable(false)
	s.device.SetPairable(false)

	return newL2capTransport(ctrl, itr), nil
}

// Reconnect dials a console that paired before.
func (s *Server) Reconnect() (*l2capTransport, error) {
	host := s.host
	if host == "" {
		hosts, err := s.device.PairedSwitches()
		if nil != err {
			return nil, err
		}
		if len(hosts) == 0 {
			return nil, errors.New("no paired Nintendo Switch to reconnect to")
		}
		host = hosts[0]
	}
	log.InfoF("Reconnecting to %s", host)

	ctrl, err := DialSocket(host, ControlPSM)
	if nil != err {
		return nil, err
	}
	itr, err := DialSocket(host, InterruptPSM)
	if nil != err {
		unix.Close(ctrl)
		return nil, err
	}
	return newL2capTransport(ctrl, itr), nil
}

func (s *Server) watchConnReset(ctx context.Context) {
	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	connectedDevice := make(map[string]struct{})
	disconnectRecord := make(map[string]int)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		discoverable, _ := s.device.GetDiscoverable()
		if !discoverable {
			log.Debug("Resetup device")
			s.device.SetPowered(true)
			s.device.SetPairable(true)
			s.device.SetPairableTimeout(0)
			s.device.SetDiscoverable(true)
			s.device.SetClass(GAMEPAD_CLASS)
		}
		paths, _ := s.device.FindConnectedSwitches()
		for _, path := range paths {
			connectedDevice[path] = struct{}{}
		}

		for _, k := range disconnectedSince(connectedDevice, paths) {
			disconnectRecord[k]++
			delete(connectedDevice, k)
		}

		// Delete Switches that connect/disconnect twice.
		// This behaviour is characteristic of connection issues and is corrected
		// by removing the Switch's connection to the system.
		for k, v := range disconnectRecord {
			if v >= 2 {
				log.DebugF("A Nintendo Switch disconnected. Resetting Connection...Removing %s", k)
				if err := s.device.RemoveDevice(dbus.ObjectPath(k)); nil != err {
					log.DebugF("Remove device failed: %v", err)
				}
				disconnectRecord[k] = 0
			}
		}
	}
}

func disconnectedSince(known map[string]struct{}, connected []string) []string {
	disconnected := make([]string, 0)
	for k := range known {
		if !slices.Contains(connected, k) {
			disconnected = append(disconnected, k)
		}
	}
	slices.Sort(disconnected)
	return disconnected
}

// l2capTransport sends input reports on the interrupt channel and reads
// output reports from it.
type l2capTransport struct {
	ctrl, itr int
	incoming  chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newL2capTransport(ctrl, itr int) *l2capTransport {
	t := &l2capTransport{
		ctrl:     ctrl,
		itr:      itr,
		incoming: make(chan []byte, 4),
		done:     make(chan struct{}),
	}
	go t.readLoop()
	return t
}

func (t *l2capTransport) readLoop() {
	defer close(t.incoming)
	buf := make([]byte, readBufSize)
	for {
		n, err := unix.Read(t.itr, buf)
		if nil != err {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			log.InfoF("Connection lost: %v", err)
			return
		}
		if n == 0 {
			log.Info("Connection closed by host")
			return
		}
		select {
		case t.incoming <- slices.Clone(buf[:n]):
		case <-t.done:
			return
		}
	}
}

func (t *l2capTransport) Send(data []byte) error {
	_, err := unix.Write(t.itr, data)
	return err
}

func (t *l2capTransport) Incoming() <-chan []byte {
	return t.incoming
}

func (t *l2capTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		unix.Shutdown(t.itr, unix.SHUT_RDWR)
		unix.Shutdown(t.ctrl, unix.SHUT_RDWR)
		err = errors.Join(unix.Close(t.itr), unix.Close(t.ctrl))
	})
	return err
}
