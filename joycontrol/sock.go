package joycontrol

import (
	"errors"
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// L2CAP channels of the HID profile.
const (
	ControlPSM   uint16 = 17
	InterruptPSM uint16 = 19
)

var errInvalidMAC = errors.New("bluetooth: Bad MAC address")

func newL2capSocket() (int, error) {
	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_SEQPACKET, unix.BTPROTO_L2CAP)
	if nil != err {
		return -1, fmt.Errorf("unix.Socket %w", err)
	}
	return fd, nil
}

// SetupSocket binds a listening L2CAP socket on the local adapter.
func SetupSocket(addr string, channel uint16) (fd int, err error) {
	sa, err := ParseBluetoothSockaddr(addr, channel)
	if nil != err {
		return -1, err
	}
	if fd, err = newL2capSocket(); nil != err {
		return
	}
	if err = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); nil != err {
		unix.Close(fd)
		return -1, fmt.Errorf("unix.SetsockoptInt %w", err)
	}
	if err = unix.Bind(fd, sa); nil != err {
		unix.Close(fd)
		return -1, fmt.Errorf("unix.Bind %w", err)
	}
	if err = unix.Listen(fd, 1); nil != err {
		unix.Close(fd)
		return -1, fmt.Errorf("unix.Listen %w", err)
	}
	return
}

// DialSocket connects to a channel of an already paired host.
func DialSocket(addr string, channel uint16) (fd int, err error) {
	sa, err := ParseBluetoothSockaddr(addr, channel)
	if nil != err {
		return -1, err
	}
	if fd, err = newL2capSocket(); nil != err {
		return
	}
	if err = unix.Connect(fd, sa); nil != err {
		unix.Close(fd)
		return -1, fmt.Errorf("unix.Connect %s psm %d: %w", addr, channel, err)
	}
	return
}

// ParseBluetoothSockaddr builds an L2CAP address. Addr keeps the textual byte
// order; unix reverses it into the kernel's bdaddr.
func ParseBluetoothSockaddr(addr string, channel uint16) (unix.Sockaddr, error) {
	hwAddr, err := net.ParseMAC(addr)
	if nil != err || len(hwAddr) != 6 {
		return nil, errInvalidMAC
	}
	var d [6]byte
	copy(d[:], hwAddr)
	sa := &unix.SockaddrL2{
		PSM:      channel,
		Addr:     d,
		AddrType: unix.BDADDR_BREDR,
	}
	return sa, nil
}
