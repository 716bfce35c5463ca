package joycontrol

import "errors"

var ErrTransportClosed = errors.New("transport closed")

// Transport carries reports between the protocol and the console.
type Transport interface {
	// Send writes one input report. data is only valid during the call.
	Send(data []byte) error
	// Incoming yields output reports and is closed when the host is gone.
	Incoming() <-chan []byte
}
