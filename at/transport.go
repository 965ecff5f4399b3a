package at

import "io"

// Transport is the byte-oriented connection to the modem. Channel treats it
// as an opaque collaborator: reads and writes of raw octets, nothing more.
// The Transport is owned by the caller, not by the Channel - Channel never
// closes it itself (see Close).
type Transport interface {
	io.Reader
	io.Writer
}

// RxEnabler is an optional Transport capability, probed via type assertion,
// that gates the receive path on and off. Implementations that have no
// meaningful RX gate (e.g. an in-memory pipe) may simply not implement it.
type RxEnabler interface {
	SetRxEnable(enabled bool)
}

// Deiniter is an optional Transport capability, probed via type assertion,
// invoked by Channel.Close to let the transport release its resources.
// What Deinit releases is up to the implementation; BugstPort's Deinit
// closes the underlying port.
type Deiniter interface {
	Deinit() error
}
