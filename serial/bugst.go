// SPDX-License-Identifier: MIT
//
// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.

package serial

import (
	"go.bug.st/serial"
)

// BugstConfig holds the parameters of a go.bug.st/serial connection.
type BugstConfig struct {
	port string
	baud int
}

// BugstOption modifies the BugstConfig used by NewBugst.
type BugstOption func(*BugstConfig)

// WithBugstPort overrides the serial device path or name.
func WithBugstPort(port string) BugstOption {
	return func(c *BugstConfig) { c.port = port }
}

// WithBugstBaud overrides the serial baud rate.
func WithBugstBaud(baud int) BugstOption {
	return func(c *BugstConfig) { c.baud = baud }
}

// BugstPort wraps a go.bug.st/serial.Port to implement the at.RxEnabler and
// at.Deiniter optional transport capabilities, in addition to the plain
// at.Transport io.Reader/io.Writer it gets from serial.Port.
type BugstPort struct {
	serial.Port
}

// NewBugst opens a serial port to a modem via go.bug.st/serial, an
// alternative backend to New's tarm/serial, grounded on
// i4energy-sms-gateway/modem/transport.go's SerialDialer. Unlike tarm/serial,
// go.bug.st/serial exposes ResetInputBuffer, which BugstPort uses to
// implement SetRxEnable.
func NewBugst(opts ...BugstOption) (*BugstPort, error) {
	cfg := BugstConfig{port: defaultConfig.port, baud: defaultConfig.baud}
	for _, opt := range opts {
		opt(&cfg)
	}
	mode := &serial.Mode{BaudRate: cfg.baud}
	p, err := serial.Open(cfg.port, mode)
	if err != nil {
		return nil, err
	}
	return &BugstPort{Port: p}, nil
}

// SetRxEnable implements at.RxEnabler. Re-enabling the receive path flushes
// any bytes the modem sent while it was disabled, so a stale URC or response
// fragment from before suspension can't be misread as belonging to the next
// command.
func (b *BugstPort) SetRxEnable(enabled bool) {
	if enabled {
		b.Port.ResetInputBuffer()
	}
}

// Deinit implements at.Deiniter by closing the underlying port.
func (b *BugstPort) Deinit() error {
	return b.Port.Close()
}
