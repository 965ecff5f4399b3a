// SPDX-License-Identifier: MIT
//
// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.

// Package serial provides a serial port, which provides the io.ReadWriter
// interface, that provides the connection between the at package and the
// physical modem.
package serial

import (
	"github.com/tarm/serial"
)

// Config holds the parameters of a serial connection to a modem.
type Config struct {
	port string
	baud int
}

// Option modifies the Config used by New, overriding the platform default
// returned by defaultConfig.
type Option func(*Config)

// WithPort overrides the serial device path or name.
func WithPort(port string) Option {
	return func(c *Config) { c.port = port }
}

// WithBaud overrides the serial baud rate.
func WithBaud(baud int) Option {
	return func(c *Config) { c.baud = baud }
}

// New opens a serial port to a modem, using the platform-specific default
// port and baud rate (see serial_linux.go/serial_darwin.go/
// serial_windows.go) unless overridden by opts.
func New(opts ...Option) (*serial.Port, error) {
	cfg := defaultConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	c := &serial.Config{Name: cfg.port, Baud: cfg.baud}
	return serial.OpenPort(c)
}
