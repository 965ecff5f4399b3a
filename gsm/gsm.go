// SPDX-License-Identifier: MIT
//
// Copyright © 2018 Kent Gibson <warthog618@gmail.com>.

// Package gsm provides a driver for GSM modems, layered on at.Channel.
package gsm

import (
	"errors"
	"io"
	"strings"
	"time"

	"github.com/atcore/modem/at"
	"github.com/atcore/modem/info"
	"github.com/warthog618/sms/encoding/pdumode"
)

// GSM decorates an at.Channel with GSM specific functionality: SMS and USSD
// submission on top of the channel's commands and indications.
type GSM struct {
	*at.Channel
	sca     pdumode.SMSCAddress
	pduMode bool
}

// Option configures a GSM created by New or FromReadWriter.
type Option func(*GSM)

// WithPDUMode configures the GSM to submit SMSs in PDU mode rather than the
// default text mode. This must be set before Init, which puts the modem
// itself into the matching mode.
func WithPDUMode() Option {
	return func(g *GSM) { g.pduMode = true }
}

// WithSCA sets the SMSC address used when transmitting PDU mode SMSs,
// overriding the default configured on the SIM.
func WithSCA(sca pdumode.SMSCAddress) Option {
	return func(g *GSM) { g.sca = sca }
}

// WithTimeout sets the cap on how long a Command or SendUSSD waits for a
// response, overriding the at.Channel default.
func WithTimeout(d time.Duration) Option {
	return func(g *GSM) { g.SetTimeout(d) }
}

// New decorates an existing at.Channel with GSM functionality.
func New(ch *at.Channel, opts ...Option) *GSM {
	g := &GSM{Channel: ch}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// FromReadWriter constructs a Channel over rw and decorates it with GSM
// functionality, equivalent to New(at.NewChannel(rw), opts...).
func FromReadWriter(rw io.ReadWriter, opts ...Option) *GSM {
	return New(at.NewChannel(rw), opts...)
}

// Init opens the channel, resets the modem (at.Channel.Init), confirms it
// supports the GSM command set via its GCAP response, and configures SMS
// mode and verbose (+CMEE=2) error reporting.
func (g *GSM) Init() error {
	g.Open()
	if err := g.Channel.Init(); err != nil {
		return err
	}
	resp, err := g.Commandf("+GCAP")
	if err != nil {
		return err
	}
	capabilities := make(map[string]bool)
	for _, l := range strings.Split(string(resp), "\n") {
		if info.HasPrefix(l, "+GCAP") {
			for _, c := range strings.Split(info.TrimPrefix(l, "+GCAP"), ",") {
				capabilities[c] = true
			}
		}
	}
	if !capabilities["+CGSM"] {
		return ErrNotGSMCapable
	}
	cmds := []string{
		"+CMGF=1", // text mode
		"+CMEE=2", // textual errors
	}
	if g.pduMode {
		cmds[0] = "+CMGF=0" // pdu mode
	}
	for _, cmd := range cmds {
		if _, err := g.Commandf(cmd); err != nil {
			return err
		}
	}
	return nil
}

var (
	// ErrNotGSMCapable indicates that the modem does not support the GSM
	// command set, as determined from the GCAP response.
	ErrNotGSMCapable = errors.New("gsm: modem is not GSM capable")

	// ErrMalformedResponse indicates the modem returned a badly formed
	// response.
	ErrMalformedResponse = errors.New("gsm: modem returned malformed response")

	// ErrWrongMode indicates the GSM modem is operating in the wrong mode
	// and so cannot support the command.
	ErrWrongMode = errors.New("gsm: modem is in the wrong mode")
)
