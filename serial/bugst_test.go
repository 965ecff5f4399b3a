// SPDX-License-Identifier: MIT
//
// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.

package serial_test

import (
	"os"
	"testing"

	"github.com/atcore/modem/serial"
	"github.com/stretchr/testify/require"
)

func TestNewBugst(t *testing.T) {
	patterns := []struct {
		name    string
		prereq  func(t *testing.T)
		options []serial.BugstOption
	}{
		{
			"default",
			modemExists("/dev/ttyUSB0"),
			nil,
		},
		{
			"port and baud",
			modemExists("/dev/ttyUSB0"),
			[]serial.BugstOption{
				serial.WithBugstPort("/dev/ttyUSB0"),
				serial.WithBugstBaud(9600),
			},
		},
	}
	for _, p := range patterns {
		f := func(t *testing.T) {
			if p.prereq != nil {
				p.prereq(t)
			}
			m, err := serial.NewBugst(p.options...)
			require.NoError(t, err)
			require.NotNil(t, m)
			if m != nil {
				m.Deinit()
			}
		}
		t.Run(p.name, f)
	}
}

func TestNewBugstBadPort(t *testing.T) {
	if _, err := os.Stat("nosuchmodem"); !os.IsNotExist(err) {
		t.Skip("path unexpectedly exists")
	}
	_, err := serial.NewBugst(serial.WithBugstPort("nosuchmodem"))
	require.Error(t, err)
}
