// SPDX-License-Identifier: MIT
//
// Copyright © 2018 Kent Gibson <warthog618@gmail.com>.

package gsm_test

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/sms/encoding/gsm7"

	"github.com/atcore/modem/at"
	"github.com/atcore/modem/gsm"
)

// simTransport is a hand-rolled Transport that dispatches each Write to a
// handler, which may push canned modem output back via the given push
// function - in the teacher's mockModem style, adapted to let a test script
// multiple independent responses per command (e.g. an immediate "OK"
// followed later by an unsolicited indication).
type simTransport struct {
	rd      *io.PipeReader
	wr      *io.PipeWriter
	handler func(cmd string, push func(string))
	written chan string
}

func newSimTransport(handler func(cmd string, push func(string))) *simTransport {
	r, w := io.Pipe()
	return &simTransport{rd: r, wr: w, handler: handler, written: make(chan string, 16)}
}

func (s *simTransport) Read(p []byte) (int, error) { return s.rd.Read(p) }

func (s *simTransport) Write(p []byte) (int, error) {
	s.written <- string(p)
	if s.handler != nil {
		s.handler(string(p), s.push)
	}
	return len(p), nil
}

func (s *simTransport) push(resp string) {
	go s.wr.Write([]byte(resp))
}

const ctrlZ = "\x1a"

func TestGSMInitAndSendSMS(t *testing.T) {
	handler := func(cmd string, push func(string)) {
		switch cmd {
		case "\x1b\r\n\r\n":
			// escape: the modem has nothing to say.
		case "+GCAP\r":
			push("+GCAP: +CGSM,+FCLASS,+DS\r\nOK\r\n")
		case `+CMGS="+12345"` + "\r":
			push("> ")
		case "hello world" + ctrlZ:
			push("+CMGS: 42\r\nOK\r\n")
		default:
			push("OK\r\n")
		}
	}
	ft := newSimTransport(handler)
	g := gsm.FromReadWriter(ft, gsm.WithTimeout(2*time.Second))
	defer g.Free()
	defer ft.wr.Close() // unblock the reader's pipe Read so Free can return

	require.NoError(t, g.Init())

	mr, err := g.SendSMS("+12345", "hello world")
	require.NoError(t, err)
	assert.Equal(t, "42", mr)
}

func TestGSMInitRejectsNonGSMModem(t *testing.T) {
	handler := func(cmd string, push func(string)) {
		switch cmd {
		case "\x1b\r\n\r\n":
		case "+GCAP\r":
			push("+GCAP: +FCLASS\r\nOK\r\n")
		default:
			push("OK\r\n")
		}
	}
	ft := newSimTransport(handler)
	g := gsm.FromReadWriter(ft, gsm.WithTimeout(2*time.Second))
	defer g.Free()
	defer ft.wr.Close() // unblock the reader's pipe Read so Free can return

	err := g.Init()
	assert.Equal(t, gsm.ErrNotGSMCapable, err)
}

func TestGSMSendSMSWrongMode(t *testing.T) {
	ft := newSimTransport(func(string, func(string)) {})
	g := gsm.FromReadWriter(ft, gsm.WithPDUMode())
	defer g.Free()

	_, err := g.SendSMS("+12345", "hello")
	assert.Equal(t, gsm.ErrWrongMode, err)
}

func TestGSMSendSMSCancelsOnDataPromptTimeout(t *testing.T) {
	// The modem never answers the CMGS header, so the data prompt wait
	// times out; smsCommand must then write the escape sequence that
	// cancels the modem's outstanding SMS operation.
	ft := newSimTransport(nil)
	g := gsm.FromReadWriter(ft, gsm.WithTimeout(200*time.Millisecond))
	g.Open()
	defer g.Free()
	defer ft.wr.Close() // unblock the reader's pipe Read so Free can return

	_, err := g.SendSMS("+12345", "hello world")
	assert.Equal(t, at.ErrTimeout, err)

	assert.Equal(t, `+CMGS="+12345"`+"\r", <-ft.written)
	assert.Equal(t, "\x1b\r\n", <-ft.written)
}

func TestGSMSendUSSD(t *testing.T) {
	replyText := "Your balance is $5"
	replyHex := strings.ToUpper(hex.EncodeToString(gsm7.Pack7BitUSSD([]byte(replyText), 0)))

	handler := func(cmd string, push func(string)) {
		switch {
		case strings.HasPrefix(cmd, "+CUSD=1,"):
			push("OK\r\n")
			go func() {
				time.Sleep(10 * time.Millisecond)
				push(fmt.Sprintf("+CUSD: 0,\"%s\",15\r\n", replyHex))
			}()
		default:
			push("OK\r\n")
		}
	}
	ft := newSimTransport(handler)
	ch := at.NewChannel(ft, at.WithTimeout(2*time.Second))
	ch.Open()
	defer ch.Free()
	defer ft.wr.Close() // unblock the reader's pipe Read so Free can return
	g := gsm.New(ch)

	resp, err := g.SendUSSD("*101#", 15)
	require.NoError(t, err)
	assert.Equal(t, replyText, resp)
}
