// SPDX-License-Identifier: MIT
//
// Copyright © 2018 Kent Gibson <warthog618@gmail.com>.

package gsm

import (
	"fmt"
	"strings"

	"github.com/atcore/modem/at"
	"github.com/atcore/modem/info"
	"github.com/warthog618/sms/encoding/pdumode"
)

// ctrlZ terminates the SMS body sent after the modem's data prompt.
const ctrlZ = "\x1a"

// SendSMS sends a text-mode SMS message to number. The message reference is
// returned on success.
func (g *GSM) SendSMS(number string, message string) (string, error) {
	if g.pduMode {
		return "", ErrWrongMode
	}
	resp, err := g.smsCommand(fmt.Sprintf(`+CMGS="%s"`, number), message)
	if err != nil {
		return "", err
	}
	return parseCMGS(resp)
}

// SendSMSPDU sends a binary TPDU as a PDU mode SMS. The message reference is
// returned on success.
func (g *GSM) SendSMSPDU(tpdu []byte) (string, error) {
	if !g.pduMode {
		return "", ErrWrongMode
	}
	pdu := pdumode.PDU{SMSC: g.sca, TPDU: tpdu}
	s, err := pdu.MarshalHexString()
	if err != nil {
		return "", err
	}
	resp, err := g.smsCommand(fmt.Sprintf("+CMGS=%d", len(tpdu)), s)
	if err != nil {
		return "", err
	}
	return parseCMGS(resp)
}

// smsCommand issues the two-step SMS submission protocol: a header command
// that the modem answers with its "> " data prompt instead of a final
// response, followed by the message body terminated with Ctrl-Z, which the
// modem then answers with the real final response. Grounded on the
// teacher's AT.SMSCommand.
//
// Unlike a single Command, which serializes against other callers,
// smsCommand spans two Commands and must not be called concurrently with
// another Command/Send/smsCommand on the same GSM - ExpectDataPrompt only
// arms the very next Command, so an interleaved caller could steal the data
// prompt.
//
// If either step times out, the modem may be left waiting indefinitely for
// an SMS body it will never receive (the header timed out) or sitting in
// whatever state followed a body it never got a final response for; either
// way smsCommand cancels it with the same escape byte the teacher's
// processReq writes on ctx.Done(), so the next command isn't submitted into
// a modem still expecting SMS input.
func (g *GSM) smsCommand(header, body string) ([]byte, error) {
	g.ExpectDataPrompt()
	if _, err := g.Commandf("%s", header); err != nil {
		if err == at.ErrTimeout {
			g.cancelSMS()
		}
		return nil, err
	}
	resp, err := g.Command([]byte(body + ctrlZ))
	if err == at.ErrTimeout {
		g.cancelSMS()
	}
	return resp, err
}

// cancelSMS writes the escape sequence that cancels an outstanding SMS data
// prompt, matching the teacher's processReq cancellation write.
func (g *GSM) cancelSMS() {
	g.Send([]byte(string(rune(27)) + "\r\n"))
}

// parseCMGS extracts the message reference from a "+CMGS: <mr>" response
// line, ignoring any other lines.
func parseCMGS(resp []byte) (string, error) {
	for _, l := range strings.Split(string(resp), "\n") {
		if info.HasPrefix(l, "+CMGS") {
			return info.TrimPrefix(l, "+CMGS"), nil
		}
	}
	return "", ErrMalformedResponse
}
