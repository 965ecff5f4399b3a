// SPDX-License-Identifier: MIT
//
// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.

package gsm

import (
	"encoding/hex"
	"strings"
	"time"

	"github.com/atcore/modem/at"
	"github.com/atcore/modem/info"
	"github.com/warthog618/sms/encoding/gsm7"
)

// SendUSSD sends a USSD string (e.g. "*101#") at the given GSM 03.38 DCS,
// and waits for the modem's "+CUSD:" indication, decoding its payload back
// to text. Grounded on cmd/ussd's use of AT.AddIndication.
func (g *GSM) SendUSSD(msg string, dcs int) (string, error) {
	ind, err := g.AddIndication("+CUSD:", 0)
	if err != nil {
		return "", err
	}
	defer g.CancelIndication("+CUSD:")

	hmsg := strings.ToUpper(hex.EncodeToString(gsm7.Pack7BitUSSD([]byte(msg), 0)))
	if _, err := g.Commandf(`+CUSD=1,"%s",%d`, hmsg, dcs); err != nil {
		return "", err
	}

	select {
	case lines, ok := <-ind:
		if !ok || len(lines) == 0 {
			return "", ErrMalformedResponse
		}
		return decodeCUSD(lines[0])
	case <-time.After(g.Timeout()):
		return "", at.ErrTimeout
	}
}

func decodeCUSD(line string) (string, error) {
	fields := strings.Split(info.TrimPrefix(line, "+CUSD"), ",")
	if len(fields) < 2 {
		return "", ErrMalformedResponse
	}
	rspb, err := hex.DecodeString(strings.Trim(fields[1], `"`))
	if err != nil {
		return "", ErrMalformedResponse
	}
	return string(gsm7.Unpack7BitUSSD(rspb, 0)), nil
}
