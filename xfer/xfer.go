// Package xfer demonstrates the parser's RAWDATA/HEXDATA payload capture
// states via a synthetic file-download command, "^FDWL=<n>": no command in
// the GSM/3GPP set uses those sub-states, but vendor USB/LTE modems use
// this style of framing for firmware and file transfer (e.g. Quectel's
// QFUPL/QFDWL).
package xfer

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/atcore/modem/at"
)

// Mode selects how the modem is expected to frame the payload following the
// "^FDWL: <n>" header.
type Mode int

const (
	// Raw expects n raw bytes.
	Raw Mode = iota

	// Hex expects n bytes encoded as 2*n ASCII hex characters.
	Hex
)

// ErrMalformedHeader indicates the modem's "^FDWL: <n>" header, or the
// payload following it, did not match the declared length.
var ErrMalformedHeader = errors.New("xfer: malformed ^FDWL response")

const header = "^FDWL: "

// headerMatch records what the scanner saw when it recognized the "^FDWL:
// <n>" header line, so Download can locate the payload that immediately
// follows it in the delivered response without re-scanning for the digits
// itself - the response buffer has no separator between the header and the
// raw/hex payload bytes (see parser.go's RAWDATA/HEXDATA capture), so a
// digit-scan over the buffer would misparse a payload whose first byte is
// itself an ASCII digit in Raw mode.
type headerMatch struct {
	found     bool
	headerLen int
	declared  int
}

// scanner recognizes the "^FDWL: <n>" header line and classifies it as a
// RAWDATA or HEXDATA payload of the declared length, per mode, recording
// the match in m.
func scanner(mode Mode, m *headerMatch) at.Scanner {
	return func(line string) at.Class {
		if !strings.HasPrefix(line, header) {
			return at.Class{}
		}
		n, err := strconv.Atoi(strings.TrimPrefix(line, header))
		if err != nil {
			return at.Class{}
		}
		m.found = true
		m.headerLen = len(line)
		m.declared = n
		if mode == Hex {
			return at.HexData(n)
		}
		return at.RawData(n)
	}
}

// Download issues "^FDWL=<n>" and returns the n bytes of payload the modem
// sends back framed by mode. The parser decodes RAWDATA and HEXDATA
// payloads into the same representation, so the returned bytes are always
// the raw decoded content regardless of mode.
func Download(ch *at.Channel, mode Mode, n int) ([]byte, error) {
	var m headerMatch
	ch.SetCommandScanner(scanner(mode, &m))
	resp, err := ch.Commandf("^FDWL=%d", n)
	if err != nil {
		return nil, err
	}
	if !m.found || m.declared != n || len(resp) < m.headerLen+m.declared {
		return nil, ErrMalformedHeader
	}
	return resp[m.headerLen : m.headerLen+m.declared], nil
}
