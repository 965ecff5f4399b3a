package at

import (
	"strings"

	"github.com/pkg/errors"
)

// CMEError indicates a CME Error was returned by the modem.
// The value is the error value, in string form, which may be the numeric
// or textual form, depending on the modem configuration.
type CMEError string

// CMSError indicates a CMS Error was returned by the modem.
// The value is the error value, in string form, which may be the numeric
// or textual form, depending on the modem configuration.
type CMSError string

func (e CMEError) Error() string {
	return "CME Error: " + string(e)
}

func (e CMSError) Error() string {
	return "CMS Error: " + string(e)
}

var (
	// ErrClosed indicates an operation cannot be performed because the
	// channel is not open.
	ErrClosed = errors.New("at: channel closed")

	// ErrTimeout indicates a command did not receive a final response
	// within the configured timeout.
	ErrTimeout = errors.New("at: command timeout")

	// ErrError indicates the modem returned a generic AT ERROR in
	// response to a command.
	ErrError = errors.New("at: ERROR")

	// ErrOverflow indicates a formatted command or hex payload did not
	// fit in the scratch buffer and so was not sent.
	ErrOverflow = errors.New("at: command buffer overflow")

	// ErrConfigTimeout indicates Config gave up waiting for the modem
	// to echo back the expected value within the allotted attempts.
	ErrConfigTimeout = errors.New("at: config confirmation timeout")

	// ErrConfigOverflow indicates the formatted AT+opt=val or AT+opt?
	// command did not fit the scratch buffer.
	ErrConfigOverflow = errors.New("at: config command overflow")
)

// classifyFinalError inspects the last line of a response delivered by the
// Parser and returns the error it represents, or nil if the response
// completed successfully (the Parser delivers both FINAL_OK and
// FINAL_ERROR responses through the same callback - see parser.go
// deliverResponse - so the dispatcher, not the parser, distinguishes them).
func classifyFinalError(response []byte) error {
	line := string(response)
	if i := strings.LastIndexByte(line, '\n'); i >= 0 {
		line = line[i+1:]
	}
	switch {
	case strings.HasPrefix(line, "+CME ERROR:"):
		return CMEError(strings.TrimSpace(line[len("+CME ERROR:"):]))
	case strings.HasPrefix(line, "+CMS ERROR:"):
		return CMSError(strings.TrimSpace(line[len("+CMS ERROR:"):]))
	case strings.HasPrefix(line, "ERROR"), strings.HasPrefix(line, "NO CARRIER"):
		return ErrError
	default:
		return nil
	}
}
