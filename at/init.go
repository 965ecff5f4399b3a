package at

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// Init initialises the modem by escaping any outstanding SMS operation and
// resetting it to factory defaults, leaving it in a known state. Call it
// once, after Open, before issuing any other command. Grounded on the
// teacher's at.AT.Init.
func (c *Channel) Init() error {
	if _, err := c.Send([]byte(string(rune(27)) + "\r\n\r\n")); err != nil {
		return errors.WithMessage(err, "at: write escape")
	}
	// allow time for any residual OK to propagate and be discarded as a URC.
	time.Sleep(100 * time.Millisecond)

	cmds := []string{
		"Z",       // reset to factory defaults
		"^CURC=0", // disable general indications ^XXXX
	}
	for _, cmd := range cmds {
		if _, err := c.Commandf("%s", cmd); err != nil {
			return errors.WithMessage(err, fmt.Sprintf("AT%s returned error", cmd))
		}
	}
	return nil
}
