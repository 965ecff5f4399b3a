package at

import "strings"

// Config retries "AT+opt=val" followed by "AT+opt?" up to attempts times,
// confirming that the modem's echoed value matches val.
//
// This redesigns the reference's at_config, which returns 0 both when the
// setting is confirmed and when attempts are exhausted without a match (see
// spec.md section 9's "Open Questions" and SPEC_FULL.md section 5): here,
// confirmed distinguishes the two outcomes. err is ErrConfigOverflow if
// either command does not fit the scratch buffer, or ErrConfigTimeout if
// attempts are exhausted without the modem returning err itself.
func (c *Channel) Config(opt, val string, attempts int) (confirmed bool, err error) {
	for i := 0; i < attempts; i++ {
		if _, err = c.Commandf("+%s=%s", opt, val); err != nil {
			if err == ErrOverflow {
				return false, ErrConfigOverflow
			}
			continue
		}
		resp, qerr := c.Commandf("+%s?", opt)
		if qerr != nil {
			if qerr == ErrOverflow {
				return false, ErrConfigOverflow
			}
			continue
		}
		if configMatches(resp, opt, val) {
			return true, nil
		}
	}
	return false, ErrConfigTimeout
}

// configMatches reports whether any line of resp is "+opt: val" (or
// "+opt:val"), the modem's echo of the queried setting.
func configMatches(resp []byte, opt, val string) bool {
	prefix := "+" + opt + ":"
	for _, line := range strings.Split(string(resp), "\n") {
		if !strings.HasPrefix(line, prefix) {
			continue
		}
		if strings.TrimSpace(strings.TrimPrefix(line, prefix)) == val {
			return true
		}
	}
	return false
}
