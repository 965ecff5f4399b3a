package at

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// ErrIndicationExists indicates that AddIndication was called with a prefix
// that already has a handler registered.
var ErrIndicationExists = errors.New("at: indication already exists")

// indicationState tracks one registered multi-line URC group, and, while
// totalLines > len(buf), the lines already collected for it.
type indicationState struct {
	totalLines int
	ch         chan []string
	buf        []string
}

// indicationMux groups URCs into indications: named, multi-line groups,
// each beginning with a registered prefix and followed by a fixed number of
// trailing lines (e.g. GSM's "+CMT:" header plus its PDU line). Grounded on
// the teacher's at.go nLoop/AddIndication, generalized to run off Channel's
// onURC callback rather than its own goroutine/channel select loop.
//
// Unlike the teacher, lines are only ever offered to indicationMux after the
// Parser has already classified them as URCs (or they arrived while Idle) -
// an indication can't steal a line that belongs to an outstanding command's
// response.
type indicationMux struct {
	mu         sync.Mutex
	inds       map[string]*indicationState
	collecting *indicationState
	fallback   func(line []byte)
}

func newIndicationMux() *indicationMux {
	return &indicationMux{inds: make(map[string]*indicationState)}
}

// add registers a new indication, returning ErrIndicationExists if prefix is
// already registered.
func (m *indicationMux) add(prefix string, trailingLines int) (<-chan []string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.inds[prefix]; ok {
		return nil, ErrIndicationExists
	}
	st := &indicationState{totalLines: trailingLines + 1, ch: make(chan []string)}
	m.inds[prefix] = st
	return st.ch, nil
}

// cancel removes the indication registered for prefix, if any, closing its
// channel so callers ranging over it see it end.
func (m *indicationMux) cancel(prefix string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.inds[prefix]; ok {
		delete(m.inds, prefix)
		if m.collecting == st {
			m.collecting = nil
		}
		close(st.ch)
	}
}

// closeAll closes every registered indication's channel, used on teardown.
func (m *indicationMux) closeAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, st := range m.inds {
		delete(m.inds, k)
		close(st.ch)
	}
	m.collecting = nil
}

// offer feeds one URC line through the mux. If it completes or continues a
// multi-line indication, it is consumed; otherwise it falls through to
// fallback, if set.
func (m *indicationMux) offer(line []byte) {
	m.mu.Lock()
	if st := m.collecting; st != nil {
		st.buf = append(st.buf, string(line))
		if len(st.buf) >= st.totalLines {
			m.collecting = nil
			ch, buf := st.ch, st.buf
			st.buf = nil
			m.mu.Unlock()
			ch <- buf
			return
		}
		m.mu.Unlock()
		return
	}
	s := string(line)
	for prefix, st := range m.inds {
		if strings.HasPrefix(s, prefix) {
			st.buf = []string{s}
			if st.totalLines <= 1 {
				ch, buf := st.ch, st.buf
				st.buf = nil
				m.mu.Unlock()
				ch <- buf
				return
			}
			m.collecting = st
			m.mu.Unlock()
			return
		}
	}
	fallback := m.fallback
	m.mu.Unlock()
	if fallback != nil {
		fallback(line)
	}
}

// setFallback installs the handler invoked for URCs that don't belong to any
// registered indication.
func (m *indicationMux) setFallback(f func(line []byte)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = f
}

// AddIndication registers a handler for a multi-line URC group: prefix
// identifies the first line, and trailingLines further lines are collected
// with it before the group is delivered on the returned channel.
func (c *Channel) AddIndication(prefix string, trailingLines int) (<-chan []string, error) {
	return c.indications.add(prefix, trailingLines)
}

// CancelIndication removes the indication registered for prefix, if any.
func (c *Channel) CancelIndication(prefix string) {
	c.indications.cancel(prefix)
}
