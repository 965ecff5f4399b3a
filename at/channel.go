// Package at provides a low level driver for AT modems: a byte-fed response
// parser (Parser) and a command dispatcher (Channel) that serializes
// commands against a single shared transport while demultiplexing
// unsolicited result codes (URCs) in the background.
package at

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// defaultBufSize is the size of the parser's response buffer when
// WithBufSize is not supplied.
const defaultBufSize = 4096

// cmdScratchSize is the size of the scratch buffer used by Commandf/Sendf/
// SendHex, including the trailing CR appended to Commandf.
const cmdScratchSize = 80

// defaultTimeout is the command wait cap used when WithTimeout is not
// supplied.
const defaultTimeout = 10 * time.Second

// Channel owns a Parser, a Transport, and the background reader goroutine
// that feeds the parser from the transport. It serializes outbound commands
// - only one may be in flight at a time - and delivers the accumulated
// response to the caller synchronously, or ErrTimeout/ErrClosed.
type Channel struct {
	transport Transport
	parser    *Parser

	mu        sync.Mutex
	cond      *sync.Cond
	running   bool
	open      bool
	suspended bool

	sigCh   chan struct{} // response-ready semaphore (capacity 1)
	respBuf []byte
	respErr error
	waiting bool

	timeout        time.Duration
	sessionScanner Scanner
	urc            func(line []byte)
	indications    *indicationMux

	cmdMu          sync.Mutex // serializes Command/Send callers
	cmdScanner     Scanner
	nextDataPrompt bool

	doneCh chan struct{}
}

// Option configures a Channel created by NewChannel.
type Option func(*Channel)

// WithTimeout sets the cap on how long Command waits for a final response.
func WithTimeout(d time.Duration) Option {
	return func(c *Channel) { c.timeout = d }
}

// WithBufSize sets the size of the parser's response buffer.
func WithBufSize(n int) Option {
	return func(c *Channel) {
		p, err := NewParser(Callbacks{
			HandleResponse: c.onResponse,
			HandleURC:      c.onURC,
		}, n)
		if err == nil {
			c.parser = p
		}
	}
}

// NewChannel constructs a Channel over transport and starts the background
// reader goroutine, which parks until Open is called.
func NewChannel(transport Transport, opts ...Option) *Channel {
	c := &Channel{
		transport:   transport,
		sigCh:       make(chan struct{}, 1),
		respBuf:     make([]byte, 0, defaultBufSize),
		timeout:     defaultTimeout,
		doneCh:      make(chan struct{}),
		running:     true,
		indications: newIndicationMux(),
	}
	c.cond = sync.NewCond(&c.mu)
	for _, opt := range opts {
		opt(c)
	}
	if c.parser == nil {
		p, _ := NewParser(Callbacks{
			HandleResponse: c.onResponse,
			HandleURC:      c.onURC,
		}, defaultBufSize)
		c.parser = p
	}
	go c.readerLoop()
	return c
}

// Open enables the transport's RX path (if it implements RxEnabler),
// enables the reader's transport access, and drains any stale signal.
func (c *Channel) Open() {
	if e, ok := c.transport.(RxEnabler); ok {
		e.SetRxEnable(true)
	}
	c.mu.Lock()
	c.open = true
	c.mu.Unlock()
	c.drainSignal()
	c.cond.Broadcast()
}

// Close disables the transport's RX path (if it implements RxEnabler) and
// the reader's transport access, then calls Deinit if the transport
// implements Deiniter. In-flight Command calls observe !open and return
// ErrClosed at their next timeout tick. Close never calls Close on the
// Transport itself, but a Deiniter may release the underlying connection
// in Deinit (BugstPort closes its port).
func (c *Channel) Close() {
	c.mu.Lock()
	c.open = false
	c.mu.Unlock()
	if e, ok := c.transport.(RxEnabler); ok {
		e.SetRxEnable(false)
	}
	if d, ok := c.transport.(Deiniter); ok {
		d.Deinit()
	}
	c.cond.Broadcast()
}

// Suspend pauses the reader goroutine without affecting open/closed state,
// to shed CPU while the modem is known to be powered off.
func (c *Channel) Suspend() {
	c.mu.Lock()
	c.suspended = true
	c.mu.Unlock()
	c.cond.Broadcast()
}

// Resume unpauses a previously Suspended reader goroutine.
func (c *Channel) Resume() {
	c.mu.Lock()
	c.suspended = false
	c.mu.Unlock()
	c.cond.Broadcast()
}

// Free tears the Channel down: stops the reader goroutine and releases its
// resources. The Channel cannot be reused afterwards.
//
// Free waits for the reader goroutine to exit. If the reader is currently
// blocked inside Transport.Read, Free blocks until that read returns - a
// known limitation shared with the reference (spec.md section 7), left to
// the transport (e.g. via a read deadline) rather than solved here.
func (c *Channel) Free() {
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
	c.cond.Broadcast()
	<-c.doneCh
	c.indications.closeAll()
}

// SetCallbacks installs the session-wide line classifier and URC handler.
func (c *Channel) SetCallbacks(scanLine Scanner, urc func(line []byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionScanner = scanLine
	c.urc = urc
	c.indications.setFallback(urc)
	c.parser.SetScanLine(scanLine)
}

// SetCommandScanner installs a one-shot, per-command line classifier,
// consumed by the next Command (Send does not use or clear it).
func (c *Channel) SetCommandScanner(scanner Scanner) {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()
	c.cmdScanner = scanner
}

// SetTimeout sets the cap on how long Command waits for a final response.
func (c *Channel) SetTimeout(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeout = d
}

// Timeout returns the current cap on how long Command waits for a final
// response.
func (c *Channel) Timeout() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timeout
}

// ExpectDataPrompt arms the next Command to expect the modem's "> " data
// prompt as its terminator instead of a CRLF-delimited line.
func (c *Channel) ExpectDataPrompt() {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()
	c.nextDataPrompt = true
}

// IsOpen reports whether the channel is currently open.
func (c *Channel) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// Command issues cmd (with no formatting or trailing CR added - see
// Commandf for that) to the modem and blocks for the final response.
// It returns ErrClosed if the channel is not open, ErrTimeout if no final
// response arrived within the configured timeout, or the modem's error
// (ErrError/CMEError/CMSError) if the command completed with an error
// status.
func (c *Channel) Command(cmd []byte) ([]byte, error) {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	if !c.IsOpen() {
		return nil, ErrClosed
	}

	scanner := c.cmdScanner
	dataPrompt := c.nextDataPrompt
	c.cmdScanner = nil
	c.nextDataPrompt = false

	c.mu.Lock()
	c.parser.AwaitResponse(dataPrompt, scanner)
	c.mu.Unlock()

	// Drain any stale signal left over from a previous command before
	// writing, so the wait below can't be satisfied by a leftover wakeup.
	// The reference takes the semaphore twice with a zero timeout before
	// waiting; preserved here as two non-blocking drains.
	c.drainSignal()
	c.drainSignal()

	if _, err := c.transport.Write(cmd); err != nil {
		c.mu.Lock()
		c.parser.Reset()
		c.mu.Unlock()
		return nil, errors.WithMessage(err, "at: write command")
	}

	c.mu.Lock()
	c.waiting = true
	timeout := c.timeout
	c.mu.Unlock()

	resp, err := c.awaitResponse(timeout)
	return resp, err
}

// awaitResponse loops in one-second ticks, as spec.md's dispatcher does,
// until the signal is taken, the channel is observed closed, or timeout
// elapses.
func (c *Channel) awaitResponse(timeout time.Duration) ([]byte, error) {
	deadline := time.Now().Add(timeout)
	tick := time.NewTicker(time.Second)
	defer tick.Stop()
	for {
		select {
		case <-c.sigCh:
			c.mu.Lock()
			resp, respErr, open := c.respBuf, c.respErr, c.open
			c.waiting = false
			c.mu.Unlock()
			if !open {
				return nil, ErrClosed
			}
			if respErr != nil && len(resp) == 0 {
				resp = nil
			}
			return resp, respErr
		case <-tick.C:
			if !c.IsOpen() {
				c.mu.Lock()
				c.waiting = false
				c.mu.Unlock()
				return nil, ErrClosed
			}
			if time.Now().After(deadline) {
				c.mu.Lock()
				c.waiting = false
				c.parser.Reset()
				c.mu.Unlock()
				return nil, ErrTimeout
			}
		}
	}
}

// drainSignal empties the signal channel without blocking, so that a
// previously delivered (and unconsumed) signal can't be mistaken for the
// next command's response.
func (c *Channel) drainSignal() {
	select {
	case <-c.sigCh:
	default:
	}
}

// Commandf formats into a bounded scratch buffer (cmdScratchSize bytes,
// matching spec.md section 6), appends a trailing CR, and issues the result
// via Command. It returns ErrOverflow without touching the transport if the
// formatted command (plus CR) would not fit.
func (c *Channel) Commandf(format string, args ...interface{}) ([]byte, error) {
	buf, err := formatScratch(format, args, 1)
	if err != nil {
		return nil, err
	}
	buf = append(buf, '\r')
	return c.Command(buf)
}

// Send writes cmd directly to the transport without engaging the parser or
// waiting for any response - a fire-and-forget write. Like Command, it
// serializes against other Command/Send callers so writes never interleave
// on the shared transport.
func (c *Channel) Send(cmd []byte) (bool, error) {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()
	if !c.IsOpen() {
		return false, ErrClosed
	}
	n, err := c.transport.Write(cmd)
	return n == len(cmd), err
}

// Sendf formats into the bounded scratch buffer and writes it via Send.
func (c *Channel) Sendf(format string, args ...interface{}) (bool, error) {
	buf, err := formatScratch(format, args, 0)
	if err != nil {
		return false, err
	}
	return c.Send(buf)
}

// SendHex encodes each byte of data as two uppercase ASCII hex characters,
// chunked through the bounded scratch buffer, and writes the result via
// Send.
func (c *Channel) SendHex(data []byte) (bool, error) {
	const hexDigits = "0123456789ABCDEF"
	chunk := make([]byte, 0, cmdScratchSize)
	for _, b := range data {
		if len(chunk)+2 > cmdScratchSize {
			if ok, err := c.Send(chunk); !ok || err != nil {
				return ok, err
			}
			chunk = chunk[:0]
		}
		chunk = append(chunk, hexDigits[b>>4], hexDigits[b&0x0f])
	}
	if len(chunk) == 0 {
		return true, nil
	}
	return c.Send(chunk)
}

// formatScratch formats format/args into a fresh buffer of at most
// cmdScratchSize-reserve bytes, returning ErrOverflow if the result would
// not fit.
func formatScratch(format string, args []interface{}, reserve int) ([]byte, error) {
	s := fmt.Sprintf(format, args...)
	if len(s)+reserve > cmdScratchSize {
		return nil, ErrOverflow
	}
	buf := make([]byte, 0, cmdScratchSize)
	buf = append(buf, s...)
	return buf, nil
}

// onResponse is the Parser's HandleResponse callback. It is only ever
// invoked from within a Feed call, which the reader goroutine always makes
// with c.mu already held (see readerLoop) - so onResponse must not attempt
// to reacquire c.mu itself, only mutate the fields directly.
func (c *Channel) onResponse(response []byte) {
	err := classifyFinalError(response)
	body := response
	if err != nil {
		// the error line is part of the Parser's response (spec.md
		// treats FINAL_OK and FINAL_ERROR identically); strip it here
		// so callers receive only the accumulated intermediate lines,
		// matching the teacher's info/err split.
		if i := bytes.LastIndexByte(response, '\n'); i >= 0 {
			body = response[:i]
		} else {
			body = nil
		}
	}
	c.respBuf = append(c.respBuf[:0], body...)
	c.respErr = err
	c.waiting = false
	select {
	case c.sigCh <- struct{}{}:
	default:
	}
}

// onURC forwards a line classified as a URC (or received while Idle) to the
// session URC handler, if one is installed. Like onResponse, it always runs
// with c.mu already held by the caller (readerLoop's Feed call), so it must
// not reacquire it. Per spec.md section 9 "URC reentrancy", the installed
// handler must not call Command/Send on this Channel - doing so would
// deadlock on c.mu as well as on the command serialization it requires.
//
// Dispatch runs inline on the reader goroutine, so a registered indication
// channel that is not drained by its consumer stalls URC (and command
// response) processing entirely, same as the teacher's nLoop.
func (c *Channel) onURC(line []byte) {
	c.indications.offer(line)
}

// readerLoop drives the parser from the transport. It parks (via cond)
// whenever the channel is not running, not open, or suspended, and
// otherwise performs one blocking single-byte read per iteration. Feed is
// always called with c.mu held, since the Parser is not safe for
// concurrent use and its callbacks (onResponse/onURC) touch Channel state
// directly rather than locking it themselves.
func (c *Channel) readerLoop() {
	defer close(c.doneCh)
	buf := make([]byte, 1)
	for {
		c.mu.Lock()
		for c.running && (!c.open || c.suspended) {
			c.cond.Wait()
		}
		running := c.running
		c.mu.Unlock()
		if !running {
			return
		}
		n, err := c.transport.Read(buf)
		if err != nil {
			// A broken transport is a known limitation left to the
			// caller (spec.md section 7): park until state changes
			// rather than spin.
			c.mu.Lock()
			if c.running && c.open && !c.suspended {
				c.cond.Wait()
			}
			c.mu.Unlock()
			continue
		}
		if n > 0 {
			c.mu.Lock()
			c.parser.Feed(buf[:n])
			c.mu.Unlock()
		}
	}
}
