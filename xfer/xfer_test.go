// SPDX-License-Identifier: MIT

package xfer_test

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atcore/modem/at"
	"github.com/atcore/modem/xfer"
)

type fakeTransport struct {
	rd *io.PipeReader
	wr *io.PipeWriter
}

func newFakeTransport() *fakeTransport {
	r, w := io.Pipe()
	return &fakeTransport{rd: r, wr: w}
}

func (f *fakeTransport) Read(p []byte) (int, error)  { return f.rd.Read(p) }
func (f *fakeTransport) Write(p []byte) (int, error) { return len(p), nil }
func (f *fakeTransport) push(s string)               { go f.wr.Write([]byte(s)) }

func TestDownloadRaw(t *testing.T) {
	ft := newFakeTransport()
	ch := at.NewChannel(ft, at.WithTimeout(time.Second))
	ch.Open()
	defer ch.Free()
	defer ft.wr.Close() // unblock the reader's pipe Read so Free can return

	ft.push("^FDWL: 4\r\n\x00\x01\xff\rOK\r\n")

	payload, err := xfer.Download(ch, xfer.Raw, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x01, 0xff, '\r'}, payload)
}

func TestDownloadHex(t *testing.T) {
	ft := newFakeTransport()
	ch := at.NewChannel(ft, at.WithTimeout(time.Second))
	ch.Open()
	defer ch.Free()
	defer ft.wr.Close() // unblock the reader's pipe Read so Free can return

	ft.push("^FDWL: 3\r\n00FF7A\r\nOK\r\n")

	payload, err := xfer.Download(ch, xfer.Hex, 3)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0xff, 0x7a}, payload)
}

func TestDownloadError(t *testing.T) {
	ft := newFakeTransport()
	ch := at.NewChannel(ft, at.WithTimeout(time.Second))
	ch.Open()
	defer ch.Free()
	defer ft.wr.Close() // unblock the reader's pipe Read so Free can return

	ft.push("ERROR\r\n")

	_, err := xfer.Download(ch, xfer.Raw, 4)
	assert.Error(t, err)
}
