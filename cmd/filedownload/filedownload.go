// SPDX-License-Identifier: MIT

// filedownload exercises the xfer package's RAWDATA/HEXDATA payload capture
// against a modem that supports the synthetic "^FDWL=<n>" command.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/atcore/modem/at"
	"github.com/atcore/modem/serial"
	"github.com/atcore/modem/trace"
	"github.com/atcore/modem/xfer"
)

func main() {
	dev := flag.String("d", "/dev/ttyUSB0", "path to modem device")
	baud := flag.Int("b", 115200, "baud rate")
	n := flag.Int("n", 64, "number of bytes to download")
	useHex := flag.Bool("x", false, "request hex-framed payload instead of raw")
	timeout := flag.Duration("t", 5*time.Second, "command timeout period")
	verbose := flag.Bool("v", false, "log modem interactions")
	flag.Parse()

	m, err := serial.New(serial.WithPort(*dev), serial.WithBaud(*baud))
	if err != nil {
		log.Fatal(err)
	}
	defer m.Close()
	var mio io.ReadWriter = m
	if *verbose {
		mio = trace.New(m)
	}
	ch := at.NewChannel(mio, at.WithTimeout(*timeout))
	defer ch.Free()
	ch.Open()
	if err := ch.Init(); err != nil {
		log.Fatal(err)
	}

	mode := xfer.Raw
	if *useHex {
		mode = xfer.Hex
	}
	payload, err := xfer.Download(ch, mode, *n)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(hex.Dump(payload))
}
