// SPDX-License-Identifier: MIT
//
// Copyright © 2018 Kent Gibson <warthog618@gmail.com>.

// waitsms waits for SMSs to be received by the modem, and dumps them to
// stdout.
//
// This provides an example of using indications, as well as a test that the
// library works with the modem.
//
// The modem device provided must support nofications, or no SMSs will be seen.
// (the notification port is typically USB2, hence the default)
package main

import (
	"flag"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/warthog618/sms"
	"github.com/warthog618/sms/encoding/pdumode"
	"github.com/warthog618/sms/encoding/tpdu"

	"github.com/atcore/modem/gsm"
	"github.com/atcore/modem/serial"
	"github.com/atcore/modem/trace"
)

func main() {
	dev := flag.String("d", "/dev/ttyUSB2", "path to modem device")
	baud := flag.Int("b", 115200, "baud rate")
	period := flag.Duration("p", 10*time.Minute, "period to wait")
	timeout := flag.Duration("t", 400*time.Millisecond, "command timeout period")
	verbose := flag.Bool("v", false, "log modem interactions")
	hex := flag.Bool("x", false, "hex dump modem responses")
	flag.Parse()
	m, err := serial.New(serial.WithPort(*dev), serial.WithBaud(*baud))
	if err != nil {
		log.Println(err)
		return
	}
	defer m.Close()
	var mio io.ReadWriter = m
	if *hex {
		mio = trace.New(m, trace.WithReadFormat("r: %v"))
	} else if *verbose {
		mio = trace.New(m)
	}
	g := gsm.FromReadWriter(mio, gsm.WithPDUMode(), gsm.WithTimeout(*timeout))
	defer g.Free()
	if err = g.Init(); err != nil {
		log.Println(err)
		return
	}
	done := make(chan struct{})
	go pollSignalQuality(g, done)
	waitForSMSs(g, *period, done)
	close(done)
}

// pollSignalQuality polls the modem to read signal quality every minute.
//
// This is run in parallel to waitForSMSs to demonstrate separate goroutines
// interacting with the modem.
func pollSignalQuality(g *gsm.GSM, done <-chan struct{}) {
	for {
		select {
		case <-time.After(time.Minute):
			resp, err := g.Commandf("+CSQ")
			if err != nil {
				log.Println(err)
			} else {
				log.Printf("Signal quality: %v\n", string(resp))
			}
		case <-done:
			return
		}
	}
}

// waitForSMSs adds an indication to the modem and prints any received SMSs.
//
// It will continue to wait until period elapses.
// It reassembles multi-part SMSs into a complete message prior to display.
func waitForSMSs(g *gsm.GSM, period time.Duration, done <-chan struct{}) {
	cmt, err := g.AddIndication("+CMT:", 1)
	if err != nil {
		log.Println(err)
		return
	}
	defer g.CancelIndication("+CMT:")
	// tell the modem to forward SMSs to us.
	if _, err = g.Commandf("+CNMI=1,2,2,1,0"); err != nil {
		log.Println(err)
		return
	}
	reassemblyTimeout := func(tpdus []*tpdu.TPDU) {
		log.Printf("reassembly timeout: %v", tpdus)
	}
	c := sms.NewCollector(sms.WithReassemblyTimeout(time.Hour, reassemblyTimeout))
	defer c.Close()
	deadline := time.After(period)
	for {
		select {
		case <-deadline:
			log.Println("exiting...")
			return
		case <-done:
			return
		case i, ok := <-cmt:
			if !ok {
				log.Fatal("modem closed, exiting...")
			}
			if i == nil {
				log.Println("received nil info")
				continue
			}
			if _, err := g.Commandf("+CNMA"); err != nil {
				log.Printf("err: %v\n", err)
			}
			lstr := strings.Split(i[0], ",")
			l, err := strconv.Atoi(lstr[len(lstr)-1])
			if err != nil {
				log.Printf("err: %v\n", err)
				continue
			}
			pdu, err := pdumode.UnmarshalHexString(i[1])
			if err != nil {
				log.Printf("err: %v\n", err)
				continue
			}
			if int(l) != len(pdu.TPDU) {
				log.Printf("length mismatch - expected %d, got %d", l, len(pdu.TPDU))
				continue
			}
			tp := tpdu.TPDU{}
			err = tp.UnmarshalBinary(pdu.TPDU)
			if err != nil {
				log.Printf("err: %v\n", err)
				continue
			}
			tpdus, err := c.Collect(tp)
			if err != nil {
				log.Printf("err: %v\n", err)
				continue
			}
			m, err := sms.Decode(tpdus)
			if err != nil {
				log.Printf("err: %v\n", err)
			}
			if m != nil {
				log.Printf("%s: %s\n", tpdus[0].OA.Number(), m)
			}
		}
	}
}
