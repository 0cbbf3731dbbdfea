// Copyright 2026 The Black Magic Debug Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Command blackmagic runs the GDB remote-serial-protocol server over
// a Black Magic Debug-compatible SWD/JTAG probe: an FTDI MPSSE
// adapter or a Linux GPIO-chip header, selected by flag.
package main

import (
	"flag"
	"fmt"
	"log"
	"net"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/d2xx"

	host "periph.io/x/blackmagic"
	"periph.io/x/blackmagic/internal/cli"
	"periph.io/x/blackmagic/internal/gdbserver"
	"periph.io/x/blackmagic/internal/gpioline"
	"periph.io/x/blackmagic/internal/probe"
	"periph.io/x/blackmagic/internal/wire"
	"periph.io/x/blackmagic/internal/wire/ftdiprobe"
	"periph.io/x/blackmagic/internal/wire/gpioprobe"

	// Target probe recognizers register themselves into internal/probereg's
	// dispatch table from their own init(); importing main without one of
	// these leaves swdp_scan/jtag_scan unable to recognize any core.
	_ "periph.io/x/blackmagic/internal/cortexmgeneric"
	_ "periph.io/x/blackmagic/internal/riscv"
)

func main() {
	addr := flag.String("addr", "localhost:2022", "address to serve GDB remote-serial-protocol connections on")
	backend := flag.String("backend", "ftdi", "wire transport: \"ftdi\" or \"gpio\"")
	gpioChip := flag.String("gpio-chip", "", "gpio backend: GPIO chip name, e.g. gpiochip0")
	swclk := flag.String("swclk", "SWCLK", "gpio backend: SWCLK line name")
	swdio := flag.String("swdio", "SWDIO", "gpio backend: SWDIO line name")
	tck := flag.String("tck", "TCK", "gpio backend: TCK line name (JTAG)")
	tdi := flag.String("tdi", "TDI", "gpio backend: TDI line name (JTAG)")
	tdo := flag.String("tdo", "TDO", "gpio backend: TDO line name (JTAG)")
	tms := flag.String("tms", "TMS", "gpio backend: TMS line name (JTAG)")
	tpwrPin := flag.String("tpwr-pin", "", "gpio line name driving target VCC, empty if not controllable")
	flag.Parse()

	if _, err := host.Init(); err != nil {
		log.Fatalf("host.Init: %v", err)
	}

	swd, jtag, err := openTransport(*backend, *gpioChip, *swclk, *swdio, *tck, *tdi, *tdo, *tms)
	if err != nil {
		log.Fatalf("openTransport: %v", err)
	}

	var tpwr gpio.PinOut
	if *tpwrPin != "" {
		p := gpioreg.ByName(*tpwrPin)
		if p == nil {
			log.Fatalf("gpioreg: no such pin %q", *tpwrPin)
		}
		tpwr = p
	}

	p := probe.New(swd, jtag, tpwr)
	monitor := cli.New(p)

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	log.Printf("blackmagic: serving GDB remote-serial-protocol on %s", ln.Addr())

	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Printf("accept: %v", err)
			continue
		}
		go serve(conn, p, monitor)
	}
}

// serve runs one GDB session to completion, per spec.md §3's
// "one Session per probe" lifecycle: a new TCP connection is a new
// attach, and the session ends cleanly when the client disconnects.
func serve(conn net.Conn, p *probe.Probe, monitor *cli.Monitor) {
	defer conn.Close()
	s := gdbserver.NewSession(conn, p.Registry)
	s.Monitor = monitor
	if err := s.Serve(); err != nil {
		log.Printf("session %s: %v", conn.RemoteAddr(), err)
	}
}

func openTransport(backend, chipName, swclk, swdio, tck, tdi, tdo, tms string) (wire.SWDBus, wire.JTAGBus, error) {
	switch backend {
	case "ftdi":
		devices := d2xx.All()
		if len(devices) == 0 {
			return nil, nil, fmt.Errorf("ftdi: no FTDI devices found")
		}
		h, err := devices[0].Open()
		if err != nil {
			return nil, nil, fmt.Errorf("ftdi: open %s: %w", devices[0], err)
		}
		pr, err := ftdiprobe.Open(h)
		if err != nil {
			return nil, nil, fmt.Errorf("ftdi: %w", err)
		}
		return pr, pr, nil

	case "gpio":
		var chip *gpioline.GPIOChip
		for _, c := range gpioline.Chips {
			if c.Name() == chipName {
				chip = c
				break
			}
		}
		if chip == nil {
			return nil, nil, fmt.Errorf("gpio: no such chip %q", chipName)
		}
		swdProbe, err := gpioprobe.OpenSWD(chip, swclk, swdio)
		if err != nil {
			return nil, nil, fmt.Errorf("gpio: %w", err)
		}
		jtagProbe, err := gpioprobe.OpenJTAG(chip, tck, tdi, tdo, tms)
		if err != nil {
			return nil, nil, fmt.Errorf("gpio: %w", err)
		}
		return swdProbe, jtagProbe, nil

	default:
		return nil, nil, fmt.Errorf("unknown backend %q", backend)
	}
}
