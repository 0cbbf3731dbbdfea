// Copyright 2026 The Black Magic Debug Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package probe

import (
	"testing"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"

	"periph.io/x/blackmagic/internal/wire/simbus"
)

// fakeJTAG scripts a fixed chain of IDCODEs for JTAGIDCodes.
type fakeJTAG struct {
	simbus.Bus
	chain []uint32
	idx   int
}

func (f *fakeJTAG) ShiftDR(out []byte, n int) ([]byte, error) {
	var v uint32
	if f.idx < len(f.chain) {
		v = f.chain[f.idx]
	}
	f.idx++
	b := make([]byte, len(out))
	for i := range b {
		b[i] = byte(v >> (8 * i))
	}
	return b, nil
}

type fakePin struct {
	level gpio.Level
}

func (p *fakePin) String() string     { return "fakePin" }
func (p *fakePin) Halt() error        { return nil }
func (p *fakePin) Name() string       { return "fakePin" }
func (p *fakePin) Number() int        { return 0 }
func (p *fakePin) Function() string   { return "" }
func (p *fakePin) Out(l gpio.Level) error {
	p.level = l
	return nil
}
func (p *fakePin) PWM(gpio.Duty, physic.Frequency) error { return nil }

func TestSetFrequencyForwardsToSWDBus(t *testing.T) {
	bus := simbus.New()
	p := New(bus, nil, nil)
	got, err := p.SetFrequency(1_000_000)
	if err != nil {
		t.Fatalf("SetFrequency: %v", err)
	}
	if got != physic.Frequency(1_000_000)*physic.Hertz {
		t.Fatalf("got %s", got)
	}
	if p.Frequency() != got {
		t.Fatalf("Frequency() = %s, want %s", p.Frequency(), got)
	}
}

func TestSetFrequencyNoTransport(t *testing.T) {
	p := New(nil, nil, nil)
	if _, err := p.SetFrequency(1000); err == nil {
		t.Fatal("expected error with no transport configured")
	}
}

func TestSetTargetPowerRequiresPin(t *testing.T) {
	p := New(nil, nil, nil)
	if err := p.SetTargetPower(true); err == nil {
		t.Fatal("expected error with no target-power pin")
	}

	pin := &fakePin{}
	p2 := New(nil, nil, pin)
	if err := p2.SetTargetPower(true); err != nil {
		t.Fatalf("SetTargetPower: %v", err)
	}
	if pin.level != gpio.High {
		t.Fatalf("pin level = %v, want High", pin.level)
	}
}

func TestJTAGIDCodesStopsAtAllOnes(t *testing.T) {
	jtag := &fakeJTAG{chain: []uint32{0x4BA00477, 0x16410041, 0xFFFFFFFF}}
	p := New(nil, jtag, nil)
	ids, err := p.JTAGIDCodes(8)
	if err != nil {
		t.Fatalf("JTAGIDCodes: %v", err)
	}
	if len(ids) != 2 || ids[0] != 0x4BA00477 || ids[1] != 0x16410041 {
		t.Fatalf("got %#v", ids)
	}
}

func TestJTAGIDCodesNoTransport(t *testing.T) {
	p := New(nil, nil, nil)
	if _, err := p.JTAGIDCodes(4); err != ErrNoJTAG {
		t.Fatalf("got %v, want ErrNoJTAG", err)
	}
}
