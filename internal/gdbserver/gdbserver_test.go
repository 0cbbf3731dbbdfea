// Copyright 2026 The Black Magic Debug Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package gdbserver

import (
	"net"
	"strings"
	"testing"
	"time"

	"periph.io/x/blackmagic/internal/flash"
	"periph.io/x/blackmagic/internal/target"
)

// fakeCore is a minimal target.Core double: memory is a byte map,
// registers are a flat slice, and Resume sets state to StateRunning,
// which HaltPoll reports until the test changes it (simulating
// free-run).
type fakeCore struct {
	mem    map[uint32]byte
	regs   []byte
	state  target.RunState
	halts  int
}

func newFakeCore() *fakeCore {
	return &fakeCore{mem: map[uint32]byte{}, regs: make([]byte, 17*4), state: target.StateHalted}
}

func (c *fakeCore) MemRead(addr uint32, b []byte) error {
	for i := range b {
		b[i] = c.mem[addr+uint32(i)]
	}
	return nil
}
func (c *fakeCore) MemWrite(addr uint32, b []byte) error {
	for i, v := range b {
		c.mem[addr+uint32(i)] = v
	}
	return nil
}
func (c *fakeCore) RegsRead() ([]byte, error) { return append([]byte{}, c.regs...), nil }
func (c *fakeCore) RegsWrite(b []byte) error  { copy(c.regs, b); return nil }
func (c *fakeCore) HaltPoll() (target.RunState, error) { return c.state, nil }
func (c *fakeCore) Halt() error                        { c.halts++; c.state = target.StateHalted; return nil }
func (c *fakeCore) Resume() error                      { c.state = target.StateRunning; return nil }
func (c *fakeCore) Step() error                        { c.state = target.StateHalted; return nil }
func (c *fakeCore) Reset() error                        { return nil }
func (c *fakeCore) BreakwatchSet(bw *target.Breakwatch) error   { return nil }
func (c *fakeCore) BreakwatchClear(bw *target.Breakwatch) error { return nil }
func (c *fakeCore) RegFileXML() []byte                          { return []byte("<target/>") }

var _ target.Core = (*fakeCore)(nil)

func newTestSession(t *testing.T) (*Session, net.Conn) {
	t.Helper()
	host, probe := net.Pipe()
	reg := &target.Registry{}
	reg.Add(&target.Target{DriverName: "fake", Core: newFakeCore()})
	s := NewSession(probe, reg)
	s.curTarget = 0
	return s, host
}

func TestEscapeUnescapeRoundTrip(t *testing.T) {
	in := []byte{'#', '$', '}', '*', 'x', 0x00, 0xFF}
	got := unescape(escape(in))
	if len(got) != len(in) {
		t.Fatalf("len(got)=%d want %d", len(got), len(in))
	}
	for i := range in {
		if got[i] != in[i] {
			t.Fatalf("byte %d: got %#x want %#x", i, got[i], in[i])
		}
	}
}

func TestChecksumMatchesHexDigits(t *testing.T) {
	payload := []byte("qSupported")
	sum := checksum(payload)
	got := hexByte(sum)
	want := []byte{"0123456789abcdef"[sum>>4], "0123456789abcdef"[sum&0xF]}
	if string(got) != string(want) {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestDispatchReadWriteMemRoundTrip(t *testing.T) {
	s, _ := newTestSession(t)
	if reply, fatal := s.dispatch([]byte("M20000000,4:aabbccdd")); fatal || string(reply) != "OK" {
		t.Fatalf("write mem: reply=%q fatal=%v", reply, fatal)
	}
	reply, fatal := s.dispatch([]byte("m20000000,4"))
	if fatal {
		t.Fatal("unexpected fatal")
	}
	if string(reply) != "aabbccdd" {
		t.Fatalf("got %q want aabbccdd", reply)
	}
}

func TestDispatchRegsRoundTrip(t *testing.T) {
	s, _ := newTestSession(t)
	data := "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f202122232425262728292a2b2c2d2e2f303132333435363738393a3b3c3d3e3f40414243"
	if reply, _ := s.dispatch([]byte("G" + data)); string(reply) != "OK" {
		t.Fatalf("G reply = %q", reply)
	}
	reply, _ := s.dispatch([]byte("g"))
	if string(reply) != data {
		t.Fatalf("g reply = %q want %q", reply, data)
	}
}

func TestDispatchQSupported(t *testing.T) {
	s, _ := newTestSession(t)
	reply, fatal := s.dispatch([]byte("qSupported:multiprocess+"))
	if fatal {
		t.Fatal("unexpected fatal")
	}
	if string(reply) != qSupportedReply {
		t.Fatalf("got %q", reply)
	}
}

func TestDispatchUnsupportedReturnsEmptyPacket(t *testing.T) {
	s, _ := newTestSession(t)
	reply, fatal := s.dispatch([]byte("vMustReplyEmpty"))
	if fatal {
		t.Fatal("unexpected fatal")
	}
	if len(reply) != 0 {
		t.Fatalf("expected empty reply, got %q", reply)
	}
}

func TestBreakwatchSetAndClear(t *testing.T) {
	s, _ := newTestSession(t)
	if reply, _ := s.dispatch([]byte("Z1,08000100,2")); string(reply) != "OK" {
		t.Fatalf("Z1 reply = %q", reply)
	}
	tgt := s.Registry.Get(0)
	if len(tgt.Breakwatches) != 1 {
		t.Fatalf("expected 1 breakwatch, got %d", len(tgt.Breakwatches))
	}
	if reply, _ := s.dispatch([]byte("z1,08000100,2")); string(reply) != "OK" {
		t.Fatalf("z1 reply = %q", reply)
	}
	if len(tgt.Breakwatches) != 0 {
		t.Fatalf("expected breakwatch removed, got %d left", len(tgt.Breakwatches))
	}
}

func TestRunAndWaitStopsOnCtrlC(t *testing.T) {
	s, host := newTestSession(t)
	go func() {
		time.Sleep(5 * time.Millisecond)
		_, _ = host.Write([]byte{ctrlC})
	}()
	reply, fatal := s.runAndWait(false)
	if fatal {
		t.Fatal("unexpected fatal")
	}
	if string(reply) != "T02thread:1;" {
		t.Fatalf("got %q, want T02thread:1;", reply)
	}
}

func TestRunAndWaitStepReturnsImmediately(t *testing.T) {
	s, _ := newTestSession(t)
	reply, fatal := s.runAndWait(true)
	if fatal {
		t.Fatal("unexpected fatal")
	}
	if string(reply) != "T05thread:1;" {
		t.Fatalf("got %q", reply)
	}
}

func TestMemoryMapXferServesFlashAndRAM(t *testing.T) {
	s, _ := newTestSession(t)
	tgt := s.Registry.Get(0)
	tgt.RAM = []target.Region{{Start: 0x20000000, Length: 0x5000}}
	tgt.Flash = []*flash.Region{{Start: 0x08000000, Length: 0x10000, BlockSize: 0x400}}

	reply, fatal := s.dispatch([]byte("qXfer:memory-map:read::0,fff"))
	if fatal {
		t.Fatal("unexpected fatal")
	}
	if reply[0] != 'l' {
		t.Fatalf("expected 'l' prefix for a single-chunk reply, got %q", reply[0])
	}
	body := string(reply[1:])
	if !strings.Contains(body, `start="0x8000000"`) || !strings.Contains(body, `blocksize`) {
		t.Fatalf("memory-map xml missing flash entry: %s", body)
	}
	if !strings.Contains(body, `type="ram"`) {
		t.Fatalf("memory-map xml missing ram entry: %s", body)
	}
}

func TestNoTargetRepliesE01(t *testing.T) {
	reg := &target.Registry{}
	_, probe := net.Pipe()
	s := NewSession(probe, reg)
	reply, fatal := s.dispatch([]byte("g"))
	if fatal {
		t.Fatal("unexpected fatal")
	}
	if string(reply) != "E01" {
		t.Fatalf("got %q want E01", reply)
	}
}
