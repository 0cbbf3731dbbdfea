// Copyright 2026 The Black Magic Debug Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package gdbserver

import (
	"fmt"
	"hash/crc32"
	"strconv"
	"strings"

	"periph.io/x/blackmagic/internal/flash"
	"periph.io/x/blackmagic/internal/target"
)

// qSupportedReply is spec.md §6's minimum required feature set.
const qSupportedReply = "PacketSize=4000;qXfer:features:read+;QStartNoAckMode+;vContSupported+;swbreak+;hwbreak+;qXfer:memory-map:read+"

// dispatch runs one command and returns its reply payload and
// whether the error was fatal (forcing a detach), per spec.md §4.7's
// command table and §7's error-kind mapping.
func (s *Session) dispatch(payload []byte) (reply []byte, fatal bool) {
	cmd := string(payload)

	switch {
	case cmd == "?":
		return s.stopReply(), false
	case cmd == "g":
		return s.cmdReadRegs()
	case strings.HasPrefix(cmd, "G"):
		return s.cmdWriteRegs(cmd[1:])
	case strings.HasPrefix(cmd, "m"):
		return s.cmdReadMem(cmd[1:])
	case strings.HasPrefix(cmd, "M"):
		return s.cmdWriteMem(cmd[1:])
	case strings.HasPrefix(cmd, "p"):
		return s.cmdReadReg(cmd[1:])
	case strings.HasPrefix(cmd, "P"):
		return s.cmdWriteReg(cmd[1:])
	case cmd == "c" || strings.HasPrefix(cmd, "c"):
		return s.runAndWait(false)
	case cmd == "s" || strings.HasPrefix(cmd, "s"):
		return s.runAndWait(true)
	case cmd == "vCont?":
		return []byte("vCont;c;C;s;S;t"), false
	case strings.HasPrefix(cmd, "vCont"):
		return s.cmdVCont(cmd)
	case strings.HasPrefix(cmd, "Z"):
		return s.cmdBreakwatchSet(cmd[1:])
	case strings.HasPrefix(cmd, "z"):
		return s.cmdBreakwatchClear(cmd[1:])
	case cmd == "qSupported" || strings.HasPrefix(cmd, "qSupported:"):
		return []byte(qSupportedReply), false
	case cmd == "QStartNoAckMode":
		s.framer.SetNoAck(true)
		return []byte("OK"), false
	case strings.HasPrefix(cmd, "qXfer:features:read:"):
		return s.cmdXferFeatures(cmd)
	case strings.HasPrefix(cmd, "qXfer:memory-map:read:"):
		return s.cmdXferMemoryMap(cmd)
	case cmd == "qAttached":
		return []byte("1"), false
	case cmd == "qfThreadInfo":
		return []byte(fmt.Sprintf("m%d", s.threadID)), false
	case cmd == "qsThreadInfo":
		return []byte("l"), false
	case cmd == "qC":
		return []byte(fmt.Sprintf("QC%d", s.threadID)), false
	case strings.HasPrefix(cmd, "qCRC:"):
		return s.cmdQCRC(cmd[len("qCRC:"):])
	case strings.HasPrefix(cmd, "vFlashErase:"):
		return s.cmdFlashErase(cmd[len("vFlashErase:"):])
	case strings.HasPrefix(cmd, "vFlashWrite:"):
		return s.cmdFlashWrite(cmd[len("vFlashWrite:"):])
	case cmd == "vFlashDone":
		return s.cmdFlashDone()
	case strings.HasPrefix(cmd, "vAttach"):
		return s.cmdAttach(cmd)
	case cmd == "D" || strings.HasPrefix(cmd, "D;"):
		s.detach()
		return []byte("OK"), false
	case cmd == "k":
		s.detach()
		return nil, false
	case strings.HasPrefix(cmd, "qRcmd,"):
		return s.cmdMonitor(cmd[len("qRcmd,"):])
	default:
		return replyFor(ErrUnsupported)
	}
}

func (s *Session) stopReply() []byte {
	t, err := s.current()
	if err != nil {
		return []byte("S00")
	}
	st, err := t.Core.HaltPoll()
	if err != nil {
		r, _ := replyFor(err)
		return r
	}
	if st == target.StateRunning {
		return nil
	}
	return []byte(fmt.Sprintf("T05thread:%d;", s.threadID))
}

func (s *Session) cmdReadRegs() ([]byte, bool) {
	t, err := s.current()
	if err != nil {
		return replyFor(err)
	}
	b, err := t.Core.RegsRead()
	if err != nil {
		return replyFor(err)
	}
	return hexEncode(b), false
}

func (s *Session) cmdWriteRegs(hexData string) ([]byte, bool) {
	t, err := s.current()
	if err != nil {
		return replyFor(err)
	}
	b, err := hexDecode([]byte(hexData))
	if err != nil {
		return replyFor(err)
	}
	if err := t.Core.RegsWrite(b); err != nil {
		return replyFor(err)
	}
	return []byte("OK"), false
}

func (s *Session) cmdReadMem(args string) ([]byte, bool) {
	t, err := s.current()
	if err != nil {
		return replyFor(err)
	}
	addr, length, err := parseAddrLen(args)
	if err != nil {
		return replyFor(ErrUnsupported)
	}
	buf := make([]byte, length)
	if err := t.Core.MemRead(uint32(addr), buf); err != nil {
		return replyFor(err)
	}
	return hexEncode(buf), false
}

func (s *Session) cmdWriteMem(args string) ([]byte, bool) {
	t, err := s.current()
	if err != nil {
		return replyFor(err)
	}
	parts := strings.SplitN(args, ":", 2)
	if len(parts) != 2 {
		return replyFor(ErrUnsupported)
	}
	addrStr := strings.SplitN(parts[0], ",", 2)[0]
	addr, err := strconv.ParseUint(addrStr, 16, 32)
	if err != nil {
		return replyFor(ErrUnsupported)
	}
	data, err := hexDecode([]byte(parts[1]))
	if err != nil {
		return replyFor(err)
	}
	if err := t.Core.MemWrite(uint32(addr), data); err != nil {
		return replyFor(err)
	}
	return []byte("OK"), false
}

func (s *Session) cmdReadReg(hexN string) ([]byte, bool) {
	t, err := s.current()
	if err != nil {
		return replyFor(err)
	}
	n, err := strconv.ParseUint(hexN, 16, 32)
	if err != nil {
		return replyFor(ErrUnsupported)
	}
	b, err := t.Core.RegsRead()
	if err != nil {
		return replyFor(err)
	}
	off := int(n) * 4
	if off+4 > len(b) {
		return replyFor(ErrUnsupported)
	}
	return hexEncode(b[off : off+4]), false
}

func (s *Session) cmdWriteReg(args string) ([]byte, bool) {
	t, err := s.current()
	if err != nil {
		return replyFor(err)
	}
	parts := strings.SplitN(args, "=", 2)
	if len(parts) != 2 {
		return replyFor(ErrUnsupported)
	}
	n, err := strconv.ParseUint(parts[0], 16, 32)
	if err != nil {
		return replyFor(ErrUnsupported)
	}
	val, err := hexDecode([]byte(parts[1]))
	if err != nil {
		return replyFor(err)
	}
	b, err := t.Core.RegsRead()
	if err != nil {
		return replyFor(err)
	}
	off := int(n) * 4
	if off+len(val) > len(b) {
		return replyFor(ErrUnsupported)
	}
	copy(b[off:], val)
	if err := t.Core.RegsWrite(b); err != nil {
		return replyFor(err)
	}
	return []byte("OK"), false
}

func (s *Session) cmdAttach(cmd string) ([]byte, bool) {
	if s.Registry.Len() == 0 {
		return replyFor(ErrNoTarget)
	}
	s.curTarget = 0
	if t := s.Registry.Get(0); t != nil {
		_ = t.Attach()
	}
	return []byte(fmt.Sprintf("T05thread:%d;", s.threadID)), false
}

func (s *Session) cmdMonitor(hexArgs string) ([]byte, bool) {
	if s.Monitor == nil {
		return replyFor(ErrUnsupported)
	}
	argBytes, err := hexDecode([]byte(hexArgs))
	if err != nil {
		return replyFor(err)
	}
	out, err := s.Monitor.Exec(string(argBytes))
	if err != nil {
		return replyFor(err)
	}
	if out == "" {
		return []byte("OK"), false
	}
	return hexEncode([]byte(out)), false
}

func (s *Session) cmdQCRC(args string) ([]byte, bool) {
	t, err := s.current()
	if err != nil {
		return replyFor(err)
	}
	addr, length, err := parseAddrLen(args)
	if err != nil {
		return replyFor(ErrUnsupported)
	}
	buf := make([]byte, length)
	if err := t.Core.MemRead(uint32(addr), buf); err != nil {
		return replyFor(err)
	}
	return []byte(fmt.Sprintf("C%08x", crc32.ChecksumIEEE(buf))), false
}

func (s *Session) findFlashRegion(addr uint32) *flash.Region {
	t, err := s.current()
	if err != nil {
		return nil
	}
	for _, r := range t.Flash {
		if r.Contains(addr) {
			return r
		}
	}
	return nil
}

func (s *Session) flashMap() *flash.Map {
	t, err := s.current()
	if err != nil {
		return flash.NewMap(nil)
	}
	return flash.NewMap(t.Flash)
}

func (s *Session) cmdFlashErase(args string) ([]byte, bool) {
	if _, err := s.current(); err != nil {
		return replyFor(err)
	}
	addr, length, err := parseAddrLen(args)
	if err != nil {
		return replyFor(ErrUnsupported)
	}
	if s.tx == nil {
		s.tx = flash.NewTransaction(s.flashMap())
	}
	if err := s.tx.Erase(uint32(addr), uint32(length)); err != nil {
		return replyFor(err)
	}
	return []byte("OK"), false
}

func (s *Session) cmdFlashWrite(args string) ([]byte, bool) {
	if _, err := s.current(); err != nil {
		return replyFor(err)
	}
	parts := strings.SplitN(args, ":", 2)
	if len(parts) != 2 {
		return replyFor(ErrUnsupported)
	}
	addr, err := strconv.ParseUint(parts[0], 16, 32)
	if err != nil {
		return replyFor(ErrUnsupported)
	}
	if s.tx == nil {
		return replyFor(ErrUnsupported) // vFlashWrite before vFlashErase is a protocol error
	}
	if err := s.tx.Write(uint32(addr), []byte(parts[1])); err != nil {
		return replyFor(err)
	}
	return []byte("OK"), false
}

func (s *Session) cmdFlashDone() ([]byte, bool) {
	if s.tx == nil {
		return []byte("OK"), false
	}
	err := s.tx.Done()
	s.tx = nil
	if err != nil {
		return replyFor(err)
	}
	return []byte("OK"), false
}

func (s *Session) cmdXferFeatures(cmd string) ([]byte, bool) {
	t, err := s.current()
	if err != nil {
		return replyFor(err)
	}
	return xferSlice(t.Core.RegFileXML(), cmd), false
}

func (s *Session) cmdXferMemoryMap(cmd string) ([]byte, bool) {
	t, err := s.current()
	if err != nil {
		return replyFor(err)
	}
	return xferSlice(memoryMapXML(t), cmd), false
}

// xferSlice serves the "offset,length" suffix of a qXfer:...:read:
// command against doc, prefixing 'm' (more data follows) or 'l'
// (last chunk), per the upstream RSP qXfer convention.
func xferSlice(doc []byte, cmd string) []byte {
	idx := strings.LastIndex(cmd, ":")
	if idx < 0 {
		return []byte("l")
	}
	offLen := cmd[idx+1:]
	parts := strings.SplitN(offLen, ",", 2)
	if len(parts) != 2 {
		return []byte("l")
	}
	off, err1 := strconv.ParseUint(parts[0], 16, 32)
	length, err2 := strconv.ParseUint(parts[1], 16, 32)
	if err1 != nil || err2 != nil || int(off) > len(doc) {
		return []byte("l")
	}
	end := int(off) + int(length)
	more := true
	if end >= len(doc) {
		end = len(doc)
		more = false
	}
	prefix := byte('m')
	if !more {
		prefix = 'l'
	}
	return append([]byte{prefix}, doc[off:end]...)
}
