// Copyright 2026 The Black Magic Debug Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package gdbserver

import (
	"strconv"
	"strings"

	"periph.io/x/blackmagic/internal/target"
)

// breakwatchKinds maps the Z/z packet's leading digit to
// target.BreakwatchKind, per spec.md §4.7's "Z0/1/2/3/4,addr,kind".
var breakwatchKinds = map[byte]target.BreakwatchKind{
	'0': target.BreakwatchSoftware,
	'1': target.BreakwatchHardware,
	'2': target.BreakwatchWatchWrite,
	'3': target.BreakwatchWatchRead,
	'4': target.BreakwatchWatchAccess,
}

func parseBreakwatch(args string) (*target.Breakwatch, error) {
	if len(args) < 2 {
		return nil, ErrUnsupported
	}
	kind, ok := breakwatchKinds[args[0]]
	if !ok {
		return nil, ErrUnsupported
	}
	rest := strings.TrimPrefix(args[1:], ",")
	parts := strings.SplitN(rest, ",", 2)
	if len(parts) != 2 {
		return nil, ErrUnsupported
	}
	addr, err := strconv.ParseUint(parts[0], 16, 32)
	if err != nil {
		return nil, ErrUnsupported
	}
	size, err := strconv.ParseUint(parts[1], 16, 32)
	if err != nil {
		return nil, ErrUnsupported
	}
	return &target.Breakwatch{Kind: kind, Addr: uint32(addr), Size: int(size)}, nil
}

func (s *Session) cmdBreakwatchSet(args string) ([]byte, bool) {
	t, err := s.current()
	if err != nil {
		return replyFor(err)
	}
	bw, err := parseBreakwatch(args)
	if err != nil {
		return replyFor(err)
	}
	if err := t.Core.BreakwatchSet(bw); err != nil {
		return replyFor(err)
	}
	t.Breakwatches = append(t.Breakwatches, bw)
	return []byte("OK"), false
}

func (s *Session) cmdBreakwatchClear(args string) ([]byte, bool) {
	t, err := s.current()
	if err != nil {
		return replyFor(err)
	}
	want, err := parseBreakwatch(args)
	if err != nil {
		return replyFor(err)
	}
	for i, bw := range t.Breakwatches {
		if bw.Kind == want.Kind && bw.Addr == want.Addr {
			if err := t.Core.BreakwatchClear(bw); err != nil {
				return replyFor(err)
			}
			t.Breakwatches = append(t.Breakwatches[:i], t.Breakwatches[i+1:]...)
			return []byte("OK"), false
		}
	}
	return []byte("OK"), false // clearing an already-absent breakwatch is not an error
}
