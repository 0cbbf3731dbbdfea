// Copyright 2026 The Black Magic Debug Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package gdbserver

import (
	"io"

	"periph.io/x/blackmagic/internal/flash"
	"periph.io/x/blackmagic/internal/target"
)

// Monitor executes one qRcmd "monitor" command, returning its
// human-readable output; internal/cli implements this.
type Monitor interface {
	Exec(args string) (output string, err error)
}

// Session is "one per probe" (spec.md §3): the current target, the
// current thread id, the running flag, and the ack/extended-remote
// mode flags that gate which replies are legal.
type Session struct {
	framer *Framer

	Registry *target.Registry
	Monitor  Monitor

	curTarget int // index into Registry, -1 if none attached
	threadID  int
	running   bool
	extended  bool

	tx *flash.Transaction
}

// NewSession wraps rw and the target registry into a fresh session
// with no target attached, per spec.md §3's Lifecycle.
func NewSession(rw io.ReadWriter, reg *target.Registry) *Session {
	return &Session{
		framer:    NewFramer(rw),
		Registry:  reg,
		curTarget: -1,
		threadID:  1,
	}
}

// current returns the attached target, or ErrNoTarget.
func (s *Session) current() (*target.Target, error) {
	if s.curTarget < 0 {
		return nil, ErrNoTarget
	}
	t := s.Registry.Get(s.curTarget)
	if t == nil {
		return nil, ErrNoTarget
	}
	return t, nil
}

// Serve runs the session's main loop: read one packet, dispatch it,
// write the reply, per spec.md §4.7's command/reply sequencing
// ("reply for command N fully precedes any byte of command N+1").
func (s *Session) Serve() error {
	for {
		payload, interrupted, err := s.framer.ReadPacket()
		if err != nil {
			return err
		}
		if interrupted {
			continue // Ctrl-C outside vCont is ignored, per spec.md §5.
		}
		reply, fatal := s.dispatch(payload)
		if err := s.framer.WritePacket(reply); err != nil {
			return err
		}
		if fatal {
			s.detach()
		}
	}
}

func (s *Session) detach() {
	if t, err := s.current(); err == nil {
		_ = t.Detach()
	}
	s.curTarget = -1
	s.tx = nil
}
