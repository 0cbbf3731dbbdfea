// Copyright 2026 The Black Magic Debug Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package gdbserver

import (
	"strconv"
	"strings"
	"time"

	"periph.io/x/blackmagic/internal/target"
)

// haltPollInterval and interruptLatency are spec.md §5's named
// constants: "(a) polls the target halt status at a modest cadence
// (≤10 ms)" and "≤ 20 ms latency" for the Ctrl-C preemption.
const (
	haltPollInterval = 10 * time.Millisecond
	interruptLatency = 20 * time.Millisecond
)

func (s *Session) cmdVCont(cmd string) (reply []byte, fatal bool) {
	action := strings.TrimPrefix(cmd, "vCont;")
	switch {
	// C and S carry a signal number, which is ignored.
	case strings.HasPrefix(action, "c"), strings.HasPrefix(action, "C"):
		return s.runAndWait(false)
	case strings.HasPrefix(action, "s"), strings.HasPrefix(action, "S"):
		return s.runAndWait(true)
	case strings.HasPrefix(action, "t"):
		t, err := s.current()
		if err != nil {
			return replyFor(err)
		}
		if err := t.Core.Halt(); err != nil {
			return replyFor(err)
		}
		return []byte("OK"), false
	default:
		return replyFor(ErrUnsupported)
	}
}

// runAndWait implements spec.md §4.7's continue/step semantics: for
// a step, single-step and report immediately; for a continue, resume
// and enter the wait loop that alternates a halt-status poll with an
// interrupt-byte poll until either the target halts on its own or the
// host sends Ctrl-C, per spec.md §5's cancellation contract.
func (s *Session) runAndWait(step bool) (reply []byte, fatal bool) {
	t, err := s.current()
	if err != nil {
		return replyFor(err)
	}
	if step {
		if err := t.Core.Step(); err != nil {
			return replyFor(err)
		}
		s.running = false
		return []byte(statusReply(s.threadID, 5)), false
	}

	if err := t.Core.Resume(); err != nil {
		return replyFor(err)
	}
	s.running = true
	for {
		interrupted, err := s.framer.PollInterrupt(haltPollInterval)
		if err != nil {
			return replyFor(err)
		}
		if interrupted {
			// Exactly one T<sig> reply is guaranteed here regardless of
			// how far through the loop the Ctrl-C arrived, per spec.md
			// §8's testable property.
			if err := t.Core.Halt(); err != nil {
				s.running = false
				return replyFor(err)
			}
			s.running = false
			return []byte(statusReply(s.threadID, 2)), false
		}
		st, err := t.Core.HaltPoll()
		if err != nil {
			s.running = false
			return replyFor(err)
		}
		if st != target.StateRunning {
			s.running = false
			return []byte(statusReply(s.threadID, 5)), false
		}
	}
}

func statusReply(threadID, sig int) string {
	const hex = "0123456789abcdef"
	return "T" + string([]byte{hex[sig>>4], hex[sig&0xF]}) + "thread:" + strconv.Itoa(threadID) + ";"
}
