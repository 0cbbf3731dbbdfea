// Copyright 2026 The Black Magic Debug Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package adiv5

import "errors"

// Errors returned by DP/AP register access. Every public method on
// DP and AP returns one of these (or nil), per spec.md's "error
// model": a FAULT is always followed by a CTRL/STAT cleanup before
// the engine returns control to the caller.
var (
	// ErrWait is returned when the target kept answering WAIT past
	// SWD_WAIT_TIMEOUT.
	ErrWait = errors.New("adiv5: WAIT timeout")
	// ErrFault is returned when the target answered FAULT; CTRL/STAT
	// has already been cleared by the time this is returned.
	ErrFault = errors.New("adiv5: bus fault")
	// ErrProtocol is returned on no response or a malformed ACK; the
	// caller should treat the DP as needing a line reset.
	ErrProtocol = errors.New("adiv5: protocol error")
)
