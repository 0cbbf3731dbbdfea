// Copyright 2026 The Black Magic Debug Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package gdbserver

import (
	"errors"

	"periph.io/x/blackmagic/internal/adiv5"
	"periph.io/x/blackmagic/internal/flash"
	"periph.io/x/blackmagic/internal/target"
	"periph.io/x/blackmagic/internal/wire"
)

// ErrNoTarget is returned by command handlers that need an attached
// target when none is attached, per spec.md §7's NoTarget kind.
var ErrNoTarget = errors.New("gdbserver: no target attached")

// ErrUnsupported marks a recognised but unimplemented packet, per
// spec.md §7's Unsupported kind, which replies with an empty packet.
var ErrUnsupported = errors.New("gdbserver: unsupported packet")

// replyFor maps an error from the command/target/adiv5 layers onto
// the RSP reply spec.md §7's error table specifies. A nil error has
// no reply of its own; callers build the success reply themselves.
func replyFor(err error) (payload []byte, fatal bool) {
	switch {
	case err == nil:
		return nil, false
	case errors.Is(err, ErrUnsupported):
		return []byte{}, false
	case errors.Is(err, ErrNoTarget):
		return []byte("E01"), false
	case errors.Is(err, adiv5.ErrWait):
		return []byte("E05"), false
	case errors.Is(err, adiv5.ErrFault):
		return []byte("E07"), false
	case errors.Is(err, flash.ErrFlashProtected):
		return []byte("E06"), false
	case errors.Is(err, target.ErrNoHwResource):
		return []byte("E28"), false
	case errors.Is(err, wire.ErrWireProtocol), errors.Is(err, adiv5.ErrProtocol):
		return []byte("X1D"), true
	default:
		return []byte("E00"), false
	}
}
