// Copyright 2026 The Black Magic Debug Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package gdbserver

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

func hexEncode(b []byte) []byte {
	out := make([]byte, hex.EncodedLen(len(b)))
	hex.Encode(out, b)
	return out
}

func hexDecode(s []byte) ([]byte, error) {
	out := make([]byte, hex.DecodedLen(len(s)))
	if _, err := hex.Decode(out, s); err != nil {
		return nil, fmt.Errorf("gdbserver: bad hex payload: %w", err)
	}
	return out, nil
}

// parseAddrLen parses an "addr,len" field as two hex integers.
func parseAddrLen(s string) (addr, length uint64, err error) {
	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("gdbserver: malformed addr,len %q", s)
	}
	addr, err = strconv.ParseUint(parts[0], 16, 64)
	if err != nil {
		return 0, 0, err
	}
	length, err = strconv.ParseUint(parts[1], 16, 64)
	if err != nil {
		return 0, 0, err
	}
	return addr, length, nil
}
