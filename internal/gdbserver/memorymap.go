// Copyright 2026 The Black Magic Debug Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package gdbserver

import (
	"fmt"
	"strings"

	"periph.io/x/blackmagic/internal/target"
)

// memoryMapXML builds the qXfer:memory-map:read document: one
// <memory type="ram"> per RAM region, one <memory type="flash">
// (with its blocksize property) per flash region, per spec.md §6.
func memoryMapXML(t *target.Target) []byte {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?>` + "\n")
	b.WriteString(`<!DOCTYPE memory-map SYSTEM "memory-map.dtd">` + "\n")
	b.WriteString("<memory-map>\n")
	for _, r := range t.RAM {
		fmt.Fprintf(&b, "  <memory type=\"ram\" start=\"0x%x\" length=\"0x%x\"/>\n", r.Start, r.Length)
	}
	for _, r := range t.Flash {
		fmt.Fprintf(&b, "  <memory type=\"flash\" start=\"0x%x\" length=\"0x%x\">\n", r.Start, r.Length)
		fmt.Fprintf(&b, "    <property name=\"blocksize\">0x%x</property>\n", r.BlockSize)
		b.WriteString("  </memory>\n")
	}
	b.WriteString("</memory-map>\n")
	return []byte(b.String())
}
