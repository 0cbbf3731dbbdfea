// Copyright 2026 The Black Magic Debug Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package flash

import "fmt"

// Factory builds the flash Map for one recognized part, given its
// owning core's memory accessor. Vendor Flash driver packages
// implement this and self-register, the same
// `driverreg.MustRegister`-shaped contract `internal/probereg` gives
// core probe recognizers.
type Factory func(mem MemAccessor) (*Map, error)

// MemAccessor is the minimal read/write capability a vendor Flash
// driver needs to talk to its own controller registers.
type MemAccessor interface {
	MemRead(addr uint32, b []byte) error
	MemWrite(addr uint32, b []byte) error
}

type driverEntry struct {
	Name     string
	Designer uint16
	Part     uint16
	Build    Factory
}

var drivers []driverEntry

// RegisterDriver adds a vendor Flash driver factory to the registry,
// keyed by the same designer/part pair internal/probereg dispatches
// core recognizers on.
func RegisterDriver(name string, designer, part uint16, build Factory) {
	for _, d := range drivers {
		if d.Name == name {
			panic(fmt.Sprintf("flash: %q already registered", name))
		}
	}
	drivers = append(drivers, driverEntry{Name: name, Designer: designer, Part: part, Build: build})
}

// BuildMap returns the flash Map a registered driver produces for
// designer/part, or nil if none matches.
func BuildMap(designer, part uint16, mem MemAccessor) (*Map, error) {
	for _, d := range drivers {
		if d.Designer == designer && d.Part == part {
			return d.Build(mem)
		}
	}
	return nil, nil
}

func resetDrivers() { drivers = nil }
