// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package host

import "periph.io/x/conn/v3/driver/driverreg"

// Init calls driverreg.Init() and returns it as-is.
//
// Call this before looking up any gpioreg-registered pin (e.g. a
// target-power switch): it is what runs internal/gpioline's chip
// enumeration and line registration.
func Init() (*driverreg.State, error) {
	return driverreg.Init()
}
