// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package airnode is a container for the drivers and the services of an air
// quality node.
//
// The node reads a DHT11 climate sensor over its single-wire protocol, an
// SGP30 gas sensor over I²C, an MQ-4 methane sensor and a GP2Y1014AU dust
// sensor on ADC channels, and reports the measurements on a serial line, to
// redis and to the console. See cmd/airnode for the binary.
package airnode
