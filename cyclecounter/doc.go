// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package cyclecounter provides microsecond timing on top of a free-running
// tick counter, such as the Cortex-M DWT CYCCNT register or the host's
// monotonic clock.
//
// Delays are hard busy-waits. They never yield to the scheduler and are meant
// for the short, timing-critical stretches of bit-banged protocols.
package cyclecounter
