// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package cyclecounter

import (
	"errors"
	"time"

	"periph.io/x/conn/v3/physic"
)

// Counter is a free-running monotonic tick source that wraps at 2^32.
type Counter interface {
	// Ticks returns the current counter value.
	Ticks() uint32
	// Frequency returns the tick rate. It must be at least 1MHz.
	Frequency() physic.Frequency
}

// Instant is a tick snapshot returned by Timer.Start.
type Instant uint32

// Timer measures elapsed microseconds on a Counter.
type Timer struct {
	c     Counter
	f     physic.Frequency
	perUS uint32
}

// New returns a Timer reading c.
func New(c Counter) (*Timer, error) {
	f := c.Frequency()
	if f < physic.MegaHertz {
		return nil, errors.New("cyclecounter: counter frequency must be at least 1MHz")
	}
	return &Timer{c: c, f: f, perUS: uint32(f / physic.MegaHertz)}, nil
}

// Start returns a snapshot of the counter.
func (t *Timer) Start() Instant {
	return Instant(t.c.Ticks())
}

// ElapsedUS returns the microseconds elapsed since i.
//
// The subtraction is done modulo 2^32 so a counter wrap between i and now is
// harmless as long as the interval is shorter than one full counter period.
func (t *Timer) ElapsedUS(i Instant) uint32 {
	return (t.c.Ticks() - uint32(i)) / t.perUS
}

// DelayUS busy-waits for at least n microseconds.
func (t *Timer) DelayUS(n uint32) {
	s := t.Start()
	for t.ElapsedUS(s) < n {
	}
}

func (t *Timer) String() string {
	return "cyclecounter(" + t.f.String() + ")"
}

// Host returns a 1GHz Counter backed by the monotonic clock of the running
// process.
func Host() Counter {
	return &hostCounter{origin: time.Now()}
}

type hostCounter struct {
	origin time.Time
}

func (h *hostCounter) Ticks() uint32 {
	return uint32(time.Since(h.origin).Nanoseconds())
}

func (h *hostCounter) Frequency() physic.Frequency {
	return physic.GigaHertz
}

var _ Counter = &hostCounter{}
