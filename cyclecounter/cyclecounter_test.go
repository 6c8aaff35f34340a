// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package cyclecounter

import (
	"testing"

	"periph.io/x/conn/v3/physic"
)

// stepCounter advances by step on every read.
type stepCounter struct {
	now  uint32
	step uint32
	f    physic.Frequency
}

func (s *stepCounter) Ticks() uint32 {
	v := s.now
	s.now += s.step
	return v
}

func (s *stepCounter) Frequency() physic.Frequency {
	return s.f
}

func TestNew_fail_frequency(t *testing.T) {
	if tm, err := New(&stepCounter{f: 999 * physic.KiloHertz}); tm != nil || err == nil {
		t.Fatal("expected error for sub-MHz counter")
	}
}

func TestElapsedUS(t *testing.T) {
	c := &stepCounter{f: 72 * physic.MegaHertz}
	tm, err := New(c)
	if err != nil {
		t.Fatal(err)
	}
	s := tm.Start()
	c.now += 72 * 250
	if got := tm.ElapsedUS(s); got != 250 {
		t.Fatalf("ElapsedUS() = %d, want 250", got)
	}
}

func TestElapsedUS_wrap(t *testing.T) {
	c := &stepCounter{now: 0xFFFFFF00, f: physic.GigaHertz}
	tm, err := New(c)
	if err != nil {
		t.Fatal(err)
	}
	s := tm.Start()
	// Crosses 2^32 during the interval.
	c.now = 0xFFFFFF00
	c.now += 5000
	if got := tm.ElapsedUS(s); got != 5 {
		t.Fatalf("ElapsedUS() = %d, want 5", got)
	}
}

func TestDelayUS(t *testing.T) {
	c := &stepCounter{now: 0xFFFF0000, step: 100, f: physic.GigaHertz}
	tm, err := New(c)
	if err != nil {
		t.Fatal(err)
	}
	start := c.now
	tm.DelayUS(40)
	if d := c.now - start; d < 40000 || d > 40200 {
		t.Fatalf("DelayUS(40) consumed %dns", d)
	}
}

func TestDelayUS_zero(t *testing.T) {
	c := &stepCounter{step: 1, f: physic.MegaHertz}
	tm, err := New(c)
	if err != nil {
		t.Fatal(err)
	}
	tm.DelayUS(0)
	if c.now != 2 {
		t.Fatalf("DelayUS(0) read the counter %d times", c.now)
	}
}

func TestHost(t *testing.T) {
	tm, err := New(Host())
	if err != nil {
		t.Fatal(err)
	}
	s := tm.Start()
	tm.DelayUS(50)
	if e := tm.ElapsedUS(s); e < 50 {
		t.Fatalf("ElapsedUS() = %d after DelayUS(50)", e)
	}
}
