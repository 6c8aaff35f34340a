// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package dht11test is meant to be used to test drivers talking to a DHT11
// without the hardware.
//
// Sim is a gpio.PinIO that replays the levels a sensor would drive after the
// host releases the line, on a virtual Clock that doubles as the
// cyclecounter.Counter of the driver under test.
package dht11test

import (
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/physic"
)

// Clock is a virtual 1GHz counter. Every Ticks call advances it by Step, so
// busy-waits on it terminate.
type Clock struct {
	mu   sync.Mutex
	now  time.Duration
	Step time.Duration
}

// Ticks implements cyclecounter.Counter.
func (c *Clock) Ticks() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := uint32(c.now)
	c.now += c.Step
	return v
}

// Frequency implements cyclecounter.Counter.
func (c *Clock) Frequency() physic.Frequency {
	return physic.GigaHertz
}

// Now returns the virtual time.
func (c *Clock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the virtual time forward by d. It can replace time.Sleep.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += d
}

// Pulse is a level held by the sensor for D.
type Pulse struct {
	L gpio.Level
	D time.Duration
}

// Timing holds the durations of the sensor driven phases.
type Timing struct {
	ResponseDelay time.Duration // high, between release and acknowledgement
	ResponseLow   time.Duration
	ResponseHigh  time.Duration
	BitLow        time.Duration // leading low of every bit
	ZeroHigh      time.Duration
	OneHigh       time.Duration
}

// DefaultTiming is the nominal datasheet timing.
var DefaultTiming = Timing{
	ResponseDelay: 20 * time.Microsecond,
	ResponseLow:   80 * time.Microsecond,
	ResponseHigh:  80 * time.Microsecond,
	BitLow:        50 * time.Microsecond,
	ZeroHigh:      27 * time.Microsecond,
	OneHigh:       70 * time.Microsecond,
}

// Indexes of the acknowledgement phases in the slice returned by Pulses.
const (
	PulseResponseDelay = 0
	PulseResponseLow   = 1
	PulseResponseHigh  = 2
)

// BitLow returns the index in Pulses of the leading low phase of bit i.
func BitLow(i int) int {
	return 3 + 2*i
}

// BitHigh returns the index in Pulses of the high phase of bit i.
func BitHigh(i int) int {
	return 4 + 2*i
}

// Frame returns a 5 byte frame with a valid checksum.
func Frame(humidity, humidityDec, temperature, temperatureDec byte) [5]byte {
	return [5]byte{humidity, humidityDec, temperature, temperatureDec, humidity + humidityDec + temperature + temperatureDec}
}

// Pulses returns the levels a sensor drives to send frame, bits MSB first,
// followed by the end of frame low. After the last pulse the line is released
// and reads high.
func Pulses(frame [5]byte, t Timing) []Pulse {
	p := make([]Pulse, 0, 3+2*40+1)
	p = append(p,
		Pulse{gpio.High, t.ResponseDelay},
		Pulse{gpio.Low, t.ResponseLow},
		Pulse{gpio.High, t.ResponseHigh})
	for _, b := range frame {
		for i := 7; i >= 0; i-- {
			h := t.ZeroHigh
			if b&(1<<uint(i)) != 0 {
				h = t.OneHigh
			}
			p = append(p, Pulse{gpio.Low, t.BitLow}, Pulse{gpio.High, h})
		}
	}
	return append(p, Pulse{gpio.Low, t.BitLow})
}

// Edge is a host side change of the line.
type Edge struct {
	At     time.Duration
	Output bool
	L      gpio.Level
}

// Sim simulates a DHT11 on a GPIO pin.
//
// Load arms a trace; it starts playing when the host switches the pin to
// input. An unarmed released line reads high through the pull-up.
type Sim struct {
	gpiotest.Pin
	Clock *Clock
	// ReadCost is added to the clock on every Read.
	ReadCost time.Duration

	mu      sync.Mutex
	output  bool
	armed   []Pulse
	playing []Pulse
	origin  time.Duration
	edges   []Edge
}

// NewSim returns a Sim with its own Clock.
func NewSim(name string) *Sim {
	return &Sim{
		Pin:      gpiotest.Pin{N: name, L: gpio.High},
		Clock:    &Clock{Step: 50 * time.Nanosecond},
		ReadCost: 100 * time.Nanosecond,
	}
}

// Load arms p for the next transaction.
func (s *Sim) Load(p []Pulse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armed = append([]Pulse(nil), p...)
}

// LoadFrame arms a nominal transaction sending frame.
func (s *Sim) LoadFrame(frame [5]byte) {
	s.Load(Pulses(frame, DefaultTiming))
}

// Out implements gpio.PinOut.
func (s *Sim) Out(l gpio.Level) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.output = true
	s.playing = nil
	s.Pin.L = l
	s.edges = append(s.edges, Edge{At: s.Clock.Now(), Output: true, L: l})
	return nil
}

// In implements gpio.PinIn.
func (s *Sim) In(pull gpio.Pull, edge gpio.Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.output = false
	s.Pin.P = pull
	s.origin = s.Clock.Now()
	s.playing = s.armed
	s.armed = nil
	s.edges = append(s.edges, Edge{At: s.origin})
	return nil
}

// Read implements gpio.PinIn.
func (s *Sim) Read() gpio.Level {
	s.Clock.Advance(s.ReadCost)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.output {
		return s.Pin.L
	}
	t := s.Clock.Now() - s.origin
	for _, p := range s.playing {
		if t < p.D {
			return p.L
		}
		t -= p.D
	}
	return s.Pin.P != gpio.PullDown
}

// Edges returns the host side line changes recorded so far.
func (s *Sim) Edges() []Edge {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Edge(nil), s.edges...)
}

// StartLow returns how long the host held the line low in the last start
// signal, or 0 if there was none.
func (s *Sim) StartLow() time.Duration {
	e := s.Edges()
	for i := len(e) - 1; i > 0; i-- {
		if e[i-1].Output && e[i-1].L == gpio.Low {
			return e[i].At - e[i-1].At
		}
	}
	return 0
}

var _ gpio.PinIO = &Sim{}
