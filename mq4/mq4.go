// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package mq4 reads a Winsen MQ-4 methane sensor through an ADC.
//
// The sensor is a resistor whose value Rs drops with the gas concentration.
// It sits in a divider with the load resistor RL; the ADC measures the
// voltage across RL. The concentration is derived from Rs/R0, where R0 is the
// sensor resistance in clean air found by calibration.
//
// Calibration is non-blocking: call Calibrate repeatedly from the polling
// loop until State returns Done. With the default options it takes 50 samples
// 6s apart, 5 minutes total.
//
// # Datasheet
//
// https://www.sparkfun.com/datasheets/Sensors/Biometric/MQ-4.pdf
package mq4

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/physic"
)

// State is the calibration state.
type State int

const (
	Idle State = iota
	Running
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Running:
		return "Running"
	case Done:
		return "Done"
	default:
		return "State(?)"
	}
}

// Curve fit of the datasheet log-log characteristic:
// log10(ppm) = (log10(Rs/R0) - curveB) / curveA.
const (
	curveA = -0.65
	curveB = 0.74
)

// ErrNotCalibrated is returned by PPM before calibration completed.
var ErrNotCalibrated = errors.New("mq4: not calibrated")

// Opts holds the configuration options for the device.
type Opts struct {
	// VRef is the ADC reference voltage.
	VRef physic.ElectricPotential
	// MaxRaw is the raw value at VRef.
	MaxRaw int32
	// RL is the load resistor of the divider.
	RL physic.ElectricResistance
	// R0 is the clean air resistance used before calibration completes, or
	// forever if Calibrate is never called and SetR0 is used instead.
	R0 physic.ElectricResistance
	// Interval is the time between two calibration samples.
	Interval time.Duration
	// Samples is the number of calibration samples.
	Samples int
}

// DefaultOpts holds the default configuration options for the device.
var DefaultOpts = Opts{
	VRef:     3300 * physic.MilliVolt,
	MaxRaw:   4095,
	RL:       10 * physic.KiloOhm,
	R0:       10 * physic.KiloOhm,
	Interval: 6 * time.Second,
	Samples:  50,
}

// Dev is a handle to an MQ-4 on one ADC channel.
type Dev struct {
	adc  analog.PinADC
	opts Opts

	mu         sync.Mutex
	r0         float64 // ohms
	state      State
	lastSample time.Time
	count      int
	sum        float64
}

// New returns a Dev reading adc. The Opts can be nil.
func New(adc analog.PinADC, opts *Opts) (*Dev, error) {
	if adc == nil {
		return nil, errors.New("mq4: adc is nil")
	}
	if opts == nil {
		opts = &DefaultOpts
	}
	if opts.MaxRaw <= 0 || opts.VRef <= 0 || opts.RL <= 0 {
		return nil, errors.New("mq4: invalid ADC or divider options")
	}
	if opts.Samples <= 0 {
		return nil, errors.New("mq4: invalid sample count")
	}
	return &Dev{adc: adc, opts: *opts, r0: ohms(opts.R0)}, nil
}

// Calibrate advances the calibration by at most one sample. It must be
// called with the sensor in clean air. It is a no-op once Done.
func (d *Dev) Calibrate() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch d.state {
	case Idle:
		d.lastSample = now()
		d.count = 0
		d.sum = 0
		d.state = Running
	case Running:
		t := now()
		if t.Sub(d.lastSample) < d.opts.Interval {
			return nil
		}
		s, err := d.adc.Read()
		if err != nil {
			return fmt.Errorf("mq4: calibration sample: %w", err)
		}
		d.sum += float64(s.Raw)
		d.count++
		d.lastSample = t
		if d.count >= d.opts.Samples {
			vrl := d.volts(d.sum / float64(d.count))
			if vrl <= 0 {
				// Restart, the divider reads nothing.
				d.state = Idle
				return errors.New("mq4: calibration read 0V")
			}
			d.r0 = d.rs(vrl)
			d.state = Done
		}
	}
	return nil
}

// State returns the calibration state.
func (d *Dev) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// SampleCount returns the calibration samples taken so far.
func (d *Dev) SampleCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.count
}

// Total returns the number of samples a calibration takes.
func (d *Dev) Total() int {
	return d.opts.Samples
}

// Remaining returns the estimated time left until calibration is done.
func (d *Dev) Remaining() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return time.Duration(d.opts.Samples-d.count) * d.opts.Interval
}

// R0 returns the clean air resistance in use.
func (d *Dev) R0() physic.ElectricResistance {
	d.mu.Lock()
	defer d.mu.Unlock()
	return physic.ElectricResistance(d.r0 * float64(physic.Ohm))
}

// SetR0 installs a clean air resistance from a previous calibration and marks
// the device calibrated.
func (d *Dev) SetR0(r physic.ElectricResistance) error {
	if r <= 0 {
		return errors.New("mq4: invalid R0")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.r0 = ohms(r)
	d.state = Done
	return nil
}

// PPM returns the methane concentration. It fails with ErrNotCalibrated
// until calibration is done.
func (d *Dev) PPM() (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != Done {
		return 0, ErrNotCalibrated
	}
	s, err := d.adc.Read()
	if err != nil {
		return 0, err
	}
	vrl := d.volts(float64(s.Raw))
	if vrl <= 0 {
		return 0, errors.New("mq4: sensor reads 0V")
	}
	return math.Pow(10, (math.Log10(d.rs(vrl)/d.r0)-curveB)/curveA), nil
}

func (d *Dev) String() string {
	return "mq4{" + d.adc.String() + "}"
}

// Halt implements conn.Resource.
func (d *Dev) Halt() error {
	return nil
}

// volts converts a raw ADC value to volts.
func (d *Dev) volts(raw float64) float64 {
	return raw * toVolts(d.opts.VRef) / float64(d.opts.MaxRaw)
}

// rs returns the sensor resistance in ohms for a voltage vrl across RL.
func (d *Dev) rs(vrl float64) float64 {
	return (toVolts(d.opts.VRef) - vrl) * ohms(d.opts.RL) / vrl
}

func toVolts(v physic.ElectricPotential) float64 {
	return float64(v) / float64(physic.Volt)
}

func ohms(r physic.ElectricResistance) float64 {
	return float64(r) / float64(physic.Ohm)
}

var now = time.Now
