// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package gp2y1014au reads a Sharp GP2Y1014AU optical dust sensor.
//
// The sensor's infrared LED is pulsed for 320µs every 10ms; the analog output
// must be sampled 280µs into the pulse. One Sense averages several pulses and
// the result is smoothed over a moving window of the last senses.
//
// # Datasheet
//
// https://global.sharp/products/device/lineup/data/pdf/datasheet/gp2y1014au_e.pdf
package gp2y1014au

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GermanBionicSystems/airnode/cyclecounter"
	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// Pulse timing from the datasheet.
const (
	sampleDelayUS = 280
	pulseRestUS   = 40 // remainder of the 320µs pulse after sampling
	pulsePeriod   = 10 * time.Millisecond
	pulseWidth    = (sampleDelayUS + pulseRestUS) * time.Microsecond
)

// Density is a particle mass concentration in µg/m³.
type Density float64

func (d Density) String() string {
	return fmt.Sprintf("%.1fug/m^3", float64(d))
}

// Opts holds the configuration options for the device.
type Opts struct {
	// Samples is the number of LED pulses averaged by one Sense.
	Samples int
	// Window is the number of Sense results in the moving average.
	Window int
	// VRef is the ADC reference voltage.
	VRef physic.ElectricPotential
	// FullScale is the raw count corresponding to VRef.
	FullScale int32
	// LEDOn is the level turning the LED on. The module's LED input is
	// active low; boards with a driver transistor invert it.
	LEDOn gpio.Level
}

// DefaultOpts holds the default configuration options for the device.
var DefaultOpts = Opts{
	Samples:   10,
	Window:    5,
	VRef:      3300 * physic.MilliVolt,
	FullScale: 4096,
	LEDOn:     gpio.High,
}

// Dev is a handle to a GP2Y1014AU.
type Dev struct {
	led   gpio.PinOut
	adc   analog.PinADC
	timer *cyclecounter.Timer
	opts  Opts

	mu     sync.Mutex
	window []Density
	next   int
}

// New returns a Dev pulsing led and sampling adc. The LED is switched off.
// The Opts can be nil.
func New(led gpio.PinOut, adc analog.PinADC, t *cyclecounter.Timer, opts *Opts) (*Dev, error) {
	if led == nil || adc == nil || t == nil {
		return nil, errors.New("gp2y1014au: led, adc and timer are required")
	}
	if opts == nil {
		opts = &DefaultOpts
	}
	if opts.Samples <= 0 || opts.Window <= 0 || opts.FullScale <= 0 || opts.VRef <= 0 {
		return nil, errors.New("gp2y1014au: invalid options")
	}
	d := &Dev{led: led, adc: adc, timer: t, opts: *opts}
	if err := led.Out(!d.opts.LEDOn); err != nil {
		return nil, err
	}
	return d, nil
}

// Sense returns the smoothed dust density.
func (d *Dev) Sense() (Density, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var sum float64
	for i := 0; i < d.opts.Samples; i++ {
		if i != 0 {
			sleep(pulsePeriod - pulseWidth)
		}
		v, err := d.pulse()
		if err != nil {
			return 0, err
		}
		sum += v
	}
	density := Convert(sum / float64(d.opts.Samples))

	if len(d.window) < d.opts.Window {
		d.window = append(d.window, density)
	} else {
		d.window[d.next] = density
		d.next = (d.next + 1) % d.opts.Window
	}
	var total Density
	for _, w := range d.window {
		total += w
	}
	return total / Density(len(d.window)), nil
}

// pulse fires the LED once and returns the sampled output in volts.
func (d *Dev) pulse() (float64, error) {
	if err := d.led.Out(d.opts.LEDOn); err != nil {
		return 0, err
	}
	d.timer.DelayUS(sampleDelayUS)
	s, err := d.adc.Read()
	d.timer.DelayUS(pulseRestUS)
	if err2 := d.led.Out(!d.opts.LEDOn); err == nil {
		err = err2
	}
	if err != nil {
		return 0, err
	}
	return float64(s.Raw) * float64(d.opts.VRef) / float64(physic.Volt) / float64(d.opts.FullScale), nil
}

// Reset clears the moving average.
func (d *Dev) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.window = d.window[:0]
	d.next = 0
}

// Halt implements conn.Resource. It switches the LED off.
func (d *Dev) Halt() error {
	return d.led.Out(!d.opts.LEDOn)
}

func (d *Dev) String() string {
	return "gp2y1014au{" + d.adc.String() + "}"
}

// Convert returns the dust density for an output voltage. The output below
// the clean air offset reads as 0.
func Convert(volts float64) Density {
	if volts < 0.5 {
		return 0
	}
	if d := Density((0.17*volts - 0.1) * 1000); d > 0 {
		return d
	}
	return 0
}

var sleep = time.Sleep
