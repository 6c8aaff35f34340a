// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package dht11

import (
	"time"

	"github.com/GermanBionicSystems/airnode/common"
	"github.com/GermanBionicSystems/airnode/cyclecounter"
	"periph.io/x/conn/v3/gpio"
)

// Transaction timing. All durations without unit are in microseconds.
const (
	// startLow is how long the host holds the line low to wake the sensor.
	// The datasheet asks for at least 18ms.
	startLow = 20 * time.Millisecond
	// startHighUS is the host high hold before releasing the line, 20-40µs.
	startHighUS = 30
	// pollUS is the polling grain of every timed wait.
	pollUS = 1
	// phaseTimeoutUS bounds every timed wait. The longest documented phase is
	// the 80µs acknowledgement. The trailing high wait of a bit starts at the
	// bitSampleUS sample, so a bit's high phase is allowed
	// bitSampleUS+phaseTimeoutUS.
	phaseTimeoutUS = 100
	// bitSampleUS is the delay between the end of a bit's leading low phase
	// and the single sample deciding its value. A "0" is high for 26-28µs, a
	// "1" for 70µs.
	bitSampleUS = 40

	frameLen  = 5
	frameBits = frameLen * 8

	maxHumidity    = 100
	maxTemperature = 85
)

// decoder runs one single-wire transaction. It owns line for the duration of
// transact.
type decoder struct {
	line  *Line
	timer *cyclecounter.Timer
}

// transact runs the start handshake and receives one frame. The line is
// released on every exit path.
func (d *decoder) transact() ([frameLen]byte, error) {
	var frame [frameLen]byte
	defer d.line.Release()

	if err := d.start(); err != nil {
		return frame, err
	}

	// Acknowledgement: the sensor pulls low ~80µs, then high ~80µs.
	if !d.waitWhile(gpio.High) {
		return frame, &DecodeError{Kind: NoResponse}
	}
	if !d.waitWhile(gpio.Low) {
		return frame, &DecodeError{Kind: ResponseTimeout}
	}
	if !d.waitWhile(gpio.High) {
		return frame, &DecodeError{Kind: ResponseTimeout}
	}

	for i := 0; i < frameBits; i++ {
		if !d.waitWhile(gpio.Low) {
			return frame, &DecodeError{Kind: BitTimeout, Bit: i}
		}
		d.timer.DelayUS(bitSampleUS)
		frame[i/8] <<= 1
		if d.line.Read() == gpio.High {
			frame[i/8] |= 1
		}
		if !d.waitWhile(gpio.High) {
			return frame, &DecodeError{Kind: BitTimeout, Bit: i}
		}
	}
	return frame, nil
}

// start sends the start signal and hands the line over to the sensor.
func (d *decoder) start() error {
	if err := d.line.SetMode(ModeOutput); err != nil {
		return err
	}
	if err := d.line.Write(gpio.Low); err != nil {
		return err
	}
	sleep(startLow)
	if err := d.line.Write(gpio.High); err != nil {
		return err
	}
	d.timer.DelayUS(startHighUS)
	return d.line.SetMode(ModeInput)
}

// waitWhile polls until the line leaves level. It returns false if the level
// lasted more than phaseTimeoutUS.
func (d *decoder) waitWhile(level gpio.Level) bool {
	s := d.timer.Start()
	for d.line.Read() == level {
		if d.timer.ElapsedUS(s) > phaseTimeoutUS {
			return false
		}
		d.timer.DelayUS(pollUS)
	}
	return true
}

// decode validates a received frame.
func decode(frame [frameLen]byte) (Reading, error) {
	if common.Sum8(frame[:4]) != frame[4] {
		return Reading{}, &DecodeError{Kind: ChecksumError}
	}
	if frame[0] > maxHumidity || frame[2] > maxTemperature {
		return Reading{}, &DecodeError{Kind: RangeError}
	}
	return Reading{
		Humidity:       frame[0],
		HumidityDec:    frame[1],
		Temperature:    frame[2],
		TemperatureDec: frame[3],
	}, nil
}

var sleep = time.Sleep
