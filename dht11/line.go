// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package dht11

import (
	"errors"

	"periph.io/x/conn/v3/gpio"
)

// Mode is the electrical mode of the data line.
type Mode int

const (
	// ModeOutput drives the line push-pull.
	ModeOutput Mode = iota
	// ModeInput floats the line with the internal pull-up enabled.
	ModeInput
)

// State is the ownership and drive state of the data line.
type State int

const (
	StateIdle State = iota
	StateDriveLow
	StateDriveHigh
	StateInput
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateDriveLow:
		return "DriveLow"
	case StateDriveHigh:
		return "DriveHigh"
	case StateInput:
		return "Input"
	default:
		return "State(?)"
	}
}

// Line is the single bidirectional data line of the sensor.
//
// It is not safe for concurrent use; Dev serializes transactions.
type Line struct {
	p     gpio.PinIO
	state State
}

// NewLine returns a Line on p. It does not touch the pin.
func NewLine(p gpio.PinIO) *Line {
	return &Line{p: p}
}

// SetMode switches the line between host drive and sensor drive. It may be
// called any number of times during a transaction.
//
// Switching to ModeOutput drives the idle (high) level unless the line is
// already driven low.
func (l *Line) SetMode(m Mode) error {
	switch m {
	case ModeOutput:
		level := gpio.High
		if l.state == StateDriveLow {
			level = gpio.Low
		}
		return l.out(level)
	case ModeInput:
		if err := l.p.In(gpio.PullUp, gpio.NoEdge); err != nil {
			return err
		}
		l.state = StateInput
		return nil
	default:
		return errors.New("dht11: invalid line mode")
	}
}

// Write drives level on the line. The line must be in ModeOutput.
func (l *Line) Write(level gpio.Level) error {
	if l.state != StateDriveLow && l.state != StateDriveHigh {
		return errors.New("dht11: write on line not in output mode")
	}
	return l.out(level)
}

// Read samples the line. The result is only meaningful in ModeInput.
func (l *Line) Read() gpio.Level {
	return l.p.Read()
}

// Release returns the line to the idle, unowned state. The pin is left as a
// pulled-up input so the bus rests high.
func (l *Line) Release() {
	l.state = StateIdle
}

// State returns the current state of the line.
func (l *Line) State() State {
	return l.state
}

func (l *Line) String() string {
	return l.p.String()
}

func (l *Line) out(level gpio.Level) error {
	if err := l.p.Out(level); err != nil {
		return err
	}
	if level == gpio.Low {
		l.state = StateDriveLow
	} else {
		l.state = StateDriveHigh
	}
	return nil
}
