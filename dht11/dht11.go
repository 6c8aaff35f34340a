// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package dht11

import (
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/GermanBionicSystems/airnode/cyclecounter"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// MinInterval is the quiet time the sensor needs between two transactions.
const MinInterval = time.Second

// Reading is one decoded measurement. The sensor reports the integer and the
// tenth part of each quantity separately.
type Reading struct {
	Humidity       uint8 // %RH, 0..100
	HumidityDec    uint8
	Temperature    uint8 // °C, 0..85
	TemperatureDec uint8
}

// RelativeHumidity returns the humidity as a physic value.
func (r Reading) RelativeHumidity() physic.RelativeHumidity {
	return physic.RelativeHumidity(r.Humidity)*physic.PercentRH + physic.RelativeHumidity(r.HumidityDec)*physic.PercentRH/10
}

// Temp returns the temperature as a physic value.
func (r Reading) Temp() physic.Temperature {
	return physic.ZeroCelsius + physic.Temperature(r.Temperature)*physic.Celsius + physic.Temperature(r.TemperatureDec)*physic.Celsius/10
}

func (r Reading) String() string {
	return fmt.Sprintf("%d.%d%%RH %d.%d°C", r.Humidity, r.HumidityDec, r.Temperature, r.TemperatureDec)
}

// Dev is a handle to a DHT11 on one GPIO line.
type Dev struct {
	mu       sync.Mutex
	dec      decoder
	pinName  string
	shutdown chan struct{}
	wg       sync.WaitGroup
}

// New returns a Dev using p as the data line and t for the microsecond
// timing. It only records the pin; no signal is sent until Read.
func New(p gpio.PinIO, t *cyclecounter.Timer) (*Dev, error) {
	if p == nil {
		return nil, errors.New("dht11: pin is nil")
	}
	if t == nil {
		return nil, errors.New("dht11: timer is nil")
	}
	return &Dev{
		dec:     decoder{line: NewLine(p), timer: t},
		pinName: p.String(),
	}, nil
}

// Read runs one transaction and returns the decoded measurement. On failure
// the returned error is a *DecodeError, or the pin error if the line could not
// be driven.
//
// The caller must leave at least MinInterval between calls.
func (d *Dev) Read() (Reading, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	frame, err := d.critical()
	if err != nil {
		return Reading{}, err
	}
	return decode(frame)
}

// critical runs the transaction without letting the Go runtime move the
// goroutine or stop the world under it.
func (d *Dev) critical() ([frameLen]byte, error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	gcPercent := debug.SetGCPercent(-1)
	defer debug.SetGCPercent(gcPercent)
	return d.dec.transact()
}

// Sense implements physic.SenseEnv. The pressure is always 0.
func (d *Dev) Sense(e *physic.Env) error {
	e.Temperature = 0
	e.Pressure = 0
	e.Humidity = 0
	r, err := d.Read()
	if err != nil {
		return err
	}
	e.Temperature = r.Temp()
	e.Humidity = r.RelativeHumidity()
	return nil
}

// SenseContinuous implements physic.SenseEnv. Failed transactions are
// skipped. The interval must be at least MinInterval. Call Halt to stop.
func (d *Dev) SenseContinuous(interval time.Duration) (<-chan physic.Env, error) {
	if interval < MinInterval {
		return nil, fmt.Errorf("dht11: invalid interval %s, minimum %s", interval, MinInterval)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.shutdown != nil {
		return nil, errors.New("dht11: sense continuous already running")
	}

	d.shutdown = make(chan struct{})
	shutdown := d.shutdown
	ch := make(chan physic.Env, 16)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer close(ch)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-shutdown:
				return
			case <-ticker.C:
				e := physic.Env{}
				if err := d.Sense(&e); err == nil {
					select {
					case ch <- e:
					case <-shutdown:
						return
					}
				}
			}
		}
	}()
	return ch, nil
}

// Precision implements physic.SenseEnv.
func (d *Dev) Precision(e *physic.Env) {
	e.Temperature = physic.Celsius / 10
	e.Pressure = 0
	e.Humidity = physic.PercentRH / 10
}

// Halt implements conn.Resource. It stops a running SenseContinuous.
func (d *Dev) Halt() error {
	d.mu.Lock()
	shutdown := d.shutdown
	d.shutdown = nil
	d.mu.Unlock()
	if shutdown == nil {
		return nil
	}
	close(shutdown)
	d.wg.Wait()
	return nil
}

func (d *Dev) String() string {
	return "dht11{" + d.pinName + "}"
}

var _ conn.Resource = &Dev{}
var _ physic.SenseEnv = &Dev{}
