// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package sgp30 controls a Sensirion SGP30 CO2eq/TVOC gas sensor over I²C.
//
// After "iaq_init" the sensor must be polled with "measure_iaq" once a second
// for its dynamic baseline compensation, so NewI2C starts a background loop
// that lives as long as the context. For the first 15s the sensor reports
// 400ppm and 0ppb.
//
// Every 16 bit word of a response is followed by a CRC8; a frame with a bad
// CRC is rejected as a whole.
//
// # Datasheet
//
// https://sensirion.com/media/documents/984E0DD5/61644B8B/Sensirion_Gas_Sensors_Datasheet_SGP30.pdf
package sgp30

import (
	"context"
	"encoding/binary"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/GermanBionicSystems/airnode/common"
	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
)

const (
	initAirQuality       uint16 = 0x2003
	measureAirQuality    uint16 = 0x2008
	getFeatureSetVersion uint16 = 0x202f

	// I2CAddress is the fixed address of the sensor.
	I2CAddress uint16 = 0x58
)

// commandDuration maps the defined maximum measurement duration from the sensor
var commandDuration = map[uint16]time.Duration{
	initAirQuality:       time.Millisecond * 10,
	measureAirQuality:    time.Millisecond * 12,
	getFeatureSetVersion: time.Millisecond * 10,
}

// commandResponseLength maps the defined response length including the CRC
var commandResponseLength = map[uint16]int{
	measureAirQuality:    6,
	getFeatureSetVersion: 3,
}

// CO2 represents the current carbon dioxide equivalent value in ppm
type CO2 uint16

func (c CO2) String() string {
	return strconv.Itoa(int(c)) + "ppm"
}

// TVOC represents the current total volatile organic compounds value in ppb
type TVOC uint16

func (t TVOC) String() string {
	return strconv.Itoa(int(t)) + "ppb"
}

// Env represents measurements from an environmental sensor.
type Env struct {
	CO2  CO2
	TVOC TVOC
}

// Opts holds the configuration options for the device.
type Opts struct {
	// Interval between background measurements. The baseline compensation
	// requires 1s. 0 disables the background loop.
	Interval time.Duration
	// Logger receives background measurement failures. Defaults to the logrus
	// standard logger.
	Logger logrus.FieldLogger
}

// DefaultOpts holds the default configuration options for the device.
var DefaultOpts = Opts{
	Interval: time.Second,
}

// NewI2C returns an object that communicates over I2C to SGP30 environmental
// sensor. The background measurement loop stops when ctx is done. The Opts
// can be nil.
func NewI2C(b i2c.Bus, ctx context.Context, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	d := &Dev{
		d:    &i2c.Dev{Bus: b, Addr: I2CAddress},
		opts: *opts,
		env: Env{
			CO2:  400,
			TVOC: 0,
		},
	}
	if d.opts.Logger == nil {
		d.opts.Logger = logrus.StandardLogger()
	}
	if err := d.makeDev(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

// Dev is a handle to an initialized SGP30 device.
type Dev struct {
	d    conn.Conn
	opts Opts
	txMu sync.Mutex // serializes command/response pairs
	mu   sync.Mutex
	env  Env
	wg   sync.WaitGroup
}

// AirQuality returns the last successful measurement.
func (d *Dev) AirQuality() Env {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.env
}

// Sense runs one measurement and returns it. On failure the last good values
// are kept and returned by AirQuality.
func (d *Dev) Sense() (Env, error) {
	if err := d.measure(); err != nil {
		return Env{}, err
	}
	return d.AirQuality(), nil
}

// FeatureSet returns the product type and version word.
func (d *Dev) FeatureSet() (uint16, error) {
	buf := make([]byte, commandResponseLength[getFeatureSetVersion])
	if err := d.readCommand(getFeatureSetVersion, buf); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(buf), nil
}

// Wait blocks until the background loop has exited.
func (d *Dev) Wait() {
	d.wg.Wait()
}

func (d *Dev) String() string {
	return "sgp30"
}

func (d *Dev) makeDev(ctx context.Context) error {
	// Sending  a "sgp30_iaq_init" command starts the air quality measurement
	if err := d.writeCommand(initAirQuality); err != nil {
		return err
	}

	// After the "sgp30_iaq_init" command, a "sgp30_measure_iaq" command has to be sent in regular
	// intervals of 1s to ensure proper operation of the dynamic baseline compensation algorithm.
	if err := d.measure(); err != nil {
		d.opts.Logger.Warnf("sgp30: %v", err)
	}
	if d.opts.Interval <= 0 {
		return nil
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ticker := time.NewTicker(d.opts.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := d.measure(); err != nil {
					d.opts.Logger.Warnf("sgp30: %v", err)
				}
			}
		}
	}()

	return nil
}

func (d *Dev) measure() error {
	buf := make([]byte, commandResponseLength[measureAirQuality])
	if err := d.readCommand(measureAirQuality, buf); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.env.CO2 = CO2(binary.BigEndian.Uint16(buf[0:2]))
	d.env.TVOC = TVOC(binary.BigEndian.Uint16(buf[3:5]))

	return nil
}

// readCommand sends cmd, waits for its duration and reads the response into
// b, checking the CRC of every word.
func (d *Dev) readCommand(cmd uint16, b []byte) error {
	if len(b) != commandResponseLength[cmd] {
		return errors.New("sgp30: response length mismatch")
	}
	d.txMu.Lock()
	defer d.txMu.Unlock()

	regAddr := []byte{byte(cmd >> 8), byte(cmd & 0xFF)}
	if err := d.d.Tx(regAddr, nil); err != nil {
		return err
	}
	sleep(commandDuration[cmd])

	if err := d.d.Tx(nil, b); err != nil {
		return err
	}
	for i := 0; i+2 < len(b); i += 3 {
		if common.CRC8(b[i:i+2]) != b[i+2] {
			return &DataCorruptionError{Word: i / 3}
		}
	}
	return nil
}

func (d *Dev) writeCommand(cmd uint16) error {
	d.txMu.Lock()
	defer d.txMu.Unlock()
	regAddr := []byte{byte(cmd >> 8), byte(cmd & 0xFF)}
	if err := d.d.Tx(regAddr, nil); err != nil {
		return err
	}
	sleep(commandDuration[cmd])
	return nil
}

var sleep = time.Sleep
