// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package report formats the node's measurements into the line protocol read
// by the air-detection web server, and delivers them to sinks.
//
// A success line looks like:
//
//	Humidity: 45.0%, Temperature: 23.0 C, Methane: 1.8 PPM, TVOC: 12 PPB, CO2eq: 400 PPM, Dust(PM2.5): 35.2 ug/m^3\r\n
//
// A failed humidity/temperature read is reported with ErrorLine instead.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/GermanBionicSystems/airnode/dht11"
	"github.com/GermanBionicSystems/airnode/gp2y1014au"
	"github.com/GermanBionicSystems/airnode/sgp30"
)

// ErrorLine is sent instead of a Record when the climate read fails.
const ErrorLine = "DHT11 Read Error!\r\n"

// Uncalibrated is the Methane value of a Record while the gas sensor is not
// calibrated.
const Uncalibrated = -1.0

// Record is one report.
type Record struct {
	Time    time.Time
	Climate dht11.Reading
	Methane float64 // ppm
	TVOC    sgp30.TVOC
	CO2     sgp30.CO2
	Dust    gp2y1014au.Density
}

// Line returns the wire line for r, including the trailing CRLF.
func (r Record) Line() string {
	return fmt.Sprintf("Humidity: %d.%d%%, Temperature: %d.%d C, Methane: %.1f PPM, TVOC: %d PPB, CO2eq: %d PPM, Dust(PM2.5): %.1f ug/m^3\r\n",
		r.Climate.Humidity, r.Climate.HumidityDec,
		r.Climate.Temperature, r.Climate.TemperatureDec,
		r.Methane, r.TVOC, r.CO2, float64(r.Dust))
}

var linePattern = regexp.MustCompile(`Humidity: (\d+)\.(\d+)%, Temperature: (\d+)\.(\d+) C, ` +
	`Methane: (-?\d+\.\d+) PPM, TVOC: (\d+) PPB, CO2eq: (\d+) PPM, ` +
	`Dust\(PM2\.5\): (\d+\.\d+) ug/m\^3`)

// Parse recovers a Record from a success line. Time is left zero.
func Parse(line string) (Record, error) {
	if strings.HasPrefix(line, strings.TrimSpace(ErrorLine)) {
		return Record{}, errors.New("report: sensor error line")
	}
	m := linePattern.FindStringSubmatch(line)
	if m == nil {
		return Record{}, fmt.Errorf("report: malformed line %q", line)
	}
	var u [4]uint8
	for i := range u {
		v, err := strconv.ParseUint(m[1+i], 10, 8)
		if err != nil {
			return Record{}, fmt.Errorf("report: %w", err)
		}
		u[i] = uint8(v)
	}
	methane, err := strconv.ParseFloat(m[5], 64)
	if err != nil {
		return Record{}, fmt.Errorf("report: %w", err)
	}
	tvoc, err := strconv.ParseUint(m[6], 10, 16)
	if err != nil {
		return Record{}, fmt.Errorf("report: %w", err)
	}
	co2, err := strconv.ParseUint(m[7], 10, 16)
	if err != nil {
		return Record{}, fmt.Errorf("report: %w", err)
	}
	dust, err := strconv.ParseFloat(m[8], 64)
	if err != nil {
		return Record{}, fmt.Errorf("report: %w", err)
	}
	return Record{
		Climate: dht11.Reading{Humidity: u[0], HumidityDec: u[1], Temperature: u[2], TemperatureDec: u[3]},
		Methane: methane,
		TVOC:    sgp30.TVOC(tvoc),
		CO2:     sgp30.CO2(co2),
		Dust:    gp2y1014au.Density(dust),
	}, nil
}

// airData is the JSON shape stored by the web server.
type airData struct {
	Humidity    float64 `json:"humidity"`
	Temperature float64 `json:"temperature"`
	Methane     float64 `json:"methane"`
	TVOC        float64 `json:"tvoc"`
	CO2         float64 `json:"co2"`
	PM25        float64 `json:"pm25"`
	Timestamp   int64   `json:"timestamp"`
}

// MarshalJSON implements json.Marshaler.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(airData{
		Humidity:    float64(r.Climate.Humidity) + float64(r.Climate.HumidityDec)/10,
		Temperature: float64(r.Climate.Temperature) + float64(r.Climate.TemperatureDec)/10,
		Methane:     r.Methane,
		TVOC:        float64(r.TVOC),
		CO2:         float64(r.CO2),
		PM25:        float64(r.Dust),
		Timestamp:   r.Time.UnixMilli(),
	})
}
