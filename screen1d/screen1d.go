// Copyright 2017 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package screen1d implements a report.Sink that outputs a 1D status strip to
// the terminal (stdout) using ANSI color codes, followed by the report line.
//
// Each cell of the strip is one measured quantity, colored by how healthy the
// value is.
package screen1d

import (
	"bytes"
	"context"
	"image/color"
	"io"
	"strings"
	"sync"

	"github.com/GermanBionicSystems/airnode/report"
	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
)

// Level rates a measured value.
type Level int

const (
	Unknown Level = iota
	Good
	Moderate
	Poor
)

// Opts represents the options available for this display.
type Opts struct {
	// W is the output. Defaults to a colorable stdout.
	W       io.Writer
	Palette *ansi256.Palette
	// Colors maps Levels to cell colors. Defaults to DefaultColors.
	Colors map[Level]color.NRGBA

	_ struct{}
}

// DefaultColors is the default cell coloring.
var DefaultColors = map[Level]color.NRGBA{
	Unknown:  {0x80, 0x80, 0x80, 0xff},
	Good:     {0x00, 0xc0, 0x00, 0xff},
	Moderate: {0xff, 0xc0, 0x00, 0xff},
	Poor:     {0xff, 0x00, 0x00, 0xff},
}

// Dev is a terminal status strip.
type Dev struct {
	mu      sync.Mutex
	w       io.Writer
	palette ansi256.Palette
	colors  map[Level]color.NRGBA

	buf bytes.Buffer
}

// New returns a Dev that displays at the console.
func New(opts *Opts) *Dev {
	if opts == nil {
		opts = &Opts{}
	}
	p := opts.Palette
	if p == nil {
		p = ansi256.Default
	}
	w := opts.W
	if w == nil {
		w = colorable.NewColorableStdout()
	}
	c := opts.Colors
	if c == nil {
		c = DefaultColors
	}
	return &Dev{w: w, palette: *p, colors: c}
}

func (d *Dev) String() string {
	return "Screen1D"
}

// Send implements report.Sink.
func (d *Dev) Send(ctx context.Context, r report.Record) error {
	return d.refresh(Rate(r), strings.TrimRight(r.Line(), "\r\n"))
}

// Fail implements report.Sink.
func (d *Dev) Fail(ctx context.Context, err error) error {
	return d.refresh([]Level{Poor}, strings.TrimRight(report.ErrorLine, "\r\n")+" "+err.Error())
}

// Close implements report.Sink.
//
// It resets the terminal colors so it is not corrupted.
func (d *Dev) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := d.w.Write([]byte("\033[0m"))
	return err
}

func (d *Dev) refresh(levels []Level, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	// This code is designed to minimize the amount of memory allocated per call.
	d.buf.Reset()
	_, _ = d.buf.WriteString("\r\033[0m")
	for _, l := range levels {
		_, _ = io.WriteString(&d.buf, d.palette.Block(d.colors[l]))
	}
	_, _ = d.buf.WriteString("\033[0m ")
	_, _ = d.buf.WriteString(text)
	_, _ = d.buf.WriteString("\n")
	_, err := d.buf.WriteTo(d.w)
	return err
}

// Rate returns the Levels of the quantities of r, in the order humidity,
// temperature, methane, TVOC, CO2eq, dust.
func Rate(r report.Record) []Level {
	h := float64(r.Climate.Humidity) + float64(r.Climate.HumidityDec)/10
	t := float64(r.Climate.Temperature) + float64(r.Climate.TemperatureDec)/10
	methane := Unknown
	if r.Methane >= 0 {
		methane = band(r.Methane, 10, 100)
	}
	return []Level{
		comfort(h, 30, 60, 20, 80),
		comfort(t, 18, 26, 10, 32),
		methane,
		band(float64(r.TVOC), 220, 660),
		band(float64(r.CO2), 800, 1500),
		band(float64(r.Dust), 35, 75),
	}
}

// band rates a pollutant: below good is Good, below moderate is Moderate.
func band(v, good, moderate float64) Level {
	switch {
	case v < good:
		return Good
	case v < moderate:
		return Moderate
	default:
		return Poor
	}
}

// comfort rates a value with a comfortable range [lo, hi] inside a
// tolerable range [minV, maxV].
func comfort(v, lo, hi, minV, maxV float64) Level {
	switch {
	case v >= lo && v <= hi:
		return Good
	case v >= minV && v <= maxV:
		return Moderate
	default:
		return Poor
	}
}

var _ report.Sink = &Dev{}
