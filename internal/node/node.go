// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package node runs the air node acquisition loop: it reads every sensor on a
// fixed period and delivers the resulting report to the sinks.
package node

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/GermanBionicSystems/airnode/dht11"
	"github.com/GermanBionicSystems/airnode/gp2y1014au"
	"github.com/GermanBionicSystems/airnode/internal/monitor"
	"github.com/GermanBionicSystems/airnode/mq4"
	"github.com/GermanBionicSystems/airnode/report"
	"github.com/GermanBionicSystems/airnode/sgp30"
	"github.com/sirupsen/logrus"
)

// Climate is implemented by *dht11.Dev.
type Climate interface {
	Read() (dht11.Reading, error)
}

// Methane is implemented by *mq4.Dev.
type Methane interface {
	Calibrate() error
	State() mq4.State
	SampleCount() int
	Total() int
	Remaining() time.Duration
	PPM() (float64, error)
}

// AirQuality is implemented by *sgp30.Dev.
type AirQuality interface {
	AirQuality() sgp30.Env
}

// Dust is implemented by *gp2y1014au.Dev.
type Dust interface {
	Sense() (gp2y1014au.Density, error)
}

// Opts holds the loop configuration.
type Opts struct {
	// Interval is the acquisition period.
	Interval time.Duration
	// CalibrateInterval is the period of the methane calibration steps.
	CalibrateInterval time.Duration
	// Calibrate enables the methane calibration before the first acquisition.
	Calibrate bool
}

// DefaultOpts holds the default loop configuration.
var DefaultOpts = Opts{
	Interval:          2 * time.Second,
	CalibrateInterval: 200 * time.Millisecond,
	Calibrate:         true,
}

// Node is the acquisition loop. Only Climate is required; nil sensors are
// skipped and keep their report fields at the zero value, methane at
// report.Uncalibrated.
type Node struct {
	Climate    Climate
	Methane    Methane
	AirQuality AirQuality
	Dust       Dust
	Sinks      []report.Sink
	Metrics    *monitor.Metrics
	Log        logrus.FieldLogger

	opts Opts
}

// New returns a Node. The Opts can be nil.
func New(c Climate, log logrus.FieldLogger, opts *Opts) (*Node, error) {
	if c == nil {
		return nil, errors.New("node: climate sensor is required")
	}
	if opts == nil {
		opts = &DefaultOpts
	}
	if opts.Interval <= 0 || opts.CalibrateInterval <= 0 {
		return nil, fmt.Errorf("node: invalid intervals %s/%s", opts.Interval, opts.CalibrateInterval)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Node{Climate: c, Log: log, opts: *opts}, nil
}

// Run steps the loop until ctx is done, then closes the sinks.
func (n *Node) Run(ctx context.Context) error {
	defer n.closeSinks()
	t := time.NewTimer(0)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
		t.Reset(n.Step(ctx))
	}
}

// Step runs one iteration and returns the delay until the next one.
//
// While the methane sensor calibrates, an iteration is one calibration step
// and no acquisition happens.
func (n *Node) Step(ctx context.Context) time.Duration {
	if n.calibrating() {
		n.calibrate()
		return n.opts.CalibrateInterval
	}
	_, _ = n.Acquire(ctx)
	return n.opts.Interval
}

// Acquire reads the sensors once and delivers the result to every sink.
//
// A climate read failure is delivered as a failure notice and returned;
// failures of the other sensors are logged and leave their field unset.
func (n *Node) Acquire(ctx context.Context) (report.Record, error) {
	start := time.Now()
	c, err := n.Climate.Read()
	n.observeRead(time.Since(start), err)
	if err != nil {
		n.Log.WithError(err).Warn("climate read failed")
		for _, s := range n.Sinks {
			n.deliver(s, s.Fail(ctx, err))
		}
		return report.Record{}, err
	}
	r := report.Record{Time: start, Climate: c, Methane: report.Uncalibrated}
	if n.Methane != nil {
		if ppm, err := n.Methane.PPM(); err == nil {
			r.Methane = ppm
		} else if !errors.Is(err, mq4.ErrNotCalibrated) {
			n.Log.WithError(err).Warn("methane read failed")
		}
	}
	if n.AirQuality != nil {
		e := n.AirQuality.AirQuality()
		r.CO2 = e.CO2
		r.TVOC = e.TVOC
	}
	if n.Dust != nil {
		if d, err := n.Dust.Sense(); err == nil {
			r.Dust = d
		} else {
			n.Log.WithError(err).Warn("dust read failed")
		}
	}
	n.observeRecord(r)
	n.Log.Debug(strings.TrimRight(r.Line(), "\r\n"))
	for _, s := range n.Sinks {
		n.deliver(s, s.Send(ctx, r))
	}
	return r, nil
}

func (n *Node) calibrating() bool {
	return n.opts.Calibrate && n.Methane != nil && n.Methane.State() != mq4.Done
}

func (n *Node) calibrate() {
	if err := n.Methane.Calibrate(); err != nil {
		n.Log.WithError(err).Warn("[MQ4] calibration restarted")
	}
	count, total := n.Methane.SampleCount(), n.Methane.Total()
	if n.Metrics != nil && total > 0 {
		n.Metrics.Calibration.Set(float64(count) / float64(total))
	}
	if n.Methane.State() == mq4.Done {
		n.Log.Infof("[MQ4] Calibration done, %d samples", count)
		return
	}
	n.Log.Infof("[MQ4] Calibrating... %d/%d samples, Remain: %ds", count, total, int(n.Methane.Remaining()/time.Second))
}

func (n *Node) deliver(s report.Sink, err error) {
	if err == nil {
		return
	}
	name := sinkName(s)
	n.Log.WithError(err).WithField("sink", name).Error("delivery failed")
	if n.Metrics != nil {
		n.Metrics.SinkErrors.WithLabelValues(name).Inc()
	}
}

func (n *Node) closeSinks() {
	for _, s := range n.Sinks {
		if err := s.Close(); err != nil {
			n.Log.WithError(err).WithField("sink", sinkName(s)).Warn("close failed")
		}
	}
}

func (n *Node) observeRead(d time.Duration, err error) {
	if n.Metrics == nil {
		return
	}
	n.Metrics.ReadDuration.Observe(d.Seconds())
	n.Metrics.Reads.WithLabelValues(result(err)).Inc()
}

func (n *Node) observeRecord(r report.Record) {
	if n.Metrics == nil {
		return
	}
	v := n.Metrics.Value
	v.WithLabelValues("humidity").Set(float64(r.Climate.Humidity) + float64(r.Climate.HumidityDec)/10)
	v.WithLabelValues("temperature").Set(float64(r.Climate.Temperature) + float64(r.Climate.TemperatureDec)/10)
	v.WithLabelValues("methane").Set(r.Methane)
	v.WithLabelValues("tvoc").Set(float64(r.TVOC))
	v.WithLabelValues("co2").Set(float64(r.CO2))
	v.WithLabelValues("pm25").Set(float64(r.Dust))
}

// result is the metric label of a climate read outcome.
func result(err error) string {
	if err == nil {
		return "ok"
	}
	var e *dht11.DecodeError
	if errors.As(err, &e) {
		return e.Kind.String()
	}
	return "error"
}

func sinkName(s report.Sink) string {
	if st, ok := s.(fmt.Stringer); ok {
		return st.String()
	}
	return fmt.Sprintf("%T", s)
}
