// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package node

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/GermanBionicSystems/airnode/cyclecounter"
	"github.com/GermanBionicSystems/airnode/dht11"
	"github.com/GermanBionicSystems/airnode/dht11/dht11test"
	"github.com/GermanBionicSystems/airnode/gp2y1014au"
	"github.com/GermanBionicSystems/airnode/internal/monitor"
	"github.com/GermanBionicSystems/airnode/mq4"
	"github.com/GermanBionicSystems/airnode/report"
	"github.com/GermanBionicSystems/airnode/sgp30"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

type climate struct {
	r   dht11.Reading
	err error
}

func (c *climate) Read() (dht11.Reading, error) {
	return c.r, c.err
}

// methane completes calibration after samples steps.
type methane struct {
	samples int
	count   int
	ppm     float64
	err     error
}

func (m *methane) Calibrate() error {
	if m.count < m.samples {
		m.count++
	}
	return nil
}

func (m *methane) State() mq4.State {
	switch {
	case m.count == m.samples:
		return mq4.Done
	case m.count > 0:
		return mq4.Running
	default:
		return mq4.Idle
	}
}

func (m *methane) SampleCount() int { return m.count }

func (m *methane) Total() int { return m.samples }

func (m *methane) Remaining() time.Duration {
	return time.Duration(m.samples-m.count) * 6 * time.Second
}

func (m *methane) PPM() (float64, error) {
	if m.State() != mq4.Done {
		return 0, mq4.ErrNotCalibrated
	}
	return m.ppm, m.err
}

type air sgp30.Env

func (a air) AirQuality() sgp30.Env { return sgp30.Env(a) }

type dust struct {
	d   gp2y1014au.Density
	err error
}

func (d *dust) Sense() (gp2y1014au.Density, error) { return d.d, d.err }

type sink struct {
	name    string
	err     error
	mu      sync.Mutex
	records []report.Record
	fails   []error
	closed  bool
}

func (s *sink) Send(ctx context.Context, r report.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	return s.err
}

func (s *sink) Fail(ctx context.Context, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fails = append(s.fails, err)
	return s.err
}

func (s *sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *sink) String() string { return s.name }

var ignoreTime = cmpopts.IgnoreFields(report.Record{}, "Time")

func newNode(t *testing.T, c Climate) (*Node, *test.Hook) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	n, err := New(c, log, nil)
	if err != nil {
		t.Fatal(err)
	}
	n.Metrics = monitor.New(log)
	return n, hook
}

func TestNew_fail(t *testing.T) {
	if _, err := New(nil, nil, nil); err == nil {
		t.Fatal("expected error on nil climate")
	}
	if _, err := New(&climate{}, nil, &Opts{Interval: time.Second}); err == nil {
		t.Fatal("expected error on zero calibrate interval")
	}
}

func TestAcquire(t *testing.T) {
	n, _ := newNode(t, &climate{r: dht11.Reading{Humidity: 45, Temperature: 23, TemperatureDec: 1}})
	n.Methane = &methane{samples: 0, ppm: 1.8}
	n.AirQuality = air{CO2: 412, TVOC: 12}
	n.Dust = &dust{d: 35.2}
	s1, s2 := &sink{name: "a"}, &sink{name: "b"}
	n.Sinks = []report.Sink{s1, s2}

	r, err := n.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := report.Record{
		Climate: dht11.Reading{Humidity: 45, Temperature: 23, TemperatureDec: 1},
		Methane: 1.8,
		TVOC:    12,
		CO2:     412,
		Dust:    35.2,
	}
	if diff := cmp.Diff(want, r, ignoreTime); diff != "" {
		t.Fatalf("Acquire() mismatch (-want +got):\n%s", diff)
	}
	for _, s := range []*sink{s1, s2} {
		if diff := cmp.Diff([]report.Record{want}, s.records, ignoreTime); diff != "" {
			t.Fatalf("sink %s mismatch (-want +got):\n%s", s.name, diff)
		}
	}
	if v := testutil.ToFloat64(n.Metrics.Reads.WithLabelValues("ok")); v != 1 {
		t.Fatal(v)
	}
	if v := testutil.ToFloat64(n.Metrics.Value.WithLabelValues("temperature")); v != 23.1 {
		t.Fatal(v)
	}
}

func TestAcquire_optional(t *testing.T) {
	n, hook := newNode(t, &climate{r: dht11.Reading{Humidity: 50, Temperature: 20}})
	n.Methane = &methane{samples: 50}
	n.Dust = &dust{err: errors.New("adc down")}
	r, err := n.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if r.Methane != report.Uncalibrated || r.Dust != 0 || r.CO2 != 0 {
		t.Fatalf("unexpected record %+v", r)
	}
	found := false
	for _, e := range hook.AllEntries() {
		if e.Message == "dust read failed" {
			found = true
		}
		if e.Message == "methane read failed" {
			t.Fatal("uncalibrated methane must not be logged as a failure")
		}
	}
	if !found {
		t.Fatal("dust failure not logged")
	}
}

func TestAcquire_fail(t *testing.T) {
	n, _ := newNode(t, &climate{err: &dht11.DecodeError{Kind: dht11.BitTimeout, Bit: 7}})
	s := &sink{name: "serial"}
	n.Sinks = []report.Sink{s}
	if _, err := n.Acquire(context.Background()); !errors.Is(err, dht11.ErrBitTimeout) {
		t.Fatalf("got %v", err)
	}
	if len(s.records) != 0 || len(s.fails) != 1 || !errors.Is(s.fails[0], dht11.ErrBitTimeout) {
		t.Fatalf("unexpected deliveries %+v %+v", s.records, s.fails)
	}
	if v := testutil.ToFloat64(n.Metrics.Reads.WithLabelValues("BitTimeout")); v != 1 {
		t.Fatal(v)
	}
}

func TestAcquire_sinkError(t *testing.T) {
	n, hook := newNode(t, &climate{r: dht11.Reading{Humidity: 50, Temperature: 20}})
	bad, good := &sink{name: "redis", err: errors.New("down")}, &sink{name: "serial"}
	n.Sinks = []report.Sink{bad, good}
	if _, err := n.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(good.records) != 1 {
		t.Fatal("delivery must continue after a sink error")
	}
	if v := testutil.ToFloat64(n.Metrics.SinkErrors.WithLabelValues("redis")); v != 1 {
		t.Fatal(v)
	}
	if e := hook.LastEntry(); e == nil || e.Level != logrus.ErrorLevel || e.Data["sink"] != "redis" {
		t.Fatalf("unexpected log %+v", e)
	}
}

func TestStep_calibration(t *testing.T) {
	c := &climate{r: dht11.Reading{Humidity: 50, Temperature: 20}}
	n, hook := newNode(t, c)
	m := &methane{samples: 2, ppm: 3}
	n.Methane = m
	s := &sink{name: "s"}
	n.Sinks = []report.Sink{s}

	if d := n.Step(context.Background()); d != DefaultOpts.CalibrateInterval {
		t.Fatal(d)
	}
	if msg := hook.LastEntry().Message; msg != "[MQ4] Calibrating... 1/2 samples, Remain: 6s" {
		t.Fatal(msg)
	}
	if len(s.records) != 0 {
		t.Fatal("no acquisition while calibrating")
	}
	if d := n.Step(context.Background()); d != DefaultOpts.CalibrateInterval {
		t.Fatal(d)
	}
	if msg := hook.LastEntry().Message; msg != "[MQ4] Calibration done, 2 samples" {
		t.Fatal(msg)
	}
	if v := testutil.ToFloat64(n.Metrics.Calibration); v != 1 {
		t.Fatal(v)
	}
	if d := n.Step(context.Background()); d != DefaultOpts.Interval {
		t.Fatal(d)
	}
	if len(s.records) != 1 || s.records[0].Methane != 3 {
		t.Fatalf("unexpected records %+v", s.records)
	}
}

func TestStep_noCalibration(t *testing.T) {
	log, _ := test.NewNullLogger()
	n, err := New(&climate{}, log, &Opts{Interval: time.Second, CalibrateInterval: time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	m := &methane{samples: 50}
	n.Methane = m
	if d := n.Step(context.Background()); d != time.Second {
		t.Fatal(d)
	}
	if m.count != 0 {
		t.Fatal("calibration disabled")
	}
}

func TestRun(t *testing.T) {
	log, _ := test.NewNullLogger()
	n, err := New(&climate{r: dht11.Reading{Humidity: 50, Temperature: 20}}, log, &Opts{Interval: time.Millisecond, CalibrateInterval: time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	s := &sink{name: "s"}
	n.Sinks = []report.Sink{s}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- n.Run(ctx) }()
	for i := 0; ; i++ {
		s.mu.Lock()
		l := len(s.records)
		s.mu.Unlock()
		if l >= 3 {
			break
		}
		if i == 1000 {
			t.Fatal("loop did not run")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatal(err)
	}
	if !s.closed {
		t.Fatal("sinks not closed")
	}
}

// TestAcquire_dht11 runs the loop against a simulated sensor.
func TestAcquire_dht11(t *testing.T) {
	sim := dht11test.NewSim("GPIO4")
	timer, err := cyclecounter.New(sim.Clock)
	if err != nil {
		t.Fatal(err)
	}
	d, err := dht11.New(sim, timer)
	if err != nil {
		t.Fatal(err)
	}
	n, _ := newNode(t, d)
	var buf strings.Builder
	n.Sinks = []report.Sink{report.NewWriter(&buf)}

	sim.LoadFrame(dht11test.Frame(45, 0, 23, 0))
	if _, err := n.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	// Nothing armed: the line stays high.
	if _, err := n.Acquire(context.Background()); !errors.Is(err, dht11.ErrNoResponse) {
		t.Fatalf("got %v", err)
	}
	want := "Humidity: 45.0%, Temperature: 23.0 C, Methane: -1.0 PPM, TVOC: 0 PPB, CO2eq: 0 PPM, Dust(PM2.5): 0.0 ug/m^3\r\n" +
		report.ErrorLine
	if got := buf.String(); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
