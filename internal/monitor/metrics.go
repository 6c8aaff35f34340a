// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package monitor exports the air node metrics to prometheus.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Metrics is the set of air node collectors.
type Metrics struct {
	// Reads counts DHT11 transactions by result ("ok" or the failure kind).
	Reads *prometheus.CounterVec
	// ReadDuration is the DHT11 transaction duration.
	ReadDuration prometheus.Histogram
	// SinkErrors counts failed deliveries by sink.
	SinkErrors *prometheus.CounterVec
	// Value is the last acquired value by quantity.
	Value *prometheus.GaugeVec
	// Calibration is the MQ4 calibration progress in [0, 1].
	Calibration prometheus.Gauge
	Goroutines  prometheus.Gauge
	MemoryUsage prometheus.Gauge

	reg *prometheus.Registry
	log logrus.FieldLogger
}

// New returns Metrics registered on a fresh registry.
func New(log logrus.FieldLogger) *Metrics {
	m := &Metrics{
		Reads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "airnode_dht11_reads_total",
			Help: "DHT11 transactions by result.",
		}, []string{"result"}),
		ReadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "airnode_dht11_read_duration_seconds",
			Help:    "DHT11 transaction duration.",
			Buckets: []float64{0.018, 0.020, 0.022, 0.025, 0.030, 0.050, 0.1},
		}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "airnode_sink_errors_total",
			Help: "Failed report deliveries by sink.",
		}, []string{"sink"}),
		Value: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "airnode_value",
			Help: "Last acquired value by quantity.",
		}, []string{"quantity"}),
		Calibration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "airnode_mq4_calibration_ratio",
			Help: "MQ4 calibration progress.",
		}),
		Goroutines: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "airnode_goroutines",
			Help: "Current goroutine count.",
		}),
		MemoryUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "airnode_memory_usage_bytes",
			Help: "Allocated heap memory.",
		}),
		reg: prometheus.NewRegistry(),
		log: log,
	}
	m.reg.MustRegister(m.Reads, m.ReadDuration, m.SinkErrors, m.Value, m.Calibration, m.Goroutines, m.MemoryUsage)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Handler returns the HTTP handler serving /metrics and /health.
func (m *Metrics) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

// StartMetricsServer serves Handler on port until ctx is done.
func (m *Metrics) StartMetricsServer(ctx context.Context, port int) *http.Server {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	m.log.Infof("metrics server listening on %s", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.log.Errorf("metrics server: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	return srv
}

// StartRuntimeMonitor samples the runtime every interval until ctx is done.
func (m *Metrics) StartRuntimeMonitor(ctx context.Context, interval time.Duration) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			m.sampleRuntime()
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
		}
	}()
}

func (m *Metrics) sampleRuntime() {
	var s runtime.MemStats
	runtime.ReadMemStats(&s)
	n := runtime.NumGoroutine()
	m.Goroutines.Set(float64(n))
	m.MemoryUsage.Set(float64(s.Alloc))
	m.log.Debugf("goroutines: %d, memory: %.2f MiB", n, float64(s.Alloc)/1024/1024)
}
