// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package monitor

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestMetrics(t *testing.T) {
	log, _ := test.NewNullLogger()
	m := New(log)
	m.Reads.WithLabelValues("ok").Inc()
	m.Reads.WithLabelValues("ok").Inc()
	m.Reads.WithLabelValues("checksum mismatch").Inc()
	m.Value.WithLabelValues("co2").Set(412)
	m.ReadDuration.Observe(0.021)
	if v := testutil.ToFloat64(m.Reads.WithLabelValues("ok")); v != 2 {
		t.Fatal(v)
	}
	if v := testutil.ToFloat64(m.Value.WithLabelValues("co2")); v != 412 {
		t.Fatal(v)
	}
	if n := testutil.CollectAndCount(m.Reads); n != 2 {
		t.Fatal(n)
	}
	m.sampleRuntime()
	if v := testutil.ToFloat64(m.Goroutines); v < 1 {
		t.Fatal(v)
	}
}

func TestHandler(t *testing.T) {
	log, _ := test.NewNullLogger()
	m := New(log)
	m.Calibration.Set(0.5)
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	body := get(t, srv.URL+"/health")
	if body != "OK" {
		t.Fatalf("/health = %q", body)
	}
	body = get(t, srv.URL+"/metrics")
	if !strings.Contains(body, "airnode_mq4_calibration_ratio 0.5") {
		t.Fatalf("/metrics missing gauge:\n%s", body)
	}
}

func get(t *testing.T, url string) string {
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("%s: %s", url, resp.Status)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}
