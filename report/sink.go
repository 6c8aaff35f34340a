// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package report

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/tarm/serial"
)

// Sink receives reports.
type Sink interface {
	// Send delivers a Record.
	Send(ctx context.Context, r Record) error
	// Fail delivers the notice of a failed acquisition.
	Fail(ctx context.Context, err error) error
	Close() error
}

// Writer is a Sink writing wire lines to an io.Writer.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter returns a Writer on w. Close closes w if it is an io.Closer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Send implements Sink.
func (w *Writer) Send(ctx context.Context, r Record) error {
	return w.write(r.Line())
}

// Fail implements Sink. The error itself is not transmitted, only ErrorLine.
func (w *Writer) Fail(ctx context.Context, err error) error {
	return w.write(ErrorLine)
}

// Close implements Sink.
func (w *Writer) Close() error {
	if c, ok := w.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (w *Writer) write(s string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := io.WriteString(w.w, s)
	return err
}

// OpenSerial returns a Writer on the serial port name, 8N1.
func OpenSerial(name string, baud int) (*Writer, error) {
	if name == "" {
		return nil, errors.New("report: serial port name is empty")
	}
	p, err := serial.OpenPort(&serial.Config{
		Name:        name,
		Baud:        baud,
		ReadTimeout: 300 * time.Millisecond,
		Size:        serial.DefaultSize,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
	})
	if err != nil {
		return nil, err
	}
	return NewWriter(p), nil
}

// OpenUDP returns a Writer sending every line as one datagram to addr, the
// receiver of the air data web server.
func OpenUDP(addr string) (*Writer, error) {
	if addr == "" {
		return nil, errors.New("report: udp address is empty")
	}
	c, err := net.Dial("udp", addr)
	if err != nil {
		return nil, err
	}
	return NewWriter(c), nil
}

var _ Sink = &Writer{}
