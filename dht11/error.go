// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package dht11

import "strconv"

// Kind classifies a failed transaction.
type Kind int

const (
	// NoResponse means the sensor did not pull the line low after the start
	// signal.
	NoResponse Kind = iota + 1
	// ResponseTimeout means the low or high acknowledgement phase was too long.
	ResponseTimeout
	// BitTimeout means a data bit phase was too long.
	BitTimeout
	// ChecksumError means the checksum byte does not match the payload.
	ChecksumError
	// RangeError means the frame is valid but the values are not plausible.
	RangeError
)

func (k Kind) String() string {
	switch k {
	case NoResponse:
		return "NoResponse"
	case ResponseTimeout:
		return "ResponseTimeout"
	case BitTimeout:
		return "BitTimeout"
	case ChecksumError:
		return "ChecksumError"
	case RangeError:
		return "RangeError"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// DecodeError is returned by Dev.Read when a transaction fails.
//
// Use errors.Is with the Err* values to test the Kind.
type DecodeError struct {
	Kind Kind
	// Bit is the index (0..39) of the data bit that timed out. It is only
	// meaningful for BitTimeout.
	Bit int
}

// Sentinel values for errors.Is.
var (
	ErrNoResponse      = &DecodeError{Kind: NoResponse}
	ErrResponseTimeout = &DecodeError{Kind: ResponseTimeout}
	ErrBitTimeout      = &DecodeError{Kind: BitTimeout}
	ErrChecksum        = &DecodeError{Kind: ChecksumError}
	ErrRange           = &DecodeError{Kind: RangeError}
)

func (e *DecodeError) Error() string {
	switch e.Kind {
	case NoResponse:
		return "dht11: sensor did not respond to start signal"
	case ResponseTimeout:
		return "dht11: sensor response phase exceeded timeout"
	case BitTimeout:
		return "dht11: bit " + strconv.Itoa(e.Bit) + " exceeded timeout"
	case ChecksumError:
		return "dht11: checksum mismatch"
	case RangeError:
		return "dht11: reading out of range"
	default:
		return "dht11: " + e.Kind.String()
	}
}

// Is reports whether target is a *DecodeError of the same Kind.
func (e *DecodeError) Is(target error) bool {
	t, ok := target.(*DecodeError)
	return ok && t.Kind == e.Kind
}
