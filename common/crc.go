// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package common contains the frame check functions shared by the sensor
// packages: the Sensirion CRC8 and the plain 8-bit modular sum.
package common

// CRC8 calculates the 8-bit CRC of the byte slice parameter and returns the
// calculated value. It uses the polynomial x^8 + x^5 + x^4 + 1 (0x31) with an
// initial value of 0xff, as used by Sensirion sensors like the SGP30.
func CRC8(bytes []byte) byte {
	var crc byte = 0xff
	for _, val := range bytes {
		crc ^= val
		for range 8 {
			if (crc & 0x80) == 0 {
				crc <<= 1
			} else {
				crc = (byte)((crc << 1) ^ 0x31)
			}
		}
	}
	return crc
}

// Sum8 returns the sum of bytes modulo 256. Aosong single-wire sensors append
// it to their payload.
func Sum8(bytes []byte) byte {
	var sum byte
	for _, val := range bytes {
		sum += val
	}
	return sum
}
