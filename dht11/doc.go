// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package dht11 controls an Aosong DHT11 temperature and humidity sensor over
// its single-wire bus.
//
// The sensor has no clocked interface: the host bit-bangs a start pulse on a
// GPIO line, then decodes a 40 bit frame purely from the durations of the
// levels the sensor drives. The decoder polls the line with a 1µs grain on a
// cyclecounter.Timer and bounds every phase by 100µs.
//
// A bit is decoded by sampling the line once, 40µs after its leading low
// phase ends: a "0" is high for 26-28µs and already low again, a "1" is high
// for 70µs and still high.
//
// The sensor needs about one second of quiet between two transactions. Dev
// does not enforce this for Read; SenseContinuous refuses shorter intervals.
//
// # Datasheet
//
// https://www.mouser.com/datasheet/2/758/DHT11-Technical-Data-Sheet-Translated-Version-1143054.pdf
package dht11
