// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sgp30_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/GermanBionicSystems/airnode/sgp30"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

func Example() {
	// Make sure periph is initialized.
	if _, err := host.Init(); err != nil {
		log.Fatal(err)
	}

	// Use i2creg I²C bus registry to find the first available I²C bus.
	b, err := i2creg.Open("")
	if err != nil {
		log.Fatalf("failed to open I²C: %v", err)
	}
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	d, err := sgp30.NewI2C(b, ctx, nil)
	if err != nil {
		log.Fatalf("failed to initialize SGP30: %v", err)
	}
	for ctx.Err() == nil {
		e := d.AirQuality()
		fmt.Printf("CO2eq: %s TVOC: %s\n", e.CO2, e.TVOC)
		time.Sleep(2 * time.Second)
	}
	d.Wait()
}
