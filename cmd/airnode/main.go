// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// airnode reads the air quality sensors of a node and reports the
// measurements on a serial line, to redis and to the console.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GermanBionicSystems/airnode/cyclecounter"
	"github.com/GermanBionicSystems/airnode/dht11"
	"github.com/GermanBionicSystems/airnode/gp2y1014au"
	"github.com/GermanBionicSystems/airnode/internal/config"
	"github.com/GermanBionicSystems/airnode/internal/monitor"
	"github.com/GermanBionicSystems/airnode/internal/node"
	"github.com/GermanBionicSystems/airnode/mq4"
	"github.com/GermanBionicSystems/airnode/report"
	"github.com/GermanBionicSystems/airnode/screen1d"
	"github.com/GermanBionicSystems/airnode/sgp30"
	"github.com/mattn/go-colorable"
	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/pin/pinreg"
	"periph.io/x/host/v3"
)

var (
	Version   = "1.0.0"
	BuildTime = "unknown"
)

func main() {
	configFile := flag.String("config", "configs/config.yaml", "configuration file")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("airnode v%s (build: %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "airnode: %v\n", err)
		fmt.Fprintln(os.Stderr, "airnode: using the default configuration")
		cfg = config.GetDefaultConfig()
	}

	log := setupLogger(cfg.Log)
	log.Infof("airnode v%s starting", Version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := mainImpl(ctx, cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal(err)
	}
	log.Info("airnode stopped")
}

func mainImpl(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("host init: %w", err)
	}
	timer, err := cyclecounter.New(cyclecounter.Host())
	if err != nil {
		return err
	}

	p, err := pinByName(cfg.DHT11.Pin)
	if err != nil {
		return err
	}
	climate, err := dht11.New(p, timer)
	if err != nil {
		return err
	}
	n, err := node.New(climate, log, &node.Opts{
		Interval:          cfg.Node.Interval,
		CalibrateInterval: cfg.Node.CalibrateInterval,
		Calibrate:         cfg.MQ4.Calibrate,
	})
	if err != nil {
		return err
	}

	if cfg.MQ4.ADCPin != "" {
		m, err := newMQ4(cfg.MQ4)
		if err != nil {
			return err
		}
		n.Methane = m
		log.Infof("%s ready", m)
	}
	if cfg.SGP30.Bus != "none" {
		b, err := i2creg.Open(cfg.SGP30.Bus)
		if err != nil {
			return fmt.Errorf("sgp30: %w", err)
		}
		defer b.Close()
		d, err := sgp30.NewI2C(b, ctx, &sgp30.Opts{Interval: cfg.SGP30.Interval, Logger: log.WithField("dev", "sgp30")})
		if err != nil {
			return err
		}
		defer d.Wait()
		n.AirQuality = d
		log.Infof("%s ready", d)
	}
	if c := cfg.GP2Y1014AU; c.LEDPin != "" && c.ADCPin != "" {
		d, err := newGP2Y(c, timer)
		if err != nil {
			return err
		}
		defer d.Halt()
		n.Dust = d
		log.Infof("%s ready", d)
	}

	if cfg.Serial.Port != "" {
		s, err := report.OpenSerial(cfg.Serial.Port, cfg.Serial.Baud)
		if err != nil {
			return err
		}
		n.Sinks = append(n.Sinks, s)
	}
	if cfg.UDP.Addr != "" {
		u, err := report.OpenUDP(cfg.UDP.Addr)
		if err != nil {
			return err
		}
		n.Sinks = append(n.Sinks, u)
	}
	if cfg.Redis.Enabled {
		r, err := report.NewRedis(ctx, report.RedisOpts{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
			Channel:  cfg.Redis.Channel,
			ListKey:  cfg.Redis.ListKey,
			MaxLen:   cfg.Redis.MaxLen,
		}, log)
		if err != nil {
			// The node keeps reporting on the other sinks.
			log.WithError(err).Error("redis sink disabled")
		} else {
			n.Sinks = append(n.Sinks, r)
		}
	}
	if cfg.Console.Enabled {
		n.Sinks = append(n.Sinks, screen1d.New(nil))
	}

	if cfg.Monitor.Enabled {
		m := monitor.New(log)
		m.StartMetricsServer(ctx, cfg.Monitor.MetricsPort)
		m.StartRuntimeMonitor(ctx, 10*time.Second)
		n.Metrics = m
	}
	return n.Run(ctx)
}

func newMQ4(c config.MQ4Config) (*mq4.Dev, error) {
	a, err := adcByName(c.ADCPin)
	if err != nil {
		return nil, err
	}
	d, err := mq4.New(a, nil)
	if err != nil {
		return nil, err
	}
	if c.R0 > 0 {
		if err := d.SetR0(physic.ElectricResistance(c.R0 * float64(physic.Ohm))); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func newGP2Y(c config.GP2Y1014AUConfig, t *cyclecounter.Timer) (*gp2y1014au.Dev, error) {
	led, err := pinByName(c.LEDPin)
	if err != nil {
		return nil, err
	}
	a, err := adcByName(c.ADCPin)
	if err != nil {
		return nil, err
	}
	opts := gp2y1014au.DefaultOpts
	if c.Samples > 0 {
		opts.Samples = c.Samples
	}
	if c.Window > 0 {
		opts.Window = c.Window
	}
	return gp2y1014au.New(led, a, t, &opts)
}

func pinByName(name string) (gpio.PinIO, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("no pin named %q", name)
	}
	return p, nil
}

// adcByName returns the analog input name from the registered headers.
//
// ADC channels are not gpio.PinIO so gpioreg cannot return them.
func adcByName(name string) (analog.PinADC, error) {
	for _, header := range pinreg.All() {
		for _, row := range header {
			for _, p := range row {
				if p.Name() != name {
					continue
				}
				a, ok := p.(analog.PinADC)
				if !ok {
					return nil, fmt.Errorf("pin %s is not an ADC", p)
				}
				return a, nil
			}
		}
	}
	return nil, fmt.Errorf("no ADC pin named %q", name)
}

func setupLogger(cfg config.LogConfig) *logrus.Logger {
	log := logrus.New()
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			ForceColors:     cfg.Output != "file",
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
		if cfg.Output != "file" {
			log.SetOutput(colorable.NewColorableStdout())
		}
	}

	if cfg.Output == "file" && cfg.FilePath != "" {
		f, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err == nil {
			log.SetOutput(f)
		} else {
			log.Warnf("opening log file: %v, using stdout", err)
		}
	}
	return log
}
