// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package config loads the air node configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Node       NodeConfig       `yaml:"node"`
	DHT11      DHT11Config      `yaml:"dht11"`
	SGP30      SGP30Config      `yaml:"sgp30"`
	MQ4        MQ4Config        `yaml:"mq4"`
	GP2Y1014AU GP2Y1014AUConfig `yaml:"gp2y1014au"`
	Serial     SerialConfig     `yaml:"serial"`
	UDP        UDPConfig        `yaml:"udp"`
	Redis      RedisConfig      `yaml:"redis"`
	Console    ConsoleConfig    `yaml:"console"`
	Log        LogConfig        `yaml:"log"`
	Monitor    MonitorConfig    `yaml:"monitor"`
}

type NodeConfig struct {
	// Interval is the acquisition period.
	Interval time.Duration `yaml:"interval"`
	// CalibrateInterval is the period of the MQ4 calibration steps.
	CalibrateInterval time.Duration `yaml:"calibrate_interval"`
}

type DHT11Config struct {
	Pin string `yaml:"pin"`
}

type SGP30Config struct {
	// Bus is the I²C bus name; empty selects the first bus. Disabled when
	// "none".
	Bus      string        `yaml:"bus"`
	Interval time.Duration `yaml:"interval"`
}

type MQ4Config struct {
	// ADCPin is the analog pin name. Disabled when empty.
	ADCPin    string  `yaml:"adc_pin"`
	Calibrate bool    `yaml:"calibrate"`
	R0        float64 `yaml:"r0"`
}

type GP2Y1014AUConfig struct {
	// LEDPin and ADCPin are pin names. Disabled when either is empty.
	LEDPin  string `yaml:"led_pin"`
	ADCPin  string `yaml:"adc_pin"`
	Samples int    `yaml:"samples"`
	Window  int    `yaml:"window"`
}

type SerialConfig struct {
	// Port is the serial device. Disabled when empty.
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

type UDPConfig struct {
	// Addr is the host:port of the report receiver. Disabled when empty.
	Addr string `yaml:"addr"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	Channel  string `yaml:"channel"`
	ListKey  string `yaml:"list_key"`
	MaxLen   int64  `yaml:"max_len"`
}

type ConsoleConfig struct {
	Enabled bool `yaml:"enabled"`
}

type LogConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type MonitorConfig struct {
	Enabled     bool `yaml:"enabled"`
	MetricsPort int  `yaml:"metrics_port"`
}

// LoadConfig loads the configuration file at path.
//
// Keys absent from the file keep their GetDefaultConfig value.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	c := GetDefaultConfig()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate returns an error if c cannot run a node.
func (c *Config) Validate() error {
	if c.Node.Interval <= 0 {
		return fmt.Errorf("config: node.interval must be positive, got %s", c.Node.Interval)
	}
	if c.Node.CalibrateInterval <= 0 {
		return fmt.Errorf("config: node.calibrate_interval must be positive, got %s", c.Node.CalibrateInterval)
	}
	if c.DHT11.Pin == "" {
		return fmt.Errorf("config: dht11.pin is required")
	}
	if c.Serial.Port != "" && c.Serial.Baud <= 0 {
		return fmt.Errorf("config: serial.baud must be positive, got %d", c.Serial.Baud)
	}
	return nil
}

// GetDefaultConfig returns the default configuration.
func GetDefaultConfig() *Config {
	return &Config{
		Node: NodeConfig{
			Interval:          2 * time.Second,
			CalibrateInterval: 200 * time.Millisecond,
		},
		DHT11: DHT11Config{
			Pin: "GPIO4",
		},
		SGP30: SGP30Config{
			Interval: time.Second,
		},
		MQ4: MQ4Config{
			Calibrate: true,
		},
		GP2Y1014AU: GP2Y1014AUConfig{
			Samples: 10,
			Window:  5,
		},
		Serial: SerialConfig{
			Baud: 115200,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 4,
			Channel:  "air_data",
			ListKey:  "air_data:history",
			MaxLen:   1000,
		},
		Console: ConsoleConfig{
			Enabled: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		Monitor: MonitorConfig{
			Enabled:     false,
			MetricsPort: 9090,
		},
	}
}
