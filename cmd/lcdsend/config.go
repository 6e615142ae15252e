// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// config is what the tool needs to reach the display. Flags override it.
type config struct {
	Port    string
	Baud    int
	Timeout time.Duration
	Cols    int
	ASCII   bool
	// SevenBit rejects frames with bytes above 0x7F.
	SevenBit bool
	// Aliases maps an alias to a port name, e.g. "lcd" to "/dev/ttyUSB0".
	Aliases map[string]string
}

func defaultConfig() config {
	return config{
		Baud:    115200,
		Timeout: time.Second,
		Cols:    16,
	}
}

type fileConfig struct {
	Port     string `toml:"port"`
	Baud     int    `toml:"baud"`
	Timeout  string `toml:"timeout"`
	Cols     int    `toml:"cols"`
	ASCII    bool   `toml:"ascii"`
	SevenBit bool   `toml:"seven_bit"`

	Aliases map[string]string `toml:"aliases"`
}

// loadConfig applies the keys present in the TOML file at path on top of
// cfg.
func loadConfig(path string, cfg config) (config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) != 0 {
		return config{}, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("port") {
		cfg.Port = strings.TrimSpace(raw.Port)
	}
	if meta.IsDefined("baud") {
		if raw.Baud <= 0 {
			return config{}, fmt.Errorf("load config: invalid baud %d", raw.Baud)
		}
		cfg.Baud = raw.Baud
	}
	if meta.IsDefined("timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Timeout))
		if err != nil {
			return config{}, fmt.Errorf("parse timeout: %w", err)
		}
		cfg.Timeout = d
	}
	if meta.IsDefined("cols") {
		if raw.Cols <= 0 {
			return config{}, fmt.Errorf("load config: invalid cols %d", raw.Cols)
		}
		cfg.Cols = raw.Cols
	}
	if meta.IsDefined("ascii") {
		cfg.ASCII = raw.ASCII
	}
	if meta.IsDefined("seven_bit") {
		cfg.SevenBit = raw.SevenBit
	}
	if meta.IsDefined("aliases") {
		cfg.Aliases = map[string]string{}
		for alias, port := range raw.Aliases {
			cfg.Aliases[strings.TrimSpace(alias)] = strings.TrimSpace(port)
		}
	}
	return cfg, nil
}

// validate checks the values that can come from either flags or the file.
func (c *config) validate() error {
	if c.Baud <= 0 {
		return fmt.Errorf("invalid baud %d", c.Baud)
	}
	if c.Cols <= 0 {
		return fmt.Errorf("invalid cols %d", c.Cols)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("invalid timeout %s", c.Timeout)
	}
	for alias, port := range c.Aliases {
		if port == "" {
			return fmt.Errorf("alias %q has no port", alias)
		}
	}
	return nil
}
