// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// lcdsend writes text to a JSON SysEx LCD peripheral over a serial port.
//
//	lcdsend -port /dev/ttyUSB0 -clear -line1 "Bank 01" -line2 "Preset A"
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/GermanBionicSystems/sysexlcd/jsonlcd"
	"github.com/GermanBionicSystems/sysexlcd/lcdpreview"
	"github.com/GermanBionicSystems/sysexlcd/sysex"
	"github.com/GermanBionicSystems/sysexlcd/sysexreg"
	"github.com/mattn/go-colorable"
	"github.com/rs/zerolog"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
	"periph.io/x/host/v3"
)

func newLogger(verbose bool) zerolog.Logger {
	lvl := zerolog.InfoLevel
	if verbose {
		lvl = zerolog.DebugLevel
	}
	out := zerolog.ConsoleWriter{Out: colorable.NewColorableStderr(), TimeFormat: time.TimeOnly}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

// listPorts returns the serial ports of the host, with USB details where the
// platform provides them. extra is added when it is not enumerated (e.g. a
// pty) and is not an alias.
func listPorts(extra string, aliases map[string]string) ([]*enumerator.PortDetails, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		names, err := serial.GetPortsList()
		if err != nil {
			return nil, fmt.Errorf("list serial ports: %w", err)
		}
		ports = nil
		for _, n := range names {
			ports = append(ports, &enumerator.PortDetails{Name: n})
		}
	}
	if _, ok := aliases[extra]; extra != "" && !ok {
		found := false
		for _, p := range ports {
			found = found || p.Name == extra || (p.IsUSB && p.SerialNumber == extra)
		}
		if !found {
			ports = append(ports, &enumerator.PortDetails{Name: extra})
		}
	}
	return ports, nil
}

// linkAliases returns the aliases of each port: the configured ones, then the
// USB serial number when the adapter reports one that is unique and usable as
// an alias.
func linkAliases(log zerolog.Logger, ports []*enumerator.PortDetails, configured map[string]string) map[string][]string {
	out := map[string][]string{}
	taken := map[string]bool{}
	for _, p := range ports {
		taken[p.Name] = true
	}
	names := make([]string, 0, len(configured))
	for alias := range configured {
		names = append(names, alias)
	}
	slices.Sort(names)
	for _, alias := range names {
		port := configured[alias]
		if !taken[port] {
			log.Warn().Str("alias", alias).Str("port", port).Msg("port not found")
			continue
		}
		out[port] = append(out[port], alias)
	}
	for _, alias := range names {
		taken[alias] = true
	}

	serials := map[string]int{}
	for _, p := range ports {
		if p.IsUSB && p.SerialNumber != "" {
			serials[p.SerialNumber]++
		}
	}
	for _, p := range ports {
		sn := p.SerialNumber
		if !p.IsUSB || sn == "" || serials[sn] != 1 || taken[sn] || !usableAlias(sn) {
			continue
		}
		taken[sn] = true
		out[p.Name] = append(out[p.Name], sn)
	}
	return out
}

// usableAlias mirrors the sysexreg rules for aliases.
func usableAlias(s string) bool {
	if _, err := strconv.Atoi(s); err == nil {
		return false
	}
	return !strings.ContainsAny(s, ": \t")
}

// registerPorts makes every port available through sysexreg.
func registerPorts(log zerolog.Logger, ports []*enumerator.PortDetails, aliases map[string][]string, baud int) error {
	for _, p := range ports {
		name := p.Name
		open := func() (io.WriteCloser, error) {
			port, err := serial.Open(name, &serial.Mode{BaudRate: baud})
			if err != nil {
				return nil, err
			}
			return port, nil
		}
		if err := sysexreg.Register(name, aliases[name], open); err != nil {
			return err
		}
		log.Debug().Str("port", name).Strs("aliases", aliases[name]).Str("product", p.Product).Msg("registered")
	}
	return nil
}

type command struct {
	cmd  jsonlcd.Command
	text string
}

// send builds the command once so the logged frame is exactly what is
// transmitted.
func send(log zerolog.Logger, dev *jsonlcd.Dev, c command, ascii bool) error {
	m, err := jsonlcd.Build(c.cmd, c.text, &jsonlcd.BuildOpts{ASCII: ascii})
	if err != nil {
		return err
	}
	log.Debug().Str("cmd", c.cmd.String()).Str("frame", sysex.SprintHexArray(sysex.Frame(m.Bytes()))).Msg("sending")
	if err := dev.SendMessage(&m); err != nil {
		return err
	}
	log.Info().Str("cmd", c.cmd.String()).Str("text", c.text).Msg("sent")
	return nil
}

func mainImpl() error {
	cfgPath := flag.String("config", "", "TOML configuration file")
	port := flag.String("port", "", "serial port or alias; defaults to the first one found")
	baud := flag.Int("baud", 0, "baud rate")
	timeout := flag.Duration("timeout", 0, "maximum time to write and drain a frame")
	cols := flag.Int("cols", 0, "display width, for -preview")
	ascii := flag.Bool("ascii", false, "escape non-ASCII text")
	sevenBit := flag.Bool("seven-bit", false, "refuse frames with bytes above 0x7F")
	clearFirst := flag.Bool("clear", false, "clear the display first")
	line1 := flag.String("line1", "", "text for line 1")
	line2 := flag.String("line2", "", "text for line 2")
	list := flag.Bool("list", false, "list the serial ports and exit")
	preview := flag.Bool("preview", false, "draw what was sent on the terminal")
	verbose := flag.Bool("v", false, "verbose mode")
	flag.Parse()
	if flag.NArg() != 0 {
		return errors.New("unexpected argument, try -help")
	}
	log := newLogger(*verbose)

	cfg := defaultConfig()
	if *cfgPath != "" {
		var err error
		if cfg, err = loadConfig(*cfgPath, cfg); err != nil {
			return err
		}
	}
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["port"] {
		cfg.Port = *port
	}
	if set["baud"] {
		cfg.Baud = *baud
	}
	if set["timeout"] {
		cfg.Timeout = *timeout
	}
	if set["cols"] {
		cfg.Cols = *cols
	}
	if set["ascii"] {
		cfg.ASCII = *ascii
	}
	if set["seven-bit"] {
		cfg.SevenBit = *sevenBit
	}
	if err := cfg.validate(); err != nil {
		return err
	}

	state, err := host.Init()
	if err != nil {
		return err
	}
	for _, d := range state.Loaded {
		log.Debug().Str("driver", d.String()).Msg("loaded")
	}

	ports, err := listPorts(cfg.Port, cfg.Aliases)
	if err != nil {
		return err
	}
	if err := registerPorts(log, ports, linkAliases(log, ports, cfg.Aliases), cfg.Baud); err != nil {
		return err
	}
	if *list {
		for _, r := range sysexreg.All() {
			if len(r.Aliases) == 0 {
				fmt.Println(r.Name)
			} else {
				fmt.Printf("%s (%s)\n", r.Name, strings.Join(r.Aliases, ", "))
			}
		}
		return nil
	}

	var cmds []command
	if *clearFirst {
		cmds = append(cmds, command{cmd: jsonlcd.Clear})
	}
	if set["line1"] {
		cmds = append(cmds, command{cmd: jsonlcd.Line1, text: *line1})
	}
	if set["line2"] {
		cmds = append(cmds, command{cmd: jsonlcd.Line2, text: *line2})
	}
	if len(cmds) == 0 {
		return errors.New("nothing to send; use -clear, -line1 or -line2")
	}

	w, err := sysexreg.Open(cfg.Port)
	if err != nil {
		return err
	}
	tx := sysex.NewTransmitter(w, &sysex.Opts{Timeout: cfg.Timeout, SevenBit: cfg.SevenBit})
	defer tx.Close()
	dev := jsonlcd.New(tx, &jsonlcd.Opts{Cols: cfg.Cols, ASCII: cfg.ASCII})

	for _, c := range cmds {
		if err := send(log, dev, c, cfg.ASCII); err != nil {
			return err
		}
	}
	st := tx.Stats()
	log.Debug().Uint64("frames", st.Frames).Uint64("bytes", st.Bytes).Msg("done")

	if *preview {
		return lcdpreview.New(nil).Render(dev.Lines())
	}
	return nil
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "lcdsend: %s.\n", err)
		os.Exit(1)
	}
}
