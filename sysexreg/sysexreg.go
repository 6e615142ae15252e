// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package sysexreg is a registry of the serial links a SysEx peripheral can
// be reached on.
package sysexreg

import (
	"errors"
	"io"
	"strconv"
	"strings"
	"sync"
)

// Opener opens a handle to a serial link.
//
// It is provided by the serial port driver.
type Opener func() (io.WriteCloser, error)

// Ref references a serial link.
//
// It is returned by All() to enumerate all registered links.
type Ref struct {
	// Name of the link.
	//
	// It must be unique across the host.
	Name string
	// Aliases are the alternative names that can be used to reference this link.
	Aliases []string
	// Open is the factory to open a handle to this link.
	Open Opener
}

// Open opens a link by its name or an alias and returns a handle to it.
//
// Specify the empty string "" to get the first available link, in lexical
// order. This is the recommended default value unless an application knows
// the exact port to use.
//
// "name" is highly dependent on the platform: a serial port can be
// `/dev/tty*` or `COM*`.
func Open(name string) (io.WriteCloser, error) {
	var r *Ref
	var err error
	func() {
		mu.Lock()
		defer mu.Unlock()
		if len(byName) == 0 {
			err = errors.New("sysexreg: no link found; did you forget to register the serial ports")
			return
		}
		if len(name) == 0 {
			r = getDefault()
			return
		}
		if r = byName[name]; r == nil {
			r = byAlias[name]
		}
	}()
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, errors.New("sysexreg: can't open unknown link: " + strconv.Quote(name))
	}
	return r.Open()
}

// All returns a copy of all the registered references to all known links,
// sorted by name.
func All() []*Ref {
	mu.Lock()
	defer mu.Unlock()
	out := make([]*Ref, 0, len(byName))
	for _, v := range byName {
		r := &Ref{Name: v.Name, Aliases: make([]string, len(v.Aliases)), Open: v.Open}
		copy(r.Aliases, v.Aliases)
		out = insertRef(out, r)
	}
	return out
}

// Register registers a link.
//
// Registering the same name twice is an error. Names and aliases cannot be
// numbers nor contain ':'. Aliases cannot contain spaces, so that they can be
// written in a configuration file or on the command line unquoted.
func Register(name string, aliases []string, o Opener) error {
	if len(name) == 0 {
		return errors.New("sysexreg: can't register a link with no name")
	}
	if o == nil {
		return errors.New("sysexreg: can't register link " + strconv.Quote(name) + " with nil Opener")
	}
	if _, err := strconv.Atoi(name); err == nil {
		return errors.New("sysexreg: can't register link " + strconv.Quote(name) + " with name being only a number")
	}
	if strings.Contains(name, ":") {
		return errors.New("sysexreg: can't register link " + strconv.Quote(name) + " with name containing ':'")
	}
	for _, alias := range aliases {
		if len(alias) == 0 {
			return errors.New("sysexreg: can't register link " + strconv.Quote(name) + " with an empty alias")
		}
		if name == alias {
			return errors.New("sysexreg: can't register link " + strconv.Quote(name) + " with an alias the same as the link name")
		}
		if _, err := strconv.Atoi(alias); err == nil {
			return errors.New("sysexreg: can't register link " + strconv.Quote(name) + " with an alias that is a number: " + strconv.Quote(alias))
		}
		if strings.Contains(alias, ":") {
			return errors.New("sysexreg: can't register link " + strconv.Quote(name) + " with an alias containing ':': " + strconv.Quote(alias))
		}
		if strings.ContainsAny(alias, " \t") {
			return errors.New("sysexreg: can't register link " + strconv.Quote(name) + " with an alias containing spaces: " + strconv.Quote(alias))
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if _, ok := byName[name]; ok {
		return errors.New("sysexreg: can't register link " + strconv.Quote(name) + " twice")
	}
	if _, ok := byAlias[name]; ok {
		return errors.New("sysexreg: can't register link " + strconv.Quote(name) + " twice; it is already an alias")
	}
	for _, alias := range aliases {
		if _, ok := byName[alias]; ok {
			return errors.New("sysexreg: can't register link " + strconv.Quote(name) + " twice; alias " + strconv.Quote(alias) + " is already a link")
		}
		if _, ok := byAlias[alias]; ok {
			return errors.New("sysexreg: can't register link " + strconv.Quote(name) + " twice; alias " + strconv.Quote(alias) + " is already an alias")
		}
	}

	r := &Ref{Name: name, Aliases: make([]string, len(aliases)), Open: o}
	copy(r.Aliases, aliases)
	byName[name] = r
	for _, alias := range aliases {
		byAlias[alias] = r
	}
	return nil
}

// Unregister removes a previously registered link.
//
// This can happen when a USB serial adapter is unplugged.
func Unregister(name string) error {
	mu.Lock()
	defer mu.Unlock()
	r := byName[name]
	if r == nil {
		return errors.New("sysexreg: can't unregister unknown link name " + strconv.Quote(name))
	}
	delete(byName, name)
	for _, alias := range r.Aliases {
		delete(byAlias, alias)
	}
	return nil
}

//

var (
	mu      sync.Mutex
	byName  = map[string]*Ref{}
	byAlias = map[string]*Ref{}
)

// getDefault returns the Ref that should be used as the default link.
func getDefault() *Ref {
	var o *Ref
	name := ""
	for n, o2 := range byName {
		if len(name) == 0 || n < name {
			o = o2
			name = n
		}
	}
	return o
}

func insertRef(l []*Ref, r *Ref) []*Ref {
	n := r.Name
	i := search(len(l), func(i int) bool { return l[i].Name > n })
	l = append(l, nil)
	copy(l[i+1:], l[i:])
	l[i] = r
	return l
}

// search implements the same algorithm as sort.Search().
//
// It was extracted to not depend on sort, which depends on reflect.
func search(n int, f func(int) bool) int {
	lo := 0
	for hi := n; lo < hi; {
		if i := int(uint(lo+hi) >> 1); !f(i) {
			lo = i + 1
		} else {
			hi = i
		}
	}
	return lo
}
