// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sysexreg

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

type nopCloser struct {
	bytes.Buffer
	name string
}

func (n *nopCloser) Close() error {
	return nil
}

func opener(name string) Opener {
	return func() (io.WriteCloser, error) {
		return &nopCloser{name: name}, nil
	}
}

func reset(t *testing.T) {
	t.Cleanup(func() {
		mu.Lock()
		defer mu.Unlock()
		byName = map[string]*Ref{}
		byAlias = map[string]*Ref{}
	})
}

func TestOpenEmpty(t *testing.T) {
	reset(t)
	if _, err := Open(""); err == nil {
		t.Error("expected an error with no registered link")
	}
}

func TestRegisterOpen(t *testing.T) {
	reset(t)
	if err := Register("/dev/ttyUSB1", []string{"lcd"}, opener("usb1")); err != nil {
		t.Fatal(err)
	}
	if err := Register("/dev/ttyUSB0", nil, opener("usb0")); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		want string
	}{
		{"", "usb0"},
		{"/dev/ttyUSB1", "usb1"},
		{"lcd", "usb1"},
	}
	for _, tt := range tests {
		w, err := Open(tt.name)
		if err != nil {
			t.Fatalf("Open(%q) = %v", tt.name, err)
		}
		if got := w.(*nopCloser).name; got != tt.want {
			t.Errorf("Open(%q) opened %q, want %q", tt.name, got, tt.want)
		}
	}
	if _, err := Open("/dev/ttyS9"); err == nil {
		t.Error("Open() of an unknown link succeeded")
	}
}

func TestOpenerError(t *testing.T) {
	reset(t)
	want := errors.New("busy")
	if err := Register("COM3", nil, func() (io.WriteCloser, error) { return nil, want }); err != nil {
		t.Fatal(err)
	}
	if _, err := Open("COM3"); err != want {
		t.Errorf("Open() = %v, want %v", err, want)
	}
}

func TestRegisterInvalid(t *testing.T) {
	reset(t)
	if err := Register("a", []string{"x"}, opener("a")); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name    string
		aliases []string
		o       Opener
	}{
		{"", nil, opener("")},
		{"b", nil, nil},
		{"1", nil, opener("1")},
		{"b", []string{""}, opener("b")},
		{"b", []string{"b"}, opener("b")},
		{"b", []string{"2"}, opener("b")},
		{"b", []string{"has space"}, opener("b")},
		{"a:b", nil, opener("a:b")},
		{"b", []string{"lcd:0"}, opener("b")},
		{"a", nil, opener("a")},
		{"x", nil, opener("x")},
		{"b", []string{"a"}, opener("b")},
		{"b", []string{"x"}, opener("b")},
	}
	for _, tt := range tests {
		if err := Register(tt.name, tt.aliases, tt.o); err == nil {
			t.Errorf("Register(%q, %q) succeeded", tt.name, tt.aliases)
		}
	}
}

func TestAllSorted(t *testing.T) {
	reset(t)
	for _, n := range []string{"c", "a", "b"} {
		if err := Register(n, []string{n + "-alias"}, opener(n)); err != nil {
			t.Fatal(err)
		}
	}
	all := All()
	if len(all) != 3 {
		t.Fatalf("All() returned %d refs", len(all))
	}
	for i, n := range []string{"a", "b", "c"} {
		if all[i].Name != n || all[i].Aliases[0] != n+"-alias" {
			t.Errorf("All()[%d] = %+v", i, all[i])
		}
	}
	all[0].Aliases[0] = "mutated"
	if All()[0].Aliases[0] != "a-alias" {
		t.Error("All() did not return a copy")
	}
}

func TestUnregister(t *testing.T) {
	reset(t)
	if err := Register("a", []string{"x"}, opener("a")); err != nil {
		t.Fatal(err)
	}
	if err := Unregister("a"); err != nil {
		t.Fatal(err)
	}
	if _, err := Open("x"); err == nil {
		t.Error("alias still registered")
	}
	if err := Unregister("a"); err == nil {
		t.Error("second Unregister() succeeded")
	}
	if err := Register("x", nil, opener("x")); err != nil {
		t.Errorf("alias was not released: %v", err)
	}
}
