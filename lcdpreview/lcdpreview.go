// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package lcdpreview draws the content of a character LCD on the terminal
// using ANSI color codes.
//
// Useful to check what a jsonlcd.Dev sent when the peripheral is not at hand.
package lcdpreview

import (
	"bytes"
	"image/color"
	"io"
	"unicode/utf8"

	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
)

// Opts represents the options available for the preview.
type Opts struct {
	// Bezel is the color of the frame drawn around the text. Defaults to the
	// yellow-green of a typical STN backlight.
	Bezel   color.Color
	Palette *ansi256.Palette

	_ struct{}
}

// Dev renders lines of text to a terminal.
type Dev struct {
	w       io.Writer
	palette ansi256.Palette
	bezel   color.NRGBA

	buf bytes.Buffer
}

// New returns a Dev that renders on stdout.
func New(opts *Opts) *Dev {
	return NewWriter(colorable.NewColorableStdout(), opts)
}

// NewWriter returns a Dev that renders on w.
func NewWriter(w io.Writer, opts *Opts) *Dev {
	if opts == nil {
		opts = &Opts{}
	}
	p := opts.Palette
	if p == nil {
		p = ansi256.Default
	}
	bezel := color.NRGBA{0x9c, 0xcc, 0x2c, 0xff}
	if opts.Bezel != nil {
		bezel = color.NRGBAModel.Convert(opts.Bezel).(color.NRGBA)
	}
	return &Dev{w: w, palette: *p, bezel: bezel}
}

func (d *Dev) String() string {
	return "LCDPreview"
}

// Render draws lines inside a frame, one terminal row per display line. All
// lines are padded to the longest one.
func (d *Dev) Render(lines []string) error {
	width := 0
	for _, l := range lines {
		if n := utf8.RuneCountInString(l); n > width {
			width = n
		}
	}
	block := d.palette.Block(d.bezel)
	d.buf.Reset()
	d.border(block, width)
	for _, l := range lines {
		_, _ = d.buf.WriteString(block)
		_, _ = d.buf.WriteString("\033[0m")
		_, _ = d.buf.WriteString(l)
		for n := utf8.RuneCountInString(l); n < width; n++ {
			_ = d.buf.WriteByte(' ')
		}
		_, _ = d.buf.WriteString(block)
		_, _ = d.buf.WriteString("\033[0m\n")
	}
	d.border(block, width)
	_, err := d.buf.WriteTo(d.w)
	return err
}

// border writes a full row of bezel blocks wide enough to frame width
// characters.
func (d *Dev) border(block string, width int) {
	// A block is two cells wide.
	for i := 0; i < width/2+3; i++ {
		_, _ = d.buf.WriteString(block)
	}
	_, _ = d.buf.WriteString("\033[0m\n")
}
