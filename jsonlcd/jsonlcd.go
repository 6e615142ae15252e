// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package jsonlcd drives a character LCD peripheral that receives its
// commands as JSON objects inside SysEx frames.
//
// Three commands exist, each a single key object:
//
//	{"lcd1":"text"}     replace line 1
//	{"lcd2":"text"}     replace line 2
//	{"lcd.clear":true}  clear the display
//
// Dev also implements display.TextDisplay by keeping a copy of both lines and
// resending the line that changed.
package jsonlcd

import (
	"fmt"
	"strings"
	"sync"

	"github.com/GermanBionicSystems/sysexlcd/sysex"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/display"
)

// Rows is the number of lines the protocol can address.
const Rows = 2

// Opts holds the configuration options.
type Opts struct {
	// Cols is the width of the display in characters. It only matters for the
	// display.TextDisplay methods.
	Cols int
	// ASCII escapes non-ASCII text so frames are 7-bit clean.
	ASCII bool
}

// DefaultOpts is the recommended default options, for a 16x2 display.
var DefaultOpts = Opts{Cols: 16}

// Dev is a handle to the LCD peripheral.
type Dev struct {
	t    *sysex.Transmitter
	opts Opts

	mu    sync.Mutex
	lines [Rows][]rune
	row   int
	col   int
}

// New returns a Dev sending its frames through t.
func New(t *sysex.Transmitter, opts *Opts) *Dev {
	if opts == nil {
		opts = &DefaultOpts
	}
	o := *opts
	if o.Cols <= 0 {
		o.Cols = DefaultOpts.Cols
	}
	d := &Dev{t: t, opts: o}
	for i := range d.lines {
		d.lines[i] = blankLine(o.Cols)
	}
	return d
}

// SendLcd1 replaces the content of line 1 with text.
func (d *Dev) SendLcd1(text string) error {
	return d.Send(Line1, text)
}

// SendLcd2 replaces the content of line 2 with text.
func (d *Dev) SendLcd2(text string) error {
	return d.Send(Line2, text)
}

// SendLcdClear clears the display.
func (d *Dev) SendLcdClear() error {
	return d.Send(Clear, "")
}

// Send builds the object for cmd and transmits it. When it returns nil the
// frame was written and flushed.
func (d *Dev) Send(cmd Command, text string) error {
	m, err := Build(cmd, text, &BuildOpts{ASCII: d.opts.ASCII})
	if err != nil {
		return err
	}
	return d.SendMessage(&m)
}

// SendMessage transmits a Message built beforehand, for callers that need
// the encoded bytes too.
func (d *Dev) SendMessage(m *Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := commandToKeyMap[m.cmd]; !ok {
		return wrap(fmt.Errorf("%w: %d", ErrUnknownCommand, m.cmd))
	}
	if err := wrap(d.t.Transmit(m.Bytes())); err != nil {
		return err
	}
	switch m.cmd {
	case Line1:
		d.lines[0] = d.fitLine(m.text)
	case Line2:
		d.lines[1] = d.fitLine(m.text)
	case Clear:
		d.clearLines()
	}
	return nil
}

func (d *Dev) send(cmd Command, text string) error {
	m, err := Build(cmd, text, &BuildOpts{ASCII: d.opts.ASCII})
	if err != nil {
		return err
	}
	return wrap(d.t.Transmit(m.Bytes()))
}

// Lines returns what the display shows, as far as this Dev knows.
func (d *Dev) Lines() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, Rows)
	for i, l := range d.lines {
		out[i] = string(l)
	}
	return out
}

// Enable/Disable auto scroll. Only disabled is supported.
func (d *Dev) AutoScroll(enabled bool) error {
	if enabled {
		return wrap(display.ErrNotImplemented)
	}
	return nil
}

// Return the number of columns the display supports
func (d *Dev) Cols() int {
	return d.opts.Cols
}

// Clear the display and move the cursor home.
func (d *Dev) Clear() error {
	if err := d.SendLcdClear(); err != nil {
		return err
	}
	return d.Home()
}

// Cursor is not supported by the peripheral; only CursorOff succeeds.
func (d *Dev) Cursor(mode ...display.CursorMode) error {
	for _, m := range mode {
		switch m {
		case display.CursorOff:
		case display.CursorUnderline, display.CursorBlock, display.CursorBlink:
			return wrap(display.ErrNotImplemented)
		default:
			return wrap(display.ErrInvalidCommand)
		}
	}
	return nil
}

// Halt clears the display.
func (d *Dev) Halt() error {
	return d.Clear()
}

// Move the cursor home (MinRow(),MinCol())
func (d *Dev) Home() error {
	return d.MoveTo(d.MinRow(), d.MinCol())
}

// Return the min column position.
func (d *Dev) MinCol() int {
	return 0
}

// Return the min row position.
func (d *Dev) MinRow() int {
	return 0
}

// Move the cursor one position. The cursor stops at the display edges.
func (d *Dev) Move(dir display.CursorDirection) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch dir {
	case display.Backward:
		if d.col > 0 {
			d.col--
		}
	case display.Forward:
		if d.col < d.opts.Cols-1 {
			d.col++
		}
	case display.Up:
		if d.row > 0 {
			d.row--
		}
	case display.Down:
		if d.row < Rows-1 {
			d.row++
		}
	default:
		return wrap(display.ErrInvalidCommand)
	}
	return nil
}

// Move the cursor to an arbitrary position.
func (d *Dev) MoveTo(row, col int) error {
	if row < d.MinRow() || row >= d.Rows() || col < d.MinCol() || col >= d.Cols() {
		return wrap(fmt.Errorf("%w: MoveTo(%d, %d)", ErrInvalidPos, row, col))
	}
	d.mu.Lock()
	d.row, d.col = row, col
	d.mu.Unlock()
	return nil
}

// Return the number of rows the display supports.
func (d *Dev) Rows() int {
	return Rows
}

// The peripheral has no power control; it is always on.
func (d *Dev) Display(on bool) error {
	if !on {
		return wrap(display.ErrNotImplemented)
	}
	return nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("JSON SysEx LCD %dx%d - %s", d.opts.Cols, Rows, d.t)
}

// Write writes p at the cursor. See WriteString.
func (d *Dev) Write(p []byte) (int, error) {
	return d.WriteString(string(p))
}

// WriteString writes text at the cursor and resends every line it touched.
// A '\n' moves the cursor to the start of the next line. Characters past the
// last column are dropped.
//
// The copy returned by Lines only changes for lines that were sent. The cursor
// only moves when every touched line was sent.
func (d *Dev) WriteString(text string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var lines [Rows][]rune
	for i, l := range d.lines {
		lines[i] = append([]rune(nil), l...)
	}
	row, col := d.row, d.col
	var dirty [Rows]bool
	for _, r := range text {
		if r == '\n' {
			if row < Rows-1 {
				row++
			}
			col = 0
			continue
		}
		if col >= d.opts.Cols {
			continue
		}
		lines[row][col] = r
		dirty[row] = true
		col++
	}
	for i, changed := range dirty {
		if !changed {
			continue
		}
		cmd := Line1
		if i == 1 {
			cmd = Line2
		}
		if err := d.send(cmd, strings.TrimRight(string(lines[i]), " ")); err != nil {
			return 0, err
		}
		d.lines[i] = lines[i]
	}
	d.row, d.col = row, col
	return len(text), nil
}

// fitLine returns text as a full width line, clipped or padded with spaces.
func (d *Dev) fitLine(text string) []rune {
	l := blankLine(d.opts.Cols)
	i := 0
	for _, r := range text {
		if i == len(l) {
			break
		}
		l[i] = r
		i++
	}
	return l
}

func (d *Dev) clearLines() {
	for i := range d.lines {
		d.lines[i] = blankLine(d.opts.Cols)
	}
}

func blankLine(cols int) []rune {
	l := make([]rune, cols)
	for i := range l {
		l[i] = ' '
	}
	return l
}

var _ display.TextDisplay = &Dev{}
var _ conn.Resource = &Dev{}
