// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package jsonlcd

import (
	"fmt"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/goccy/go-json"
)

// MaxMessageSize is the capacity in bytes of the construction buffer. An
// encoded command object never exceeds it.
const MaxMessageSize = 200

// Command is the kind of a display command. Each kind maps to exactly one
// JSON key.
type Command uint8

const (
	Line1 Command = iota + 1 // replace display line 1
	Line2                    // replace display line 2
	Clear                    // clear the whole display
)

var commandToKeyMap = map[Command]string{
	Line1: "lcd1",
	Line2: "lcd2",
	Clear: "lcd.clear",
}

var commandToStringMap = map[Command]string{
	Line1: "Line1",
	Line2: "Line2",
	Clear: "Clear",
}

// Key returns the JSON key the peripheral dispatches on.
func (c Command) Key() string {
	return commandToKeyMap[c]
}

func (c Command) String() string {
	if v, ok := commandToStringMap[c]; ok {
		return v
	}

	return "Unknown"
}

// Single key objects. The struct tags are the wire keys.
type line1Object struct {
	Text string `json:"lcd1"`
}

type line2Object struct {
	Text string `json:"lcd2"`
}

type clearObject struct {
	Clear bool `json:"lcd.clear"`
}

// BuildOpts changes how text is encoded.
type BuildOpts struct {
	// ASCII escapes every non-ASCII character as \uXXXX so the object is 7-bit
	// clean. Characters above U+FFFF are always escaped since their UTF-8 lead
	// byte is the SysEx start delimiter.
	ASCII bool
}

// Message holds one encoded command object in a fixed-capacity buffer.
type Message struct {
	cmd  Command
	text string
	n    int
	// One extra byte for the newline the encoder terminates values with.
	buf [MaxMessageSize + 1]byte
}

// Bytes returns the encoded object. It aliases m.
func (m *Message) Bytes() []byte {
	return m.buf[:m.n]
}

// Command returns the kind of command m encodes.
func (m *Message) Command() Command {
	return m.cmd
}

// Len returns the encoded size in bytes.
func (m *Message) Len() int {
	return m.n
}

func (m *Message) String() string {
	return string(m.Bytes())
}

// BuildLine1 builds {"lcd1":text}.
func BuildLine1(text string) (Message, error) {
	return Build(Line1, text, nil)
}

// BuildLine2 builds {"lcd2":text}.
func BuildLine2(text string) (Message, error) {
	return Build(Line2, text, nil)
}

// BuildClear builds {"lcd.clear":true}.
func BuildClear() (Message, error) {
	return Build(Clear, "", nil)
}

// Build encodes cmd as a single key JSON object. text is ignored for Clear.
//
// It returns ErrBufferOverflow when the encoded object does not fit in
// MaxMessageSize bytes. Nothing is truncated.
func Build(cmd Command, text string, opts *BuildOpts) (Message, error) {
	m := Message{cmd: cmd, text: text}
	if opts == nil {
		opts = &BuildOpts{}
	}
	var v interface{}
	switch cmd {
	case Line1:
		v = line1Object{Text: text}
	case Line2:
		v = line2Object{Text: text}
	case Clear:
		v = clearObject{Clear: true}
	default:
		return m, wrap(fmt.Errorf("%w: %d", ErrUnknownCommand, cmd))
	}
	if err := m.encode(v); err != nil {
		return m, wrap(fmt.Errorf("%s: %w", cmd, err))
	}
	limit := rune(0xFFFF)
	if opts.ASCII {
		limit = utf8.RuneSelf - 1
	}
	if err := m.escapeAbove(limit); err != nil {
		return m, wrap(fmt.Errorf("%s: %w", cmd, err))
	}
	return m, nil
}

// MaxText returns the length of the longest ASCII text without characters
// needing escaping that cmd can carry.
func MaxText(cmd Command) int {
	if cmd == Clear {
		return 0
	}
	// {"<key>":""}
	return MaxMessageSize - len(cmd.Key()) - len(`{"":""}`)
}

func (m *Message) encode(v interface{}) error {
	w := fixedWriter{b: m.buf[:0]}
	enc := json.NewEncoder(&w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	m.n = len(w.b)
	if m.n > 0 && m.buf[m.n-1] == '\n' {
		m.n--
	}
	if m.n > MaxMessageSize {
		// Only reachable if the encoder did not terminate the value.
		return ErrBufferOverflow
	}
	return nil
}

// escapeAbove rewrites every rune greater than limit as a JSON \u escape.
// Such runes can only appear inside string values.
func (m *Message) escapeAbove(limit rune) error {
	src := m.Bytes()
	i := 0
	for i < len(src) && src[i] < utf8.RuneSelf {
		i++
	}
	if i == len(src) {
		return nil
	}
	var out [MaxMessageSize]byte
	n := copy(out[:], src[:i])
	for i < len(src) {
		r, size := utf8.DecodeRune(src[i:])
		var esc []rune
		switch {
		case r <= limit:
			if n+size > len(out) {
				return ErrBufferOverflow
			}
			n += copy(out[n:], src[i:i+size])
			i += size
			continue
		case r > 0xFFFF:
			r1, r2 := utf16.EncodeRune(r)
			esc = []rune{r1, r2}
		default:
			esc = []rune{r}
		}
		for _, e := range esc {
			if n+6 > len(out) {
				return ErrBufferOverflow
			}
			n += copy(out[n:], fmt.Sprintf(`\u%04x`, e))
		}
		i += size
	}
	m.n = copy(m.buf[:], out[:n])
	return nil
}

// fixedWriter appends into a slice without ever growing it.
type fixedWriter struct {
	b []byte
}

func (w *fixedWriter) Write(p []byte) (int, error) {
	if len(w.b)+len(p) > cap(w.b) {
		return 0, ErrBufferOverflow
	}
	w.b = append(w.b, p...)
	return len(p), nil
}
