// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sysex

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"periph.io/x/conn/v3"
)

// Opts holds the configuration options for a Transmitter.
type Opts struct {
	// Timeout bounds the write and flush of a single frame. Zero blocks until
	// the transport returns, which is the behavior of a local UART.
	Timeout time.Duration
	// SevenBit rejects payloads containing bytes above 0x7F so every byte
	// between the delimiters is a valid MIDI data byte.
	SevenBit bool
}

// DefaultOpts is the recommended default options.
var DefaultOpts = Opts{}

// Stats reports what a Transmitter sent so far.
type Stats struct {
	Frames  uint64
	Bytes   uint64
	LastErr error
}

// drainer is implemented by go.bug.st/serial.Port.
type drainer interface {
	Drain() error
}

type flusher interface {
	Flush()
}

type flusherErr interface {
	Flush() error
}

// Transmitter writes SysEx frames to a serial output. It is the only writer
// of the output for as long as it lives.
//
// Each frame is written and flushed before Transmit returns. Calls from
// multiple goroutines are serialized so frames never interleave on the wire.
type Transmitter struct {
	opts Opts

	mu     sync.Mutex
	w      io.Writer
	c      conn.Conn
	buf    []byte
	stats  Stats
	broken bool
	closed bool
}

// NewTransmitter returns a Transmitter writing to w. If w implements
// Drain() error, Flush() error or Flush(), it is called after every frame.
func NewTransmitter(w io.Writer, opts *Opts) *Transmitter {
	if opts == nil {
		opts = &DefaultOpts
	}
	return &Transmitter{w: w, opts: *opts, buf: make([]byte, 0, 256)}
}

// NewConnTransmitter returns a Transmitter sending each frame as a single
// write transaction on c.
func NewConnTransmitter(c conn.Conn, opts *Opts) *Transmitter {
	if opts == nil {
		opts = &DefaultOpts
	}
	return &Transmitter{c: c, opts: *opts, buf: make([]byte, 0, 256)}
}

func (t *Transmitter) String() string {
	switch {
	case t.c != nil:
		return fmt.Sprintf("sysex{%s}", t.c)
	case t.w != nil:
		return fmt.Sprintf("sysex{%T}", t.w)
	}
	return "sysex{}"
}

// Transmit writes StartSysEx, payload and EndSysEx, then blocks until the
// transport drained. The caller may reuse payload as soon as it returns.
//
// The payload is validated before anything is written so a rejected payload
// never leaves a partial frame on the wire.
func (t *Transmitter) Transmit(payload []byte) error {
	return t.TransmitContext(context.Background(), payload)
}

// TransmitContext is Transmit with a context bounding the wait for the
// transport. Opts.Timeout applies in addition to ctx.
//
// If ctx is done before the first byte is written, ctx.Err() is returned and
// the Transmitter stays usable. When the wait is abandoned after writing
// began, the frame may be partially written, so the Transmitter refuses any
// further frame with ErrTransmitterBroken.
func (t *Transmitter) TransmitContext(ctx context.Context, payload []byte) error {
	if err := checkPayload(payload, t.opts.SevenBit); err != nil {
		return wrap(err)
	}
	if err := ctx.Err(); err != nil {
		return wrap(err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	switch {
	case t.closed:
		return wrap(ErrClosed)
	case t.broken:
		return wrap(ErrTransmitterBroken)
	case t.w == nil && t.c == nil:
		return wrap(ErrNoTransport)
	}

	t.buf = AppendFrame(t.buf[:0], payload)
	frame := t.buf

	var err error
	if t.opts.Timeout == 0 && ctx.Done() == nil {
		err = t.send(frame)
	} else {
		err = t.sendBounded(ctx, frame)
	}
	t.stats.LastErr = err
	if err != nil {
		return wrap(err)
	}
	t.stats.Frames++
	t.stats.Bytes += uint64(len(frame))
	return nil
}

// States of a bounded send.
const (
	sendPending int32 = iota
	sendStarted
	sendAbandoned
)

// sendBounded runs send in a goroutine and gives up waiting on it when the
// timeout or ctx expires. Must be called with mu held.
func (t *Transmitter) sendBounded(ctx context.Context, frame []byte) error {
	if t.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.opts.Timeout)
		defer cancel()
	}
	// The goroutine may outlive this call; it must not share t.buf.
	own := make([]byte, len(frame))
	copy(own, frame)
	var state atomic.Int32
	done := make(chan error, 1)
	go func() {
		if !state.CompareAndSwap(sendPending, sendStarted) {
			return
		}
		done <- t.send(own)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if state.CompareAndSwap(sendPending, sendAbandoned) {
			// Nothing was written.
			return ctx.Err()
		}
		t.broken = true
		return fmt.Errorf("%w: %v", ErrTransportStall, ctx.Err())
	}
}

func (t *Transmitter) send(frame []byte) error {
	if t.c != nil {
		return t.c.Tx(frame, nil)
	}
	n, err := t.w.Write(frame)
	if err != nil {
		return err
	}
	if n != len(frame) {
		return io.ErrShortWrite
	}
	return t.flush()
}

func (t *Transmitter) flush() error {
	switch w := t.w.(type) {
	case drainer:
		return w.Drain()
	case flusherErr:
		return w.Flush()
	case flusher:
		w.Flush()
	}
	return nil
}

// Stats returns a snapshot of the counters.
func (t *Transmitter) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

// Halt implements conn.Resource. There is nothing in flight between calls.
func (t *Transmitter) Halt() error {
	return nil
}

// Close closes the underlying writer or conn.Conn if it implements
// io.Closer. Further frames are refused with ErrClosed.
func (t *Transmitter) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if cl, ok := t.w.(io.Closer); ok {
		return wrap(cl.Close())
	}
	if cl, ok := t.c.(io.Closer); ok {
		return wrap(cl.Close())
	}
	return nil
}

var _ conn.Resource = &Transmitter{}
