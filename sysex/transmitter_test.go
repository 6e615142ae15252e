// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sysex

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"periph.io/x/conn/v3/conntest"
)

// port records writes and flushes the way a UART driver exposes them.
type port struct {
	mu      sync.Mutex
	out     bytes.Buffer
	events  []string
	closed  bool
	drainCh chan struct{}
}

func (p *port) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, fmt.Sprintf("write %d", len(b)))
	return p.out.Write(b)
}

func (p *port) Drain() error {
	if p.drainCh != nil {
		<-p.drainCh
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, "drain")
	return nil
}

func (p *port) Close() error {
	p.closed = true
	return nil
}

// flushWriter only has the bufio style Flush() error.
type flushWriter struct {
	bytes.Buffer
	flushed int
	err     error
}

func (f *flushWriter) Flush() error {
	f.flushed++
	return f.err
}

// plainFlusher has a Flush() without error, like some USB CDC wrappers.
type plainFlusher struct {
	bytes.Buffer
	flushed int
}

func (f *plainFlusher) Flush() {
	f.flushed++
}

func TestTransmitDrains(t *testing.T) {
	p := &port{}
	tx := NewTransmitter(p, nil)
	payload := []byte(`{"lcd1":"Hello"}`)
	if err := tx.Transmit(payload); err != nil {
		t.Fatal(err)
	}
	want := Frame(payload)
	if !bytes.Equal(p.out.Bytes(), want) {
		t.Errorf("wire = %s, want %s", SprintHexArray(p.out.Bytes()), SprintHexArray(want))
	}
	if len(p.events) != 2 || p.events[1] != "drain" {
		t.Errorf("expected a write followed by a drain, got %v", p.events)
	}
}

func TestTransmitFlushVariants(t *testing.T) {
	fw := &flushWriter{}
	if err := NewTransmitter(fw, nil).Transmit([]byte("{}")); err != nil {
		t.Fatal(err)
	}
	if fw.flushed != 1 {
		t.Errorf("Flush() error called %d times", fw.flushed)
	}

	pf := &plainFlusher{}
	if err := NewTransmitter(pf, nil).Transmit([]byte("{}")); err != nil {
		t.Fatal(err)
	}
	if pf.flushed != 1 {
		t.Errorf("Flush() called %d times", pf.flushed)
	}

	failing := &flushWriter{err: errors.New("uart gone")}
	if err := NewTransmitter(failing, nil).Transmit([]byte("{}")); err == nil {
		t.Error("expected flush error to be returned")
	}
}

func TestTransmitRejectsBeforeWriting(t *testing.T) {
	tests := []struct {
		name    string
		opts    *Opts
		payload []byte
		want    error
	}{
		{"start delimiter", nil, []byte{'{', 0xF0, '}'}, ErrDelimiterInPayload},
		{"end delimiter", nil, []byte{'{', 0xF7, '}'}, ErrDelimiterInPayload},
		{"eight bit", &Opts{SevenBit: true}, []byte("{\"lcd1\":\"\xc3\xa9\"}"), ErrNotSevenBit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &port{}
			err := NewTransmitter(p, tt.opts).Transmit(tt.payload)
			if !errors.Is(err, tt.want) {
				t.Errorf("Transmit() = %v, want %v", err, tt.want)
			}
			if p.out.Len() != 0 || len(p.events) != 0 {
				t.Errorf("rejected payload reached the wire: %v", p.events)
			}
		})
	}
}

func TestTransmitEightBitAllowedByDefault(t *testing.T) {
	p := &port{}
	if err := NewTransmitter(p, nil).Transmit([]byte("{\"lcd1\":\"\xc3\xa9\"}")); err != nil {
		t.Fatal(err)
	}
}

func TestTransmitIdenticalFrames(t *testing.T) {
	p := &port{}
	tx := NewTransmitter(p, nil)
	payload := []byte(`{"lcd.clear":true}`)
	for range 2 {
		if err := tx.Transmit(payload); err != nil {
			t.Fatal(err)
		}
	}
	out := p.out.Bytes()
	n := FrameLen(len(payload))
	if len(out) != 2*n || !bytes.Equal(out[:n], out[n:]) {
		t.Errorf("frames differ: %s", SprintHexArray(out))
	}
	if s := tx.Stats(); s.Frames != 2 || s.Bytes != uint64(2*n) || s.LastErr != nil {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestTransmitConcurrentFramesDoNotInterleave(t *testing.T) {
	p := &port{}
	tx := NewTransmitter(p, nil)
	const workers = 8
	const frames = 50
	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			payload := []byte(fmt.Sprintf(`{"lcd1":"worker %d"}`, w))
			for range frames {
				if err := tx.Transmit(payload); err != nil {
					t.Error(err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	out := p.out.Bytes()
	count := 0
	for len(out) > 0 {
		if out[0] != byte(StartSysEx) {
			t.Fatalf("frame %d does not start with 0xF0: %s", count, SprintHexArray(out[:1]))
		}
		end := bytes.IndexByte(out, byte(EndSysEx))
		if end < 0 {
			t.Fatalf("frame %d is not terminated", count)
		}
		body := out[1:end]
		if bytes.IndexByte(body, byte(StartSysEx)) >= 0 {
			t.Fatalf("frame %d interleaved: %q", count, body)
		}
		if !bytes.HasPrefix(body, []byte(`{"lcd1":"worker `)) {
			t.Fatalf("frame %d has unexpected payload %q", count, body)
		}
		out = out[end+1:]
		count++
	}
	if count != workers*frames {
		t.Errorf("got %d frames, want %d", count, workers*frames)
	}
}

func TestTransmitStallTimeout(t *testing.T) {
	p := &port{drainCh: make(chan struct{})}
	defer close(p.drainCh)
	tx := NewTransmitter(p, &Opts{Timeout: 50 * time.Millisecond})

	err := tx.Transmit([]byte(`{"lcd.clear":true}`))
	if !errors.Is(err, ErrTransportStall) {
		t.Fatalf("Transmit() = %v, want %v", err, ErrTransportStall)
	}
	if err := tx.Transmit([]byte(`{"lcd.clear":true}`)); !errors.Is(err, ErrTransmitterBroken) {
		t.Errorf("Transmit() after stall = %v, want %v", err, ErrTransmitterBroken)
	}
	if s := tx.Stats(); s.Frames != 0 || !errors.Is(s.LastErr, ErrTransportStall) {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestTransmitContextCanceled(t *testing.T) {
	p := &port{}
	tx := NewTransmitter(p, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := tx.TransmitContext(ctx, []byte(`{"lcd.clear":true}`))
	if !errors.Is(err, context.Canceled) || errors.Is(err, ErrTransportStall) {
		t.Errorf("TransmitContext() = %v, want %v", err, context.Canceled)
	}
	if p.out.Len() != 0 || len(p.events) != 0 {
		t.Errorf("canceled frame reached the wire: %v", p.events)
	}
	if err := tx.Transmit([]byte(`{"lcd.clear":true}`)); err != nil {
		t.Errorf("Transmit() after cancel = %v", err)
	}
	if !bytes.Equal(p.out.Bytes(), Frame([]byte(`{"lcd.clear":true}`))) {
		t.Errorf("wire = %s", SprintHexArray(p.out.Bytes()))
	}
}

func TestTransmitContextCanceledWhileDraining(t *testing.T) {
	p := &port{drainCh: make(chan struct{})}
	defer close(p.drainCh)
	tx := NewTransmitter(p, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		// Cancel once the frame is written and the drain is pending.
		for {
			p.mu.Lock()
			n := len(p.events)
			p.mu.Unlock()
			if n != 0 {
				cancel()
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()
	err := tx.TransmitContext(ctx, []byte(`{"lcd.clear":true}`))
	if !errors.Is(err, ErrTransportStall) {
		t.Errorf("TransmitContext() = %v, want %v", err, ErrTransportStall)
	}
	if err := tx.Transmit([]byte(`{"lcd.clear":true}`)); !errors.Is(err, ErrTransmitterBroken) {
		t.Errorf("Transmit() after stall = %v, want %v", err, ErrTransmitterBroken)
	}
}

func TestTransmitTimeoutNotReached(t *testing.T) {
	p := &port{}
	tx := NewTransmitter(p, &Opts{Timeout: time.Second})
	if err := tx.Transmit([]byte(`{"lcd2":"ok"}`)); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(p.out.Bytes(), Frame([]byte(`{"lcd2":"ok"}`))) {
		t.Errorf("wire = %s", SprintHexArray(p.out.Bytes()))
	}
}

func TestConnTransmitter(t *testing.T) {
	record := &conntest.Record{}
	tx := NewConnTransmitter(record, nil)
	payload := []byte(`{"lcd2":"World"}`)
	if err := tx.Transmit(payload); err != nil {
		t.Fatal(err)
	}
	if len(record.Ops) != 1 {
		t.Fatalf("expected a single transaction, got %d", len(record.Ops))
	}
	if !bytes.Equal(record.Ops[0].W, Frame(payload)) {
		t.Errorf("Tx() = %s", SprintHexArray(record.Ops[0].W))
	}
}

func TestConnTransmitterPlayback(t *testing.T) {
	pb := &conntest.Playback{
		Ops:       []conntest.IO{{W: Frame([]byte(`{"lcd.clear":true}`))}},
		DontPanic: true,
	}
	tx := NewConnTransmitter(pb, nil)
	if err := tx.Transmit([]byte(`{"lcd.clear":true}`)); err != nil {
		t.Fatal(err)
	}
	if err := pb.Close(); err != nil {
		t.Error(err)
	}
}

func TestClose(t *testing.T) {
	p := &port{}
	tx := NewTransmitter(p, nil)
	if err := tx.Close(); err != nil {
		t.Fatal(err)
	}
	if !p.closed {
		t.Error("Close() did not close the port")
	}
	if err := tx.Transmit([]byte("{}")); !errors.Is(err, ErrClosed) {
		t.Errorf("Transmit() after Close() = %v, want %v", err, ErrClosed)
	}
	if err := tx.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
}

// closingConn is a conn.Conn that can be closed, like a USB bridge handle.
type closingConn struct {
	conntest.Record
	closed bool
}

func (c *closingConn) Close() error {
	c.closed = true
	return nil
}

func TestCloseConn(t *testing.T) {
	c := &closingConn{}
	tx := NewConnTransmitter(c, nil)
	if err := tx.Close(); err != nil {
		t.Fatal(err)
	}
	if !c.closed {
		t.Error("Close() did not close the conn.Conn")
	}
	if err := tx.Transmit([]byte("{}")); !errors.Is(err, ErrClosed) {
		t.Errorf("Transmit() after Close() = %v, want %v", err, ErrClosed)
	}
}

func TestNoTransport(t *testing.T) {
	tx := NewTransmitter(nil, nil)
	if err := tx.Transmit([]byte("{}")); !errors.Is(err, ErrNoTransport) {
		t.Errorf("Transmit() = %v, want %v", err, ErrNoTransport)
	}
}

func TestString(t *testing.T) {
	if s := NewConnTransmitter(&conntest.Record{}, nil).String(); s != "sysex{record}" {
		t.Errorf("String() = %q", s)
	}
	if s := NewTransmitter(&port{}, nil).String(); s != "sysex{*sysex.port}" {
		t.Errorf("String() = %q", s)
	}
}
