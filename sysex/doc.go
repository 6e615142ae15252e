// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package sysex writes MIDI System-Exclusive delimited frames to a serial
// output.
//
// A frame is a single 0xF0 byte, the payload, and a single 0xF7 byte:
//
//	0xF0 <payload> 0xF7
//
// The payload is written as is. Use Opts.SevenBit to enforce MIDI data bytes.
// Frames are fire-and-forget: nothing is read back from the peer.
package sysex
