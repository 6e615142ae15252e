// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sysex

type (
	MessageType uint8
)

const (
	StartSysEx MessageType = 0xF0 // first byte of a frame
	EndSysEx   MessageType = 0xF7 // last byte of a frame
)

var messageTypeToStringMap = map[MessageType]string{
	StartSysEx: "StartSysEx",
	EndSysEx:   "EndSysEx",
}

func (m MessageType) String() string {
	if v, ok := messageTypeToStringMap[m]; ok {
		return v
	}

	return "Unknown"
}

// IsDelimiter reports whether b is one of the frame delimiters.
func IsDelimiter(b byte) bool {
	return b == byte(StartSysEx) || b == byte(EndSysEx)
}

// FrameLen returns the number of bytes a frame carrying n payload bytes
// occupies on the wire.
func FrameLen(n int) int {
	return n + 2
}

// Frame returns payload wrapped between StartSysEx and EndSysEx.
func Frame(payload []byte) []byte {
	return AppendFrame(make([]byte, 0, FrameLen(len(payload))), payload)
}

// AppendFrame appends the frame for payload to dst and returns the extended
// slice.
func AppendFrame(dst, payload []byte) []byte {
	dst = append(dst, byte(StartSysEx))
	dst = append(dst, payload...)
	return append(dst, byte(EndSysEx))
}
