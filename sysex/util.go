// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sysex

import (
	"fmt"
)

const SevenBitMask byte = 0b01111111

// SprintHexArray formats data as space separated 0x%02X values.
func SprintHexArray(data []byte) string {
	s := ""
	if len(data) == 0 {
		return s
	}
	for _, b := range data {
		s += fmt.Sprintf("0x%02X ", b)
	}
	return s[:len(s)-1]
}

// checkPayload validates payload before any byte of its frame is written.
func checkPayload(payload []byte, sevenBit bool) error {
	for i, b := range payload {
		if IsDelimiter(b) {
			return fmt.Errorf("%w: 0x%02X at offset %d", ErrDelimiterInPayload, b, i)
		}
		if sevenBit && b&^SevenBitMask != 0 {
			return fmt.Errorf("%w: 0x%02X at offset %d", ErrNotSevenBit, b, i)
		}
	}
	return nil
}
