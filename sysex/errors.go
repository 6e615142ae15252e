// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sysex

import (
	"errors"
	"fmt"
)

var (
	ErrDelimiterInPayload = errors.New("payload contains a sysex delimiter byte")
	ErrNotSevenBit        = errors.New("payload byte exceeds 0x7F")
	ErrTransportStall     = errors.New("transport did not drain")
	ErrTransmitterBroken  = errors.New("transmitter is unusable after a stalled frame")
	ErrClosed             = errors.New("transmitter closed")
	ErrNoTransport        = errors.New("no transport")
)

func wrap(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("sysex: %w", err)
}
