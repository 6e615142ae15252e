// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package jsonlcd

import (
	"errors"
	"fmt"
)

var (
	ErrBufferOverflow = errors.New("encoded command exceeds the message buffer")
	ErrUnknownCommand = errors.New("unknown command")
	ErrInvalidPos     = errors.New("invalid cursor position")
)

func wrap(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("jsonlcd: %w", err)
}
