// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package sysexlcd is a container for the packages driving a character LCD
// peripheral over a JSON-over-SysEx serial link.
//
// sysex frames and transmits payloads, jsonlcd builds the display commands,
// sysexreg names the serial links and lcdpreview shows the result on a
// terminal.
package sysexlcd
