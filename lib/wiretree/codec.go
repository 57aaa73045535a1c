// Copyright 2026 The Quill Authors
// SPDX-License-Identifier: Apache-2.0

package wiretree

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// encMode is the CBOR encoder configured with Core Deterministic
// Encoding (RFC 8949 §4.2): sorted map keys, smallest integer
// encoding, no indefinite-length items. Same logical tree always
// produces identical bytes.
var encMode cbor.EncMode

// decMode is the CBOR decoder configured to accept standard CBOR.
// Unknown field numbers are silently ignored for forward
// compatibility — a document written by a newer toolchain with extra
// fields still decodes.
var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("wiretree: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("wiretree: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes a wire unit to its binary form.
func Marshal(unit *Unit) ([]byte, error) {
	data, err := encMode.Marshal(unit)
	if err != nil {
		return nil, fmt.Errorf("encoding wire tree: %w", err)
	}
	return data, nil
}

// Unmarshal decodes the binary form into a wire unit. Fields absent
// from the document keep their zero values; unknown field numbers are
// skipped.
func Unmarshal(data []byte) (*Unit, error) {
	var unit Unit
	if err := decMode.Unmarshal(data, &unit); err != nil {
		return nil, fmt.Errorf("decoding wire tree: %w", err)
	}
	return &unit, nil
}
