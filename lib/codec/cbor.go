// Copyright 2026 The AgentMeta Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides deterministic CBOR encoding for cache entries.
//
// Resolution results written to the remote cache tier must be
// reproducible: the same logical entry always serializes to identical
// bytes, so cache writes from concurrent resolutions of the same URI
// are byte-equivalent and last-write-wins races are invisible. Core
// Deterministic Encoding (RFC 8949 §4.2) gives that guarantee.
package codec

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var encMode cbor.EncMode
var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// Cache entries only ever use string map keys. When decoding
		// into an any-typed target the decoder must pick a concrete
		// map type; the CBOR default map[any]any is incompatible with
		// encoding/json and everything downstream that expects
		// map[string]any.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v using Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v. Unknown fields are ignored for
// forward compatibility with entries written by newer versions.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}
