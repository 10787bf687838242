// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR encoding used on the router/sandbox
// boundary. Core Deterministic Encoding means the same logical payload
// always produces identical bytes, which keeps payload hashing and
// golden tests stable.
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
		// Sandbox payloads only ever use string map keys. When the
		// decode target is any-typed, pick map[string]any rather than
		// the CBOR default map[interface{}]interface{}, which nothing
		// downstream can consume.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v to CBOR using Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v. Unknown fields are ignored for
// forward compatibility.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}
