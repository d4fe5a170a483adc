// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"encoding/base64"
	"encoding/json"
)

// PayloadKind selects how a payload value is turned into bytes.
type PayloadKind string

const (
	PayloadString PayloadKind = "string"
	PayloadJSON   PayloadKind = "json"
	PayloadBase64 PayloadKind = "base64"
	PayloadRaw    PayloadKind = "raw"
)

// Payload is a declared or inferred message payload. A nil *Payload means
// the message carries no payload and resolves to empty bytes.
type Payload struct {
	Kind PayloadKind

	// Text holds the value for the string and base64 kinds.
	Text string
	// Value holds the original JSON value for the json kind.
	Value json.RawMessage
	// Data holds the verbatim bytes for the raw kind.
	Data []byte
}

// Bytes resolves the payload to the bytes that go on the wire. Base64 text
// is validated here, not at parse time, so a bad payload surfaces as
// ErrPayload during the publish session.
func (p *Payload) Bytes() ([]byte, error) {
	if p == nil {
		return []byte{}, nil
	}
	switch p.Kind {
	case PayloadString:
		return []byte(p.Text), nil
	case PayloadJSON:
		// Round-trip through the JSON text form so the output is the
		// canonical serialization, not the caller's byte layout.
		var v any
		if err := json.Unmarshal(p.Value, &v); err != nil {
			return nil, ErrPayload
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, ErrPayload
		}
		return b, nil
	case PayloadBase64:
		b, err := base64.StdEncoding.DecodeString(p.Text)
		if err != nil {
			return nil, ErrPayload
		}
		return b, nil
	case PayloadRaw:
		return p.Data, nil
	}
	return nil, ErrPayload
}
