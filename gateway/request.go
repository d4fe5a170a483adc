// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package gateway holds the normalized request model for the HTTP↔MQTT
// gateway: parsing of structured and header-mode publish requests, payload
// resolution, and the error taxonomy surfaced to HTTP callers.
package gateway

import (
	"bytes"
	"encoding/json"
	"mime"
	"net/http"
	"net/url"
)

// MaxBodySize is the default cap on request bodies in both input modes.
const MaxBodySize int64 = 16 << 20

// DefaultQoS applies when a message does not declare a QoS level.
const DefaultQoS byte = 2

// GroupShape records which structural variant a message group was written
// in. All shapes execute identically; the variant only matters for
// round-tripping and diagnostics.
type GroupShape int

const (
	// GroupFlat is a single message spelled directly on the target object.
	GroupFlat GroupShape = iota
	// GroupWrapped is a single message under an explicit "message" key.
	GroupWrapped
	// GroupList is an ordered list under "messages" (or its "message" alias).
	GroupList
)

// PublishRequest is the normalized form of one publish call: an ordered
// sequence of broker targets, each with its own messages. Order drives
// execution order; targets are never processed concurrently.
type PublishRequest struct {
	Targets []Target
}

// Target is one broker plus the messages to send it.
type Target struct {
	URL         *url.URL
	Credentials *Credentials
	Group       Group
}

// Credentials authenticate a broker connection. Both fields are always set;
// a request supplying only one of the pair normalizes to no credentials.
type Credentials struct {
	Username string
	Password string
}

// Group is the normalized, order-preserving message sequence for one target.
type Group struct {
	Shape    GroupShape
	Messages []Message
}

// Message is one publish operation: topic, optional payload, QoS.
type Message struct {
	Topic   string
	Payload *Payload
	QoS     byte
}

// ParsePublish turns an inbound HTTP request into a PublishRequest.
//
// A JSON content type selects structured mode: the body is a broker-target
// document (object or array). Any other content type selects header mode:
// broker and credentials come from headers, the topic from the path, and
// the raw body becomes a single QoS 2 message.
func ParsePublish(r *http.Request, maxBody int64) (*PublishRequest, error) {
	if isJSONContentType(r.Header.Get("Content-Type")) {
		body, err := ReadBody(r, maxBody)
		if err != nil {
			// Structured mode folds the size violation into the
			// single schema-failure condition.
			return nil, ErrJSONFormat
		}
		return ParseDocument(body)
	}

	info, err := ExtractConnectInfo(r.Header)
	if err != nil {
		return nil, err
	}
	topic, err := TopicFromPath(r.URL.Path)
	if err != nil {
		return nil, err
	}
	body, err := ReadBody(r, maxBody)
	if err != nil {
		return nil, ErrBodySize
	}
	return &PublishRequest{Targets: []Target{{
		URL:         info.Broker,
		Credentials: info.Credentials,
		Group: Group{Shape: GroupFlat, Messages: []Message{{
			Topic:   topic,
			Payload: &Payload{Kind: PayloadRaw, Data: body},
			QoS:     DefaultQoS,
		}}},
	}}}, nil
}

func isJSONContentType(ct string) bool {
	if ct == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(ct)
	return err == nil && mt == "application/json"
}

// ParseDocument parses a structured publish document: a single broker-target
// object or an array of them. Every schema violation, including an unknown
// payload type, out-of-range QoS or malformed URL, is reported as the single
// ErrJSONFormat condition; there is no partial acceptance.
func ParseDocument(body []byte) (*PublishRequest, error) {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, ErrJSONFormat
	}

	var raws []rawTarget
	if trimmed[0] == '[' {
		if err := json.Unmarshal(body, &raws); err != nil {
			return nil, ErrJSONFormat
		}
	} else {
		var rt rawTarget
		if err := json.Unmarshal(body, &rt); err != nil {
			return nil, ErrJSONFormat
		}
		raws = []rawTarget{rt}
	}

	req := &PublishRequest{Targets: make([]Target, 0, len(raws))}
	for _, rt := range raws {
		target, err := buildTarget(rt)
		if err != nil {
			return nil, err
		}
		req.Targets = append(req.Targets, target)
	}
	return req, nil
}

// rawTarget is the loose wire form of a broker target. Group and payload
// variants are kept raw so the shape discriminators below can apply their
// documented precedence instead of relying on field declaration order.
type rawTarget struct {
	Broker   *string `json:"broker"`
	Host     *string `json:"host"`
	Hostname *string `json:"hostname"`

	Username *string `json:"username"`
	Password *string `json:"password"`

	Message  json.RawMessage `json:"message"`
	Messages json.RawMessage `json:"messages"`

	// Flat-shape message fields, spelled directly on the target.
	Topic       *string         `json:"topic"`
	Payload     json.RawMessage `json:"payload"`
	PayloadType *string         `json:"payloadType"`
	QoS         *int            `json:"qos"`
}

func (rt rawTarget) flatMessage() rawMessage {
	return rawMessage{Topic: rt.Topic, Payload: rt.Payload, PayloadType: rt.PayloadType, QoS: rt.QoS}
}

// rawMessage is the loose wire form of one message.
type rawMessage struct {
	Topic       *string         `json:"topic"`
	Payload     json.RawMessage `json:"payload"`
	PayloadType *string         `json:"payloadType"`
	QoS         *int            `json:"qos"`
}

func buildTarget(rt rawTarget) (Target, error) {
	addr, err := brokerAddress(rt)
	if err != nil {
		return Target{}, err
	}
	u, err := ParseBrokerURL(addr)
	if err != nil {
		return Target{}, ErrJSONFormat
	}

	var creds *Credentials
	if rt.Username != nil && rt.Password != nil {
		creds = &Credentials{Username: *rt.Username, Password: *rt.Password}
	}

	group, err := buildGroup(rt)
	if err != nil {
		return Target{}, err
	}

	return Target{URL: u, Credentials: creds, Group: group}, nil
}

// brokerAddress resolves the aliased broker keys. Exactly one of
// broker/host/hostname must be present.
func brokerAddress(rt rawTarget) (string, error) {
	var addr *string
	for _, candidate := range []*string{rt.Broker, rt.Host, rt.Hostname} {
		if candidate == nil {
			continue
		}
		if addr != nil {
			return "", ErrJSONFormat
		}
		addr = candidate
	}
	if addr == nil {
		return "", ErrJSONFormat
	}
	return *addr, nil
}

// buildGroup applies the message-group discriminator. Precedence is a
// documented contract: flat message first, then the wrapped single message,
// then the message list. The "message" key doubles as an alias for the list
// shape when its value is an array.
func buildGroup(rt rawTarget) (Group, error) {
	if rt.Topic != nil {
		msg, err := buildMessage(rt.flatMessage())
		if err != nil {
			return Group{}, err
		}
		return Group{Shape: GroupFlat, Messages: []Message{msg}}, nil
	}

	if rt.Message != nil {
		if isJSONArray(rt.Message) {
			return buildList(rt.Message)
		}
		var rm rawMessage
		if err := json.Unmarshal(rt.Message, &rm); err != nil {
			return Group{}, ErrJSONFormat
		}
		msg, err := buildMessage(rm)
		if err != nil {
			return Group{}, err
		}
		return Group{Shape: GroupWrapped, Messages: []Message{msg}}, nil
	}

	if rt.Messages != nil {
		return buildList(rt.Messages)
	}

	return Group{}, ErrJSONFormat
}

func buildList(raw json.RawMessage) (Group, error) {
	var rms []rawMessage
	if err := json.Unmarshal(raw, &rms); err != nil {
		return Group{}, ErrJSONFormat
	}
	msgs := make([]Message, 0, len(rms))
	for _, rm := range rms {
		msg, err := buildMessage(rm)
		if err != nil {
			return Group{}, err
		}
		msgs = append(msgs, msg)
	}
	return Group{Shape: GroupList, Messages: msgs}, nil
}

func buildMessage(rm rawMessage) (Message, error) {
	if rm.Topic == nil || *rm.Topic == "" {
		return Message{}, ErrJSONFormat
	}

	qos := DefaultQoS
	if rm.QoS != nil {
		// Out-of-range QoS rejects the whole document, never clamps.
		if *rm.QoS < 0 || *rm.QoS > 2 {
			return Message{}, ErrJSONFormat
		}
		qos = byte(*rm.QoS)
	}

	payload, err := buildPayload(rm)
	if err != nil {
		return Message{}, err
	}

	return Message{Topic: *rm.Topic, Payload: payload, QoS: qos}, nil
}

// buildPayload applies the payload discriminator: the typed shape is tried
// first because the untyped shape is structurally a superset of it. An
// unknown payloadType tag is a hard failure, not a string fallback.
func buildPayload(rm rawMessage) (*Payload, error) {
	value := rm.Payload
	if isJSONNull(value) {
		value = nil
	}

	if rm.PayloadType != nil {
		return buildTypedPayload(*rm.PayloadType, value)
	}
	if value == nil {
		return nil, nil
	}

	// Untyped shape: a bare string, implying string encoding.
	var s string
	if err := json.Unmarshal(value, &s); err != nil {
		return nil, ErrJSONFormat
	}
	return &Payload{Kind: PayloadString, Text: s}, nil
}

func buildTypedPayload(kind string, value json.RawMessage) (*Payload, error) {
	switch PayloadKind(kind) {
	case PayloadString:
		if value == nil {
			return nil, nil
		}
		s, err := stringOrNumber(value)
		if err != nil {
			return nil, err
		}
		return &Payload{Kind: PayloadString, Text: s}, nil
	case PayloadJSON:
		if value == nil {
			return nil, nil
		}
		return &Payload{Kind: PayloadJSON, Value: value}, nil
	case PayloadBase64:
		if value == nil {
			return nil, nil
		}
		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			return nil, ErrJSONFormat
		}
		return &Payload{Kind: PayloadBase64, Text: s}, nil
	case PayloadRaw:
		if value == nil {
			return nil, nil
		}
		data, err := byteArray(value)
		if err != nil {
			return nil, err
		}
		return &Payload{Kind: PayloadRaw, Data: data}, nil
	}
	return nil, ErrJSONFormat
}

// stringOrNumber accepts a JSON string, or a JSON number which is encoded
// as its canonical text.
func stringOrNumber(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	return "", ErrJSONFormat
}

// byteArray decodes a JSON array of integers in [0,255].
func byteArray(raw json.RawMessage) ([]byte, error) {
	var nums []int
	if err := json.Unmarshal(raw, &nums); err != nil {
		return nil, ErrJSONFormat
	}
	data := make([]byte, len(nums))
	for i, n := range nums {
		if n < 0 || n > 255 {
			return nil, ErrJSONFormat
		}
		data[i] = byte(n)
	}
	return data, nil
}

func isJSONArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '['
}

func isJSONNull(raw json.RawMessage) bool {
	return len(raw) > 0 && bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
