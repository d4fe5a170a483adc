// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package gateway

import "net/http"

// Error is the closed set of gateway failures. Each value doubles as the
// exact response body text, so the strings are part of the external contract
// and must stay stable.
type Error string

const (
	// ErrClientInfo means the broker client could not be constructed from
	// the request's connection information.
	ErrClientInfo Error = "invalid mqtt client information"
	// ErrConnection means the connect handshake with the broker failed.
	ErrConnection Error = "broker connection failed"
	// ErrSubscription means the broker rejected the topic subscription.
	ErrSubscription Error = "topic subscription failed"
	// ErrTimeout means no message arrived on the subscription before the
	// configured wait expired.
	ErrTimeout Error = "no message received before timeout"
	// ErrReception means the subscription stream ended without a message.
	ErrReception Error = "message reception failed"
	// ErrPayload means a message payload could not be resolved to bytes.
	ErrPayload Error = "invalid message payload"
	// ErrPublish means the broker rejected a publish.
	ErrPublish Error = "publish failed"
	// ErrDisconnect means the session teardown failed.
	ErrDisconnect Error = "disconnection failure"
	// ErrHeader means a required request header is missing or unreadable.
	ErrHeader Error = "missing or invalid header"
	// ErrBrokerURL means the broker address did not parse, even after
	// defaulting the scheme.
	ErrBrokerURL Error = "invalid broker url"
	// ErrJSONFormat covers every structured-mode schema violation,
	// including an oversized document.
	ErrJSONFormat Error = "invalid json format or payload too large"
	// ErrBodySize means a header-mode body exceeded the size cap.
	ErrBodySize Error = "body too large"
	// ErrTopic means the request path did not yield a usable topic.
	ErrTopic Error = "invalid topic path"
)

func (e Error) Error() string { return string(e) }

// Status maps an error kind to its HTTP status. The mapping is total over
// the kinds above; client-side kinds map to 4xx so callers can tell "fix
// your request" from "upstream broker problem".
func (e Error) Status() int {
	switch e {
	case ErrClientInfo, ErrPayload, ErrHeader, ErrBrokerURL, ErrJSONFormat, ErrTopic:
		return http.StatusBadRequest
	case ErrConnection, ErrSubscription, ErrReception, ErrPublish, ErrDisconnect:
		return http.StatusBadGateway
	case ErrTimeout:
		return http.StatusGatewayTimeout
	case ErrBodySize:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}
