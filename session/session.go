// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package session drives the connect → operate → disconnect lifecycle of a
// broker client for one HTTP request. Sessions add no resilience of their
// own: no retry, no pooling, no compensation — the first failure ends the
// request with a taxonomy error.
package session

import (
	"context"

	"github.com/absmach/fluxgate/client"
	"github.com/absmach/fluxgate/gateway"
)

// Client is the broker client a session drives. *client.Client satisfies
// it; tests substitute fakes.
type Client interface {
	Connect(ctx context.Context, creds *gateway.Credentials) error
	Publish(ctx context.Context, topic string, payload []byte, qos byte) error
	Subscribe(ctx context.Context, topic string, qos byte) error
	Messages() <-chan client.Message
	Disconnect() error
}

// Dialer builds a fresh client for one broker URL. Each session dials its
// own client and tears it down before returning.
type Dialer func(brokerURL string) (Client, error)
