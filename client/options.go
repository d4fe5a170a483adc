// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package client

import "time"

// Defaults applied by Options.withDefaults.
const (
	DefaultConnectTimeout  = 30 * time.Second
	DefaultDisconnectGrace = 250 * time.Millisecond
	DefaultReceiveBuffer   = 1
	DefaultClientIDPrefix  = "fluxgate-"
)

// Options configures one Client.
type Options struct {
	// ConnectTimeout bounds the connect handshake.
	ConnectTimeout time.Duration
	// DisconnectGrace is how long Disconnect waits for in-flight work.
	DisconnectGrace time.Duration
	// ReceiveBuffer is the capacity of the subscription channel.
	ReceiveBuffer int
	// ClientIDPrefix prefixes the random per-session client ID.
	ClientIDPrefix string
}

func (o Options) withDefaults() Options {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.DisconnectGrace <= 0 {
		o.DisconnectGrace = DefaultDisconnectGrace
	}
	if o.ReceiveBuffer <= 0 {
		o.ReceiveBuffer = DefaultReceiveBuffer
	}
	if o.ClientIDPrefix == "" {
		o.ClientIDPrefix = DefaultClientIDPrefix
	}
	return o
}
