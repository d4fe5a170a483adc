// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package client wraps the Eclipse Paho MQTT client behind the small
// connect/publish/subscribe/disconnect surface a gateway session needs.
// One Client serves exactly one session; it is never reused.
package client

import (
	"context"
	"errors"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/absmach/fluxgate/gateway"
)

// Message is one message received from a subscription.
type Message struct {
	Topic   string
	Payload []byte
}

// Client is a single-use MQTT client bound to one broker URL.
type Client struct {
	opts *mqtt.ClientOptions
	cfg  Options
	paho mqtt.Client

	mu       sync.Mutex
	closed   bool
	messages chan Message
}

// New builds a client for the given broker URL. The URL must already be
// normalized (explicit scheme); paho accepts tcp, ssl, ws and wss.
func New(brokerURL string, cfg Options) (*Client, error) {
	if brokerURL == "" {
		return nil, errors.New("broker url cannot be empty")
	}
	cfg = cfg.withDefaults()

	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(cfg.ClientIDPrefix + uuid.NewString()[:8]).
		SetCleanSession(true).
		SetAutoReconnect(false).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetConnectRetry(false)

	if len(opts.Servers) == 0 {
		// AddBroker drops URLs it cannot parse.
		return nil, errors.New("unusable broker url: " + brokerURL)
	}

	c := &Client{
		opts:     opts,
		cfg:      cfg,
		messages: make(chan Message, cfg.ReceiveBuffer),
	}
	opts.SetConnectionLostHandler(func(_ mqtt.Client, _ error) {
		c.closeMessages()
	})
	return c, nil
}

// Connect dials the broker, anonymously unless credentials are given.
func (c *Client) Connect(ctx context.Context, creds *gateway.Credentials) error {
	if creds != nil {
		c.opts.SetUsername(creds.Username)
		c.opts.SetPassword(creds.Password)
	}
	c.paho = mqtt.NewClient(c.opts)
	return c.wait(ctx, c.paho.Connect())
}

// Publish sends one message and waits for the broker's acknowledgment as
// required by the QoS level.
func (c *Client) Publish(ctx context.Context, topic string, payload []byte, qos byte) error {
	return c.wait(ctx, c.paho.Publish(topic, qos, false, payload))
}

// Subscribe registers a subscription whose messages are delivered on the
// channel returned by Messages.
func (c *Client) Subscribe(ctx context.Context, topic string, qos byte) error {
	return c.wait(ctx, c.paho.Subscribe(topic, qos, func(_ mqtt.Client, m mqtt.Message) {
		c.deliver(Message{Topic: m.Topic(), Payload: m.Payload()})
	}))
}

// Messages returns the subscription delivery channel. The channel is closed
// when the broker connection is lost, so a receive reporting a closed
// channel means the stream ended without a message.
func (c *Client) Messages() <-chan Message {
	return c.messages
}

// Disconnect tears the connection down, allowing the configured grace
// period for in-flight work.
func (c *Client) Disconnect() error {
	if c.paho != nil && c.paho.IsConnected() {
		c.paho.Disconnect(uint(c.cfg.DisconnectGrace.Milliseconds()))
	}
	c.closeMessages()
	return nil
}

func (c *Client) wait(ctx context.Context, tok mqtt.Token) error {
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) deliver(m Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.messages <- m:
	default:
		// Session consumes only the first message; drop the backlog.
	}
}

func (c *Client) closeMessages() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.messages)
	}
}
