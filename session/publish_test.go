// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/absmach/fluxgate/client"
	"github.com/absmach/fluxgate/gateway"
)

var errBoom = errors.New("boom")

// fakeClient records operations in order and fails the ones listed in fail.
type fakeClient struct {
	url  string
	ops  *[]string
	fail map[string]error

	messages chan client.Message
}

func newFakeClient(url string, ops *[]string, fail map[string]error) *fakeClient {
	return &fakeClient{url: url, ops: ops, fail: fail, messages: make(chan client.Message, 1)}
}

func (f *fakeClient) record(op string) error {
	*f.ops = append(*f.ops, f.url+":"+op)
	return f.fail[op]
}

func (f *fakeClient) Connect(_ context.Context, creds *gateway.Credentials) error {
	if creds != nil {
		return f.record("connect:" + creds.Username)
	}
	return f.record("connect")
}

func (f *fakeClient) Publish(_ context.Context, topic string, payload []byte, qos byte) error {
	return f.record(fmt.Sprintf("publish:%s:%s:%d", topic, payload, qos))
}

func (f *fakeClient) Subscribe(_ context.Context, topic string, qos byte) error {
	return f.record(fmt.Sprintf("subscribe:%s:%d", topic, qos))
}

func (f *fakeClient) Messages() <-chan client.Message { return f.messages }

func (f *fakeClient) Disconnect() error { return f.record("disconnect") }

// fakeDialer builds fake clients, optionally refusing specific URLs.
type fakeDialer struct {
	ops    []string
	fail   map[string]map[string]error // url -> op -> err
	refuse map[string]bool
}

func (d *fakeDialer) dial(url string) (Client, error) {
	d.ops = append(d.ops, url+":dial")
	if d.refuse[url] {
		return nil, errBoom
	}
	return newFakeClient(url, &d.ops, d.fail[url]), nil
}

func target(url, topic string) gateway.Target {
	u, err := gateway.ParseBrokerURL(url)
	if err != nil {
		panic(err)
	}
	return gateway.Target{
		URL: u,
		Group: gateway.Group{Shape: gateway.GroupFlat, Messages: []gateway.Message{{
			Topic:   topic,
			Payload: &gateway.Payload{Kind: gateway.PayloadString, Text: "on"},
			QoS:     2,
		}}},
	}
}

func TestPublisherSingleTarget(t *testing.T) {
	d := &fakeDialer{}
	pub := NewPublisher(d.dial, nil)

	err := pub.Publish(context.Background(), &gateway.PublishRequest{
		Targets: []gateway.Target{target("broker.com", "door")},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"tcp://broker.com:dial",
		"tcp://broker.com:connect",
		"tcp://broker.com:publish:door:on:2",
		"tcp://broker.com:disconnect",
	}, d.ops)
}

func TestPublisherCredentials(t *testing.T) {
	d := &fakeDialer{}
	pub := NewPublisher(d.dial, nil)

	tgt := target("broker.com", "door")
	tgt.Credentials = &gateway.Credentials{Username: "user_1", Password: "qwerty123"}

	err := pub.Publish(context.Background(), &gateway.PublishRequest{Targets: []gateway.Target{tgt}})
	require.NoError(t, err)
	assert.Contains(t, d.ops, "tcp://broker.com:connect:user_1")
}

// Targets execute strictly in request order.
func TestPublisherSequentialTargets(t *testing.T) {
	d := &fakeDialer{}
	pub := NewPublisher(d.dial, nil)

	err := pub.Publish(context.Background(), &gateway.PublishRequest{
		Targets: []gateway.Target{target("a.com", "one"), target("b.com", "two")},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"tcp://a.com:dial",
		"tcp://a.com:connect",
		"tcp://a.com:publish:one:on:2",
		"tcp://a.com:disconnect",
		"tcp://b.com:dial",
		"tcp://b.com:connect",
		"tcp://b.com:publish:two:on:2",
		"tcp://b.com:disconnect",
	}, d.ops)
}

// When the first broker's connect fails, nothing is attempted on the second
// broker and the failure kind is the connection error.
func TestPublisherFirstConnectFailureStopsRequest(t *testing.T) {
	d := &fakeDialer{fail: map[string]map[string]error{
		"tcp://a.com": {"connect": errBoom},
	}}
	pub := NewPublisher(d.dial, nil)

	err := pub.Publish(context.Background(), &gateway.PublishRequest{
		Targets: []gateway.Target{target("a.com", "one"), target("b.com", "two")},
	})
	assert.ErrorIs(t, err, gateway.ErrConnection)
	assert.Equal(t, []string{"tcp://a.com:dial", "tcp://a.com:connect"}, d.ops)
}

func TestPublisherDialFailure(t *testing.T) {
	d := &fakeDialer{refuse: map[string]bool{"tcp://a.com": true}}
	pub := NewPublisher(d.dial, nil)

	err := pub.Publish(context.Background(), &gateway.PublishRequest{
		Targets: []gateway.Target{target("a.com", "one")},
	})
	assert.ErrorIs(t, err, gateway.ErrClientInfo)
}

func TestPublisherPublishFailure(t *testing.T) {
	d := &fakeDialer{fail: map[string]map[string]error{
		"tcp://a.com": {"publish:one:on:2": errBoom},
	}}
	pub := NewPublisher(d.dial, nil)

	err := pub.Publish(context.Background(), &gateway.PublishRequest{
		Targets: []gateway.Target{target("a.com", "one"), target("b.com", "two")},
	})
	assert.ErrorIs(t, err, gateway.ErrPublish)
	// Teardown still runs on the failed target; the second target is never
	// dialed.
	assert.Equal(t, []string{
		"tcp://a.com:dial",
		"tcp://a.com:connect",
		"tcp://a.com:publish:one:on:2",
		"tcp://a.com:disconnect",
	}, d.ops)
}

// A bad payload aborts before anything is sent for that message; earlier
// messages are not rolled back.
func TestPublisherPayloadFailure(t *testing.T) {
	d := &fakeDialer{}
	pub := NewPublisher(d.dial, nil)

	tgt := target("a.com", "one")
	tgt.Group.Messages = append(tgt.Group.Messages, gateway.Message{
		Topic:   "two",
		Payload: &gateway.Payload{Kind: gateway.PayloadBase64, Text: "not base64!!"},
		QoS:     1,
	})

	err := pub.Publish(context.Background(), &gateway.PublishRequest{Targets: []gateway.Target{tgt}})
	assert.ErrorIs(t, err, gateway.ErrPayload)
	assert.Contains(t, d.ops, "tcp://a.com:publish:one:on:2")
	for _, op := range d.ops {
		assert.NotContains(t, op, "publish:two")
	}
}

func TestPublisherDisconnectFailure(t *testing.T) {
	d := &fakeDialer{fail: map[string]map[string]error{
		"tcp://a.com": {"disconnect": errBoom},
	}}
	pub := NewPublisher(d.dial, nil)

	err := pub.Publish(context.Background(), &gateway.PublishRequest{
		Targets: []gateway.Target{target("a.com", "one"), target("b.com", "two")},
	})
	assert.ErrorIs(t, err, gateway.ErrDisconnect)
}
