// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/absmach/fluxgate/client"
	"github.com/absmach/fluxgate/gateway"
)

// DefaultWait bounds the wait for the first message on a subscription.
const DefaultWait = 5 * time.Minute

// Subscriptions are always taken at QoS 2.
const subscribeQoS byte = 2

// Subscriber executes subscribe requests: one short-lived broker session
// that waits for a single message.
type Subscriber struct {
	dial   Dialer
	wait   time.Duration
	logger *slog.Logger
}

// NewSubscriber creates a Subscriber. A non-positive wait falls back to
// DefaultWait.
func NewSubscriber(dial Dialer, wait time.Duration, logger *slog.Logger) *Subscriber {
	if wait <= 0 {
		wait = DefaultWait
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Subscriber{dial: dial, wait: wait, logger: logger}
}

// Subscribe connects to the broker, subscribes to topic and waits for the
// first message, bounded by the configured wait. Only the first message is
// consumed. Disconnect is attempted on every path that reached a connected
// state, including timeout and reception failure; the first error wins.
func (s *Subscriber) Subscribe(ctx context.Context, info *gateway.ConnectInfo, topic string) (*client.Message, error) {
	addr := info.Broker.String()

	cl, err := s.dial(addr)
	if err != nil {
		s.logger.Warn("client_setup_failed", slog.String("broker", addr), slog.String("error", err.Error()))
		return nil, gateway.ErrClientInfo
	}

	if err := cl.Connect(ctx, info.Credentials); err != nil {
		s.logger.Warn("broker_connect_failed", slog.String("broker", addr), slog.String("error", err.Error()))
		return nil, gateway.ErrConnection
	}

	msg, err := s.receive(ctx, cl, topic)

	if derr := cl.Disconnect(); derr != nil {
		if err == nil {
			s.logger.Warn("disconnect_failed", slog.String("broker", addr), slog.String("error", derr.Error()))
			return nil, gateway.ErrDisconnect
		}
		s.logger.Warn("disconnect_failed", slog.String("broker", addr), slog.String("error", derr.Error()))
	}
	return msg, err
}

func (s *Subscriber) receive(ctx context.Context, cl Client, topic string) (*client.Message, error) {
	if err := cl.Subscribe(ctx, topic, subscribeQoS); err != nil {
		s.logger.Warn("subscribe_failed", slog.String("topic", topic), slog.String("error", err.Error()))
		return nil, gateway.ErrSubscription
	}

	timer := time.NewTimer(s.wait)
	defer timer.Stop()

	select {
	case msg, ok := <-cl.Messages():
		if !ok {
			return nil, gateway.ErrReception
		}
		s.logger.Debug("received",
			slog.String("topic", msg.Topic),
			slog.Int("payload_size", len(msg.Payload)))
		return &msg, nil
	case <-timer.C:
		return nil, gateway.ErrTimeout
	case <-ctx.Done():
		return nil, gateway.ErrTimeout
	}
}
