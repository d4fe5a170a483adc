// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"log/slog"

	"github.com/absmach/fluxgate/gateway"
)

// Publisher executes publish requests, one short-lived broker session per
// target.
type Publisher struct {
	dial   Dialer
	logger *slog.Logger
}

// NewPublisher creates a Publisher using dial to reach brokers.
func NewPublisher(dial Dialer, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{dial: dial, logger: logger}
}

// Publish processes every target in request order, strictly sequentially.
// The first failure aborts the whole request; messages already published to
// this or earlier targets are not rolled back, and remaining targets are
// never attempted.
func (p *Publisher) Publish(ctx context.Context, req *gateway.PublishRequest) error {
	for _, target := range req.Targets {
		if err := p.publishTarget(ctx, target); err != nil {
			return err
		}
	}
	return nil
}

func (p *Publisher) publishTarget(ctx context.Context, target gateway.Target) error {
	addr := target.URL.String()

	cl, err := p.dial(addr)
	if err != nil {
		p.logger.Warn("client_setup_failed", slog.String("broker", addr), slog.String("error", err.Error()))
		return gateway.ErrClientInfo
	}

	if err := cl.Connect(ctx, target.Credentials); err != nil {
		p.logger.Warn("broker_connect_failed", slog.String("broker", addr), slog.String("error", err.Error()))
		return gateway.ErrConnection
	}

	for _, msg := range target.Group.Messages {
		payload, err := msg.Payload.Bytes()
		if err != nil {
			p.teardown(cl, addr)
			return gateway.ErrPayload
		}
		if err := cl.Publish(ctx, msg.Topic, payload, msg.QoS); err != nil {
			p.logger.Warn("publish_failed",
				slog.String("broker", addr),
				slog.String("topic", msg.Topic),
				slog.String("error", err.Error()))
			p.teardown(cl, addr)
			return gateway.ErrPublish
		}
		p.logger.Debug("published",
			slog.String("broker", addr),
			slog.String("topic", msg.Topic),
			slog.Int("qos", int(msg.QoS)),
			slog.Int("payload_size", len(payload)))
	}

	if err := cl.Disconnect(); err != nil {
		p.logger.Warn("disconnect_failed", slog.String("broker", addr), slog.String("error", err.Error()))
		return gateway.ErrDisconnect
	}
	return nil
}

// teardown is the best-effort disconnect on failure paths; the original
// error wins over anything that goes wrong here.
func (p *Publisher) teardown(cl Client, addr string) {
	if err := cl.Disconnect(); err != nil {
		p.logger.Warn("disconnect_failed", slog.String("broker", addr), slog.String("error", err.Error()))
	}
}
