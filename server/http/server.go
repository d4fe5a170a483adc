// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package http exposes the gateway over HTTP: POST publishes to one or more
// brokers, GET subscribes and waits for a single message. The whole URL
// path (minus the leading slash) is the topic.
package http

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/absmach/fluxgate/client"
	"github.com/absmach/fluxgate/gateway"
)

// TopicHeader carries the originating topic of a received message back to
// the subscriber.
const TopicHeader = "X-Topic"

type Config struct {
	Address         string
	ShutdownTimeout time.Duration
	TLSConfig       *tls.Config
	MaxBodySize     int64
	HealthEnabled   bool
}

// Publisher runs one publish request against its brokers.
type Publisher interface {
	Publish(ctx context.Context, req *gateway.PublishRequest) error
}

// Subscriber waits for one message on the given topic.
type Subscriber interface {
	Subscribe(ctx context.Context, info *gateway.ConnectInfo, topic string) (*client.Message, error)
}

type Server struct {
	config Config
	pub    Publisher
	sub    Subscriber
	logger *slog.Logger
	server *http.Server
}

func New(cfg Config, pub Publisher, sub Subscriber, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = gateway.MaxBodySize
	}

	s := &Server{
		config: cfg,
		pub:    pub,
		sub:    sub,
		logger: logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)

	s.server = &http.Server{
		Addr:      cfg.Address,
		Handler:   mux,
		TLSConfig: cfg.TLSConfig,
	}

	return s
}

func (s *Server) Listen(ctx context.Context) error {
	s.logger.Info("gateway_starting", slog.String("addr", s.config.Address))

	errCh := make(chan error, 1)
	go func() {
		if s.config.TLSConfig != nil {
			if err := s.server.ListenAndServeTLS("", ""); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
			return
		}
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("gateway_shutdown_initiated")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("gateway_shutdown_error", slog.String("error", err.Error()))
			return err
		}

		s.logger.Info("gateway_stopped")
		return nil
	}
}

// handle routes by method: POST publishes, GET subscribes. The health
// endpoint shadows the "health" topic when enabled.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handlePublish(w, r)
	case http.MethodGet:
		if s.config.HealthEnabled && r.URL.Path == "/health" {
			s.handleHealth(w, r)
			return
		}
		s.handleSubscribe(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	req, err := gateway.ParsePublish(r, s.config.MaxBodySize)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.logger.Debug("publish_request", slog.Int("targets", len(req.Targets)))

	if err := s.pub.Publish(r.Context(), req); err != nil {
		s.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	info, err := gateway.ExtractConnectInfo(r.Header)
	if err != nil {
		s.writeError(w, err)
		return
	}
	topic, err := gateway.TopicFromPath(r.URL.Path)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.logger.Debug("subscribe_request",
		slog.String("broker", info.Broker.String()),
		slog.String("topic", topic))

	msg, err := s.sub.Subscribe(r.Context(), info, topic)
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set(TopicHeader, msg.Topic)
	if wantsPlainText(r) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(msg.Payload); err != nil {
		s.logger.Warn("subscribe_response_write_failed", slog.String("error", err.Error()))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

// wantsPlainText reports whether the caller's Accept preference is exactly
// the plain-text media type.
func wantsPlainText(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Accept"))
	return err == nil && mt == "text/plain"
}

// writeError maps a taxonomy error to its status and fixed message text.
// Anything outside the taxonomy is masked as an internal error.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var gerr gateway.Error
	if !errors.As(err, &gerr) {
		s.logger.Error("unclassified_error", slog.String("error", err.Error()))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	status := gerr.Status()
	if status >= http.StatusInternalServerError {
		s.logger.Error("request_failed", slog.String("error", gerr.Error()), slog.Int("status", status))
	} else {
		s.logger.Warn("request_rejected", slog.String("error", gerr.Error()), slog.Int("status", status))
	}
	http.Error(w, gerr.Error(), status)
}
