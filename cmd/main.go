// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"crypto/tls"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/absmach/fluxgate/client"
	"github.com/absmach/fluxgate/config"
	httpserver "github.com/absmach/fluxgate/server/http"
	"github.com/absmach/fluxgate/session"
)

func main() {
	configFile := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	switch cfg.Log.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	slog.Info("Starting gateway", "version", "0.1.0")
	slog.Info("Configuration loaded",
		"http_listener", cfg.Server.HTTPAddr,
		"tls_enabled", cfg.Server.TLSEnabled,
		"health_enabled", cfg.Server.HealthEnabled,
		"max_body_size", cfg.Gateway.MaxBodySize,
		"subscribe_timeout", cfg.Gateway.SubscribeTimeout,
		"log_level", cfg.Log.Level)

	var tlsConfig *tls.Config
	if cfg.Server.TLSEnabled {
		cert, err := tls.LoadX509KeyPair(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		if err != nil {
			slog.Error("Failed to load TLS key pair", "error", err)
			os.Exit(1)
		}
		tlsConfig = &tls.Config{Certificates: []tls.Certificate{cert}}
	}

	clientOpts := client.Options{
		ConnectTimeout:  cfg.Gateway.ConnectTimeout,
		DisconnectGrace: cfg.Gateway.DisconnectGrace,
		ClientIDPrefix:  cfg.Gateway.ClientIDPrefix,
	}
	dial := func(brokerURL string) (session.Client, error) {
		return client.New(brokerURL, clientOpts)
	}

	pub := session.NewPublisher(dial, logger)
	sub := session.NewSubscriber(dial, cfg.Gateway.SubscribeTimeout, logger)

	server := httpserver.New(httpserver.Config{
		Address:         cfg.Server.HTTPAddr,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		TLSConfig:       tlsConfig,
		MaxBodySize:     cfg.Gateway.MaxBodySize,
		HealthEnabled:   cfg.Server.HealthEnabled,
	}, pub, sub, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := server.Listen(ctx); err != nil {
			slog.Error("Server error", "error", err)
		}
	}()

	slog.Info("Gateway started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig)
	case <-done:
	}

	cancel()
	<-done
	slog.Info("Gateway stopped")
}
