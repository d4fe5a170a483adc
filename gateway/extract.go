// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"io"
	"net/http"
	"net/url"
	"strings"
)

// ConnectInfo is the broker address and optional credentials extracted from
// request headers.
type ConnectInfo struct {
	Broker      *url.URL
	Credentials *Credentials
}

// ExtractConnectInfo reads the X-Broker header (required) and the
// X-Username/X-Password pair (optional, both-or-neither) from h.
func ExtractConnectInfo(h http.Header) (*ConnectInfo, error) {
	raw := h.Get("X-Broker")
	if raw == "" {
		return nil, ErrHeader
	}
	u, err := ParseBrokerURL(raw)
	if err != nil {
		return nil, ErrBrokerURL
	}

	info := &ConnectInfo{Broker: u}
	if username := h.Get("X-Username"); username != "" {
		if password := h.Get("X-Password"); password != "" {
			info.Credentials = &Credentials{Username: username, Password: password}
		}
	}
	return info, nil
}

// TopicFromPath derives the topic from a request path by stripping the
// leading slash. An empty result is rejected.
func TopicFromPath(path string) (string, error) {
	topic := strings.TrimPrefix(path, "/")
	if topic == "" {
		return "", ErrTopic
	}
	return topic, nil
}

// ReadBody drains the request body, capped at limit bytes.
func ReadBody(r *http.Request, limit int64) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, limit))
	if err != nil {
		return nil, ErrBodySize
	}
	return body, nil
}
