// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"net/url"
	"strings"
)

// ParseBrokerURL parses a broker address. Inputs carrying an explicit scheme
// are used as-is; a bare host (with or without port) gets the scheme
// defaulted to tcp://. Anything else is rejected as ErrBrokerURL.
func ParseBrokerURL(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, ErrBrokerURL
	}
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, ErrBrokerURL
		}
		return u, nil
	}
	u, err := url.Parse("tcp://" + raw)
	if err != nil || u.Host == "" {
		return nil, ErrBrokerURL
	}
	return u, nil
}
