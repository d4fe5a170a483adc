// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func headers(pairs ...string) http.Header {
	h := http.Header{}
	for i := 0; i < len(pairs); i += 2 {
		h.Set(pairs[i], pairs[i+1])
	}
	return h
}

func TestExtractConnectInfo(t *testing.T) {
	info, err := ExtractConnectInfo(headers("X-Broker", "broker.com"))
	require.NoError(t, err)
	assert.Equal(t, "tcp://broker.com", info.Broker.String())
	assert.Nil(t, info.Credentials)
}

func TestExtractConnectInfoWithCredentials(t *testing.T) {
	info, err := ExtractConnectInfo(headers(
		"X-Broker", "ssl://broker.com:8883",
		"X-Username", "user_1",
		"X-Password", "qwerty123",
	))
	require.NoError(t, err)
	assert.Equal(t, "ssl://broker.com:8883", info.Broker.String())
	require.NotNil(t, info.Credentials)
	assert.Equal(t, "user_1", info.Credentials.Username)
	assert.Equal(t, "qwerty123", info.Credentials.Password)
}

func TestExtractConnectInfoPartialCredentials(t *testing.T) {
	tests := []struct {
		name string
		h    http.Header
	}{
		{"username only", headers("X-Broker", "broker.com", "X-Username", "user_1")},
		{"password only", headers("X-Broker", "broker.com", "X-Password", "qwerty123")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			info, err := ExtractConnectInfo(tc.h)
			require.NoError(t, err)
			assert.Nil(t, info.Credentials)
		})
	}
}

func TestExtractConnectInfoMissingBroker(t *testing.T) {
	_, err := ExtractConnectInfo(headers("X-Username", "user_1"))
	assert.ErrorIs(t, err, ErrHeader)
}

func TestExtractConnectInfoBadBrokerURL(t *testing.T) {
	_, err := ExtractConnectInfo(headers("X-Broker", "://nope"))
	assert.ErrorIs(t, err, ErrBrokerURL)
}

func TestTopicFromPath(t *testing.T) {
	topic, err := TopicFromPath("/door/state")
	require.NoError(t, err)
	assert.Equal(t, "door/state", topic)
}

func TestTopicFromPathEmpty(t *testing.T) {
	for _, path := range []string{"/", ""} {
		_, err := TopicFromPath(path)
		assert.ErrorIs(t, err, ErrTopic)
	}
}
