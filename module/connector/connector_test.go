package connector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpointURL(t *testing.T) {
	cases := []struct {
		service  string
		secure   bool
		expected string
	}{
		{"node-1:8080", false, "ws://node-1:8080/oprf?module=auth"},
		{"node-1:8080", true, "wss://node-1:8080/oprf?module=auth"},
		{"http://node-1:8080", true, "ws://node-1:8080/oprf?module=auth"},
		{"https://node-1.example.com/api/", false, "wss://node-1.example.com/api/oprf?module=auth"},
		{"ws://127.0.0.1:1", false, "ws://127.0.0.1:1/oprf?module=auth"},
	}
	for _, c := range cases {
		endpoint, err := EndpointURL(c.service, "auth", c.secure)
		require.NoError(t, err, c.service)
		assert.Equal(t, c.expected, endpoint)
	}

	_, err := EndpointURL("ftp://node-1", "auth", false)
	assert.Error(t, err)
}
