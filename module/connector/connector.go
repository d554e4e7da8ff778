// Package connector implements module.Connector over websockets. Native builds use
// gorilla/websocket, browser builds (GOOS=js) use nhooyr.io/websocket.
package connector

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/oprf-network/oprf-node/model/oprf"
)

// Path is the path of the evaluation endpoint of a node.
const Path = "/oprf"

// ModuleParam is the query parameter carrying the module of a session.
const ModuleParam = "module"

// EndpointURL returns the websocket url of the evaluation endpoint of a service.
// Services are given either as host:port or as http(s) or ws(s) urls.
func EndpointURL(service string, module string, secure bool) (string, error) {
	if !strings.Contains(service, "://") {
		scheme := "ws"
		if secure {
			scheme = "wss"
		}
		service = scheme + "://" + service
	}
	u, err := url.Parse(service)
	if err != nil {
		return "", fmt.Errorf("invalid service address %q: %w", service, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q in service address %q", u.Scheme, service)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + Path
	u.RawQuery = url.Values{ModuleParam: []string{module}}.Encode()
	return u.String(), nil
}

// partialFrom unpacks the first answer of a node.
func partialFrom(msg *oprf.ServerMessage) (*oprf.PartialResponse, error) {
	if msg.Error != nil {
		return nil, msg.Error
	}
	if msg.Partial == nil {
		return nil, fmt.Errorf("node did not answer with a partial response")
	}
	return msg.Partial, nil
}

// proofFrom unpacks the second answer of a node.
func proofFrom(msg *oprf.ServerMessage) (*oprf.ChallengeResponse, error) {
	if msg.Error != nil {
		return nil, msg.Error
	}
	if msg.Proof == nil {
		return nil, fmt.Errorf("node did not answer with a proof share")
	}
	return msg.Proof, nil
}
