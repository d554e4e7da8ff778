//go:build js

package connector

import (
	"context"
	"fmt"
	"sync"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/oprf-network/oprf-node/model/oprf"
	"github.com/oprf-network/oprf-node/module"
)

// WebsocketConnector opens sessions through the browser's WebSocket API.
type WebsocketConnector struct {
	secure bool
}

var _ module.Connector = (*WebsocketConnector)(nil)

// NewWebsocketConnector returns a connector. If secure, services given as host:port
// are dialed with wss. Browsers manage TLS themselves.
func NewWebsocketConnector(secure bool) *WebsocketConnector {
	return &WebsocketConnector{secure: secure}
}

func (c *WebsocketConnector) Connect(ctx context.Context, service string, moduleName string) (module.OprfSession, error) {
	endpoint, err := EndpointURL(service, moduleName, c.secure)
	if err != nil {
		return nil, err
	}
	conn, _, err := websocket.Dial(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("could not connect to %s: %w", endpoint, err)
	}
	return &websocketSession{conn: conn}, nil
}

type websocketSession struct {
	conn *websocket.Conn
	once sync.Once
	err  error
}

func (s *websocketSession) Init(ctx context.Context, request *oprf.OprfRequest) (*oprf.PartialResponse, error) {
	msg, err := s.roundTrip(ctx, request)
	if err != nil {
		return nil, err
	}
	return partialFrom(msg)
}

func (s *websocketSession) Challenge(ctx context.Context, request *oprf.ChallengeRequest) (*oprf.ChallengeResponse, error) {
	msg, err := s.roundTrip(ctx, request)
	if err != nil {
		return nil, err
	}
	return proofFrom(msg)
}

func (s *websocketSession) roundTrip(ctx context.Context, request interface{}) (*oprf.ServerMessage, error) {
	if err := wsjson.Write(ctx, s.conn, request); err != nil {
		return nil, fmt.Errorf("could not send request: %w", err)
	}
	var msg oprf.ServerMessage
	if err := wsjson.Read(ctx, s.conn, &msg); err != nil {
		return nil, fmt.Errorf("could not read response: %w", err)
	}
	return &msg, nil
}

func (s *websocketSession) Close() error {
	s.once.Do(func() {
		s.err = s.conn.Close(websocket.StatusNormalClosure, "")
	})
	return s.err
}
