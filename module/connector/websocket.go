//go:build !js

package connector

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/oprf-network/oprf-node/model/oprf"
	"github.com/oprf-network/oprf-node/module"
)

// DefaultHandshakeTimeout bounds the websocket handshake.
const DefaultHandshakeTimeout = 10 * time.Second

// WebsocketConnector opens sessions with gorilla/websocket.
type WebsocketConnector struct {
	dialer *websocket.Dialer
	secure bool
}

var _ module.Connector = (*WebsocketConnector)(nil)

// NewWebsocketConnector returns a connector. If secure, services given as host:port
// are dialed with wss. tlsConfig may be nil.
func NewWebsocketConnector(secure bool, tlsConfig *tls.Config) *WebsocketConnector {
	return &WebsocketConnector{
		dialer: &websocket.Dialer{
			HandshakeTimeout: DefaultHandshakeTimeout,
			TLSClientConfig:  tlsConfig,
		},
		secure: secure,
	}
}

func (c *WebsocketConnector) Connect(ctx context.Context, service string, moduleName string) (module.OprfSession, error) {
	endpoint, err := EndpointURL(service, moduleName, c.secure)
	if err != nil {
		return nil, err
	}
	conn, resp, err := c.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("could not connect to %s: %s: %w", endpoint, resp.Status, err)
		}
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

// roundTrip writes a request and reads the answer. Cancelling ctx interrupts both.
func (s *websocketSession) roundTrip(ctx context.Context, request interface{}) (*oprf.ServerMessage, error) {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	_ = s.conn.SetWriteDeadline(deadline)
	_ = s.conn.SetReadDeadline(deadline)
	stop := context.AfterFunc(ctx, func() {
		_ = s.conn.SetReadDeadline(time.Now())
		_ = s.conn.SetWriteDeadline(time.Now())
	})
	defer stop()

	if err := s.conn.WriteJSON(request); err != nil {
		return nil, s.ctxErr(ctx, fmt.Errorf("could not send request: %w", err))
	}
	var msg oprf.ServerMessage
	if err := s.conn.ReadJSON(&msg); err != nil {
		return nil, s.ctxErr(ctx, fmt.Errorf("could not read response: %w", err))
	}
	return &msg, nil
}

func (s *websocketSession) ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (s *websocketSession) Close() error {
	s.once.Do(func() {
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		s.err = s.conn.Close()
	})
	return s.err
}
