package dkg

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/oprf-network/oprf-node/model/messages"
	"github.com/oprf-network/oprf-node/model/oprf"
	"github.com/oprf-network/oprf-node/module"
)

// MessagesPath is the path, relative to a participant's base url, accepting key
// generation messages.
const MessagesPath = "/dkg/messages"

// ContentType is the media type of an encoded key generation message.
const ContentType = "application/cbor"

// maxMessageSize bounds the body of an inbound message.
const maxMessageSize = 1 << 20

// HTTPTransport delivers key generation messages by posting them to the API of
// the destination node.
type HTTPTransport struct {
	client    *http.Client
	committee []module.DKGParticipant
}

var _ module.DKGTransport = (*HTTPTransport)(nil)

// NewHTTPTransport returns a transport posting to the urls of the committee.
func NewHTTPTransport(client *http.Client, committee []module.DKGParticipant) *HTTPTransport {
	return &HTTPTransport{
		client:    client,
		committee: committee,
	}
}

func (t *HTTPTransport) Send(ctx context.Context, dest oprf.PartyID, msg *messages.DKGMessage) error {
	if dest == 0 || int(dest) > len(t.committee) {
		return fmt.Errorf("unknown participant %d", dest)
	}
	body, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("could not encode message: %w", err)
	}

	url := strings.TrimSuffix(t.committee[dest-1].URL, "/") + MessagesPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", ContentType)

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxMessageSize))

	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("participant %d rejected message: %s", dest, resp.Status)
	}
	return nil
}

// MessageHandler accepts key generation messages posted by other nodes and hands
// them to the tunnel. Authentication happens in the broker of the instance.
type MessageHandler struct {
	log    zerolog.Logger
	tunnel *BrokerTunnel
}

// NewMessageHandler returns a handler feeding the given tunnel.
func NewMessageHandler(log zerolog.Logger, tunnel *BrokerTunnel) *MessageHandler {
	return &MessageHandler{
		log:    log.With().Str("component", "dkg_handler").Logger(),
		tunnel: tunnel,
	}
}

func (h *MessageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxMessageSize+1))
	if err != nil {
		http.Error(w, "could not read body", http.StatusBadRequest)
		return
	}
	if len(body) > maxMessageSize {
		http.Error(w, "message too large", http.StatusRequestEntityTooLarge)
		return
	}
	msg, err := messages.DecodeDKGMessage(body)
	if err != nil {
		h.log.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("rejecting malformed dkg message")
		http.Error(w, "malformed message", http.StatusBadRequest)
		return
	}
	h.tunnel.SendIn(*msg)
	w.WriteHeader(http.StatusAccepted)
}
