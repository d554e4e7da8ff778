package oprf

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/oprf-network/oprf-node/model/oprf"
	"github.com/oprf-network/oprf-node/module/connector"
)

const (
	// WriteWait is the time allowed to write a message to the client.
	WriteWait = 10 * time.Second

	// maxRequestSize bounds a single client message.
	maxRequestSize = 64 << 10
)

// Handler serves the websocket endpoint of distributed evaluations. Every connection
// carries one session: the client sends an OprfRequest, the node answers with its
// partial response, the client sends the ChallengeRequest and the node answers with
// its proof share. Errors are reported as an ErrorMessage and end the session.
type Handler struct {
	log       zerolog.Logger
	evaluator *Evaluator
	upgrader  websocket.Upgrader
	// readWait bounds the time the node waits for each client message
	readWait time.Duration
}

var _ http.Handler = (*Handler)(nil)

func NewHandler(log zerolog.Logger, evaluator *Evaluator, readWait time.Duration) *Handler {
	return &Handler{
		log:       log.With().Str("component", "oprf_handler").Logger(),
		evaluator: evaluator,
		upgrader: websocket.Upgrader{
			// browser clients connect from arbitrary origins, requests are authenticated
			// per session
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		readWait: readWait,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	moduleName := r.URL.Query().Get(connector.ModuleParam)
	if moduleName == "" {
		http.Error(w, "missing module", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader already replied with an error
		h.log.Debug().Err(err).Msg("could not upgrade connection")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxRequestSize)

	h.serve(r.Context(), conn, moduleName)
}

func (h *Handler) serve(ctx context.Context, conn *websocket.Conn, moduleName string) {
	log := h.log.With().Str("remote", conn.RemoteAddr().String()).Str("module", moduleName).Logger()

	var request oprf.OprfRequest
	if err := h.read(conn, &request); err != nil {
		log.Debug().Err(err).Msg("could not read request")
		return
	}
	if request.Module != moduleName {
		h.writeError(log, conn, oprf.NewErrorMessage(oprf.ErrCodeInvalidRequest, "request for module %q on %q endpoint", request.Module, moduleName))
		return
	}

	partial, err := h.evaluator.Init(ctx, &request)
	if err != nil {
		h.writeError(log, conn, err)
		return
	}
	if err := h.write(conn, &oprf.ServerMessage{Partial: partial}); err != nil {
		h.evaluator.Discard(request.RequestID)
		log.Debug().Err(err).Msg("could not send partial response")
		return
	}

	var challenge oprf.ChallengeRequest
	if err := h.read(conn, &challenge); err != nil {
		// the client selected other nodes or went away
		h.evaluator.Discard(request.RequestID)
		return
	}
	if challenge.RequestID != request.RequestID {
		h.evaluator.Discard(request.RequestID)
		h.writeError(log, conn, oprf.NewErrorMessage(oprf.ErrCodeInvalidRequest, "challenge for another request"))
		return
	}
	proof, err := h.evaluator.Challenge(ctx, &challenge)
	if err != nil {
		h.writeError(log, conn, err)
		return
	}
	if err := h.write(conn, &oprf.ServerMessage{Proof: proof}); err != nil {
		log.Debug().Err(err).Msg("could not send proof share")
		return
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(WriteWait))
}

func (h *Handler) read(conn *websocket.Conn, v interface{}) error {
	if err := conn.SetReadDeadline(time.Now().Add(h.readWait)); err != nil {
		return err
	}
	return conn.ReadJSON(v)
}

func (h *Handler) write(conn *websocket.Conn, msg *oprf.ServerMessage) error {
	if err := conn.SetWriteDeadline(time.Now().Add(WriteWait)); err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}

func (h *Handler) writeError(log zerolog.Logger, conn *websocket.Conn, err error) {
	var msg *oprf.ErrorMessage
	if !errors.As(err, &msg) {
		log.Error().Err(err).Msg("unexpected evaluation error")
		msg = oprf.NewErrorMessage(oprf.ErrCodeInternal, "internal error")
	}
	if err := h.write(conn, &oprf.ServerMessage{Error: msg}); err != nil {
		log.Debug().Err(err).Msg("could not send error")
	}
}
