package health

import (
	"net/http"

	"github.com/rs/zerolog"
)

// Path is the path of the health endpoint.
const Path = "/health"

const (
	healthy  = "healthy"
	starting = "starting"
)

// StartedChecker reports whether the node finished starting.
type StartedChecker interface {
	Started() bool
}

// Handler answers health checks: 200 "healthy" once the key event watcher completed
// its first successful poll, 503 "starting" before that.
type Handler struct {
	log     zerolog.Logger
	watcher StartedChecker
}

var _ http.Handler = (*Handler)(nil)

func NewHandler(log zerolog.Logger, watcher StartedChecker) *Handler {
	return &Handler{
		log:     log.With().Str("component", "health").Logger(),
		watcher: watcher,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	status, body := http.StatusOK, healthy
	if !h.watcher.Started() {
		status, body = http.StatusServiceUnavailable, starting
	}
	w.WriteHeader(status)
	if _, err := w.Write([]byte(body)); err != nil {
		h.log.Debug().Err(err).Msg("could not write health response")
	}
}
