package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/onnwee/clipqueue/command"
	"github.com/onnwee/clipqueue/engine"
	"github.com/onnwee/clipqueue/queue"
	"github.com/onnwee/clipqueue/telemetry"
)

const (
	defaultHistory     = 50
	defaultLeaderboard = 10
	// adminIdentity issues commands sent through the admin API.
	adminIdentity = "admin"
)

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	engine  Engine
	ping    func(ctx context.Context) error
	origins *corsConfig
}

// HandleQueue returns the queue view. ?history=N bounds the history list (default 50).
func (h *Handlers) HandleQueue(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newQueueView(h.engine.Snapshot(), parseIntQuery(r, "history", defaultHistory)))
}

// HandleLeaderboard returns the top submitters by watched clips. ?limit=N (default 10, 0 = all).
func (h *Handlers) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	rows := queue.TopSubmitters(h.engine.Snapshot(), parseIntQuery(r, "limit", defaultLeaderboard))
	writeJSON(w, http.StatusOK, map[string]any{"submitters": rows})
}

// HandlePlayback resolves the player URLs of one clip.
func (h *Handlers) HandlePlayback(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := h.engine.Playback(r.Context(), id)
	switch {
	case errors.Is(err, engine.ErrUnknownClip):
		writeError(w, http.StatusNotFound, "unknown clip")
	case err != nil:
		h.engineError(w, r, err)
	default:
		writeJSON(w, http.StatusOK, p)
	}
}

// HandlePlayerEnded is called by the player when the current clip finished. Body: {"id": "..."};
// an empty id means whatever is current.
func (h *Handlers) HandlePlayerEnded(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ID string `json:"id"`
	}
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
	}
	if err := h.engine.PlayerEnded(r.Context(), body.ID); err != nil {
		h.engineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleAdminCommand runs a queue command. Body: {"command": "skip", "user": "name"}.
func (h *Handlers) HandleAdminCommand(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Command string `json:"command"`
		User    string `json:"user"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	cmd, ok := command.ParseVerb(body.Command)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown command")
		return
	}
	who := command.Identity{Name: strings.TrimSpace(body.User), Broadcaster: true}
	if who.Name == "" {
		who.Name = adminIdentity
	}
	err := h.engine.Execute(r.Context(), cmd, who)
	if errors.Is(err, engine.ErrInvalidArgument) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.engineError(w, r, err)
		return
	}
	telemetry.LoggerWithCorr(r.Context()).Info("admin command", slog.String("command", cmd.String()), slog.String("by", who.Name), slog.String("component", "http"))
	writeJSON(w, http.StatusOK, newQueueView(h.engine.Snapshot(), defaultHistory))
}

// HandleAdminImport bulk-queues links. Body: {"urls": [...], "tag": "optional"}.
func (h *Handlers) HandleAdminImport(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URLs []string `json:"urls"`
		Tag  string   `json:"tag"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if len(body.URLs) == 0 {
		writeError(w, http.StatusBadRequest, "urls required")
		return
	}
	res, err := h.engine.Import(r.Context(), body.URLs, body.Tag)
	if err != nil {
		h.engineError(w, r, err)
		return
	}
	telemetry.LoggerWithCorr(r.Context()).Info("bulk import", slog.Int("urls", len(body.URLs)), slog.Int("accepted", res.Accepted), slog.String("component", "http"))
	writeJSON(w, http.StatusOK, res)
}

// engineError maps engine failures to responses.
func (h *Handlers) engineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, engine.ErrStopped):
		writeError(w, http.StatusServiceUnavailable, "queue is shutting down")
	case errors.Is(err, engine.ErrNotAllowed):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		telemetry.LoggerWithCorr(r.Context()).Error("engine request failed", slog.Any("err", err), slog.String("component", "http"))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
