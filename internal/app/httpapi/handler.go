// Package httpapi exposes the HTTP surface: the read-only canvas endpoints,
// the websocket entry point, login and operational endpoints.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/yorktechapps/pixelplace/internal/app/auth"
	domain "github.com/yorktechapps/pixelplace/internal/app/domain/canvas"
	"github.com/yorktechapps/pixelplace/internal/app/hub"
	"github.com/yorktechapps/pixelplace/internal/app/metrics"
	canvassvc "github.com/yorktechapps/pixelplace/internal/app/services/canvas"
)

type handler struct {
	canvas *canvassvc.Service
	hub    *hub.Hub
	auth   *auth.Service
}

// NewHandler returns the router for the full HTTP surface.
func NewHandler(canvas *canvassvc.Service, h *hub.Hub, authSvc *auth.Service) http.Handler {
	hd := &handler{canvas: canvas, hub: h, auth: authSvc}

	r := mux.NewRouter()
	r.Use(metrics.Middleware)

	r.HandleFunc("/api/canvas.json", hd.canvasJSON).Methods(http.MethodGet)
	r.HandleFunc("/api/replay.json", hd.replayJSON).Methods(http.MethodGet)
	r.HandleFunc("/healthz", hd.healthz).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/login", authSvc.HandleLogin).Methods(http.MethodGet)
	r.HandleFunc("/logout", authSvc.HandleLogout).Methods(http.MethodGet)
	r.Handle("/ws", authSvc.RequireAuth(http.HandlerFunc(hd.serveWS))).Methods(http.MethodGet)

	return r
}

type canvasResponse struct {
	Width  int        `json:"width"`
	Height int        `json:"height"`
	Data   [][]string `json:"data"`
}

func (h *handler) canvasJSON(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, canvasResponse{
		Width:  domain.Width,
		Height: domain.Height,
		Data:   h.canvas.Snapshot(),
	})
}

type replayEvent struct {
	X        int       `json:"x"`
	Y        int       `json:"y"`
	Color    string    `json:"color"`
	AuthorID string    `json:"authorId"`
	Seq      int64     `json:"seq"`
	PlacedAt time.Time `json:"placedAt"`
}

// replayJSON serves the chronological placement history consumed by the
// replay viewer. The viewer plays it back sequentially at its own pace.
func (h *handler) replayJSON(w http.ResponseWriter, r *http.Request) {
	events, err := h.canvas.Replay(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	out := make([]replayEvent, 0, len(events))
	for _, ev := range events {
		out = append(out, replayEvent{
			X:        ev.X,
			Y:        ev.Y,
			Color:    ev.Color,
			AuthorID: ev.AuthorID,
			Seq:      ev.Seq,
			PlacedAt: ev.PlacedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) serveWS(w http.ResponseWriter, r *http.Request) {
	participantID := auth.ParticipantFromContext(r.Context())
	if participantID == "" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	h.hub.ServeWS(w, r, participantID)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
