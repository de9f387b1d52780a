// Package hub fans committed canvas and balance changes out to connected
// websocket sessions and routes their placement and purchase requests to the
// domain services.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	domain "github.com/yorktechapps/pixelplace/internal/app/domain/canvas"
	"github.com/yorktechapps/pixelplace/internal/app/metrics"
	canvassvc "github.com/yorktechapps/pixelplace/internal/app/services/canvas"
	"github.com/yorktechapps/pixelplace/internal/app/services/ledger"
	purchasesvc "github.com/yorktechapps/pixelplace/internal/app/services/purchase"
	"github.com/yorktechapps/pixelplace/internal/app/services/settlement"
	"github.com/yorktechapps/pixelplace/pkg/logger"
)

// Error messages shown to participants.
const (
	msgInvalidCoordinates  = "Invalid coordinates"
	msgInvalidColor        = "Invalid color"
	msgUserNotFound        = "User not found"
	msgInsufficientBalance = "Insufficient pixel balance"
	msgPlaceFailed         = "Failed to place pixel"
	msgRateLimited         = "Placing pixels too fast"
	msgInvalidPackSize     = "Invalid pack size"
	msgInvalidPIN          = "PIN must be 4-6 digits"
	msgServiceUnavailable  = "Formbar service unavailable. Please try again later."
	msgNotConfigured       = "Application not configured. Please contact administrator."
	msgTransferTimeout     = "Transfer timeout - no response from Formbar"
	msgPurchaseFailed      = "Purchase failed"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The websocket endpoint sits behind cookie auth; cross-origin pages
	// cannot obtain a session cookie, so all origins may attempt the dial.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Hub is the broadcast distributor. Delivery is best effort per session: a
// stalled or disconnected session is dropped silently and receives a full
// snapshot on its next join.
type Hub struct {
	canvas    *canvassvc.Service
	purchases *purchasesvc.Service
	ledger    *ledger.Service
	log       *logger.Logger

	mu       sync.RWMutex
	sessions map[string]*session
	closed   bool

	// commitMu serializes placement commit and fanout so every session
	// observes deltas in commit order.
	commitMu sync.Mutex

	placeRate  rate.Limit
	placeBurst int
}

// New constructs a hub.
func New(canvas *canvassvc.Service, purchases *purchasesvc.Service, ledgerSvc *ledger.Service, log *logger.Logger) *Hub {
	if log == nil {
		log = logger.NewDefault("hub")
	}
	return &Hub{
		canvas:     canvas,
		purchases:  purchases,
		ledger:     ledgerSvc,
		log:        log,
		sessions:   make(map[string]*session),
		placeRate:  rate.Limit(15),
		placeBurst: 30,
	}
}

// Name implements system.Service.
func (h *Hub) Name() string { return "hub" }

// Start implements system.Service. The hub has no background work of its own.
func (h *Hub) Start(context.Context) error { return nil }

// Stop closes every session.
func (h *Hub) Stop(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for id, s := range h.sessions {
		s.closeSend()
		delete(h.sessions, id)
		metrics.SessionClosed()
	}
	return nil
}

// ServeWS upgrades the request and joins the participant to the hub. The
// caller has already authenticated the participant.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, participantID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	s := &session{
		id:            uuid.NewString(),
		participantID: participantID,
		conn:          conn,
		send:          make(chan []byte, sendBuffer),
		placeLimiter:  rate.NewLimiter(h.placeRate, h.placeBurst),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.sessions[s.id] = s
	h.mu.Unlock()
	metrics.SessionOpened()

	go s.writePump()

	// New observers get the full state before any delta.
	s.sendEvent(EventCanvasState, h.canvas.Cells())
	if balance, err := h.ledger.Balance(r.Context(), participantID); err == nil {
		s.sendEvent(EventBalanceUpdate, balance)
	}

	h.log.WithField("participant_id", participantID).Info("session joined")
	go s.readPump(h)
}

func (h *Hub) unregister(s *session) {
	h.mu.Lock()
	if _, ok := h.sessions[s.id]; ok {
		delete(h.sessions, s.id)
		s.closeSend()
		metrics.SessionClosed()
	}
	h.mu.Unlock()
	s.conn.Close()
	h.log.WithField("participant_id", s.participantID).Info("session left")
}

// broadcast sends the event to every session, dropping the stalled ones.
func (h *Hub) broadcast(event string, payload interface{}) {
	msg := mustEnvelope(event, payload)

	h.mu.RLock()
	var stalled []*session
	for _, s := range h.sessions {
		if !s.enqueue(msg) {
			stalled = append(stalled, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range stalled {
		h.unregister(s)
	}
}

// sendToParticipant delivers the event to every session of one participant.
func (h *Hub) sendToParticipant(participantID, event string, payload interface{}) {
	msg := mustEnvelope(event, payload)

	h.mu.RLock()
	var stalled []*session
	for _, s := range h.sessions {
		if s.participantID != participantID {
			continue
		}
		if !s.enqueue(msg) {
			stalled = append(stalled, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range stalled {
		h.unregister(s)
	}
}

// NotifyBalance pushes a balance change to the participant's sessions. Other
// components (purchase HTTP surface, admin tooling) may call this directly.
func (h *Hub) NotifyBalance(participantID string, newBalance int) {
	h.sendToParticipant(participantID, EventBalanceUpdate, newBalance)
}

// SessionCount returns the number of connected sessions.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func (h *Hub) dispatch(s *session, env Envelope) {
	switch env.Event {
	case EventPlacePixel:
		h.handlePlace(s, env.Data)
	case EventPurchasePixels:
		h.handlePurchase(s, env.Data)
	case EventGetBalance:
		h.handleGetBalance(s)
	default:
		s.sendError(EventError, "unknown event: "+env.Event)
	}
}

func (h *Hub) handlePlace(s *session, data json.RawMessage) {
	var req placePixelRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendError(EventError, msgInvalidCoordinates)
		return
	}

	if !s.placeLimiter.Allow() {
		s.sendError(EventError, msgRateLimited)
		return
	}

	h.commitMu.Lock()
	res, err := h.canvas.Place(context.Background(), s.participantID, req.X, req.Y, req.Color)
	if err != nil {
		h.commitMu.Unlock()
		metrics.ObservePlacement(placementOutcome(err))
		s.sendError(EventError, placementMessage(err))
		return
	}
	h.broadcast(EventCanvasUpdate, domain.Cell{X: res.Event.X, Y: res.Event.Y, Color: res.Event.Color})
	h.commitMu.Unlock()

	if res.Charged {
		metrics.ObservePlacement("charged")
		h.NotifyBalance(s.participantID, res.NewBalance)
	} else {
		metrics.ObservePlacement("free")
	}
}

func placementOutcome(err error) string {
	switch {
	case errors.Is(err, canvassvc.ErrInvalidCoordinate),
		errors.Is(err, canvassvc.ErrInvalidColor),
		errors.Is(err, canvassvc.ErrUnknownParticipant),
		errors.Is(err, canvassvc.ErrInsufficientBalance):
		return "rejected"
	default:
		return "error"
	}
}

func placementMessage(err error) string {
	switch {
	case errors.Is(err, canvassvc.ErrInvalidCoordinate):
		return msgInvalidCoordinates
	case errors.Is(err, canvassvc.ErrInvalidColor):
		return msgInvalidColor
	case errors.Is(err, canvassvc.ErrUnknownParticipant):
		return msgUserNotFound
	case errors.Is(err, canvassvc.ErrInsufficientBalance):
		return msgInsufficientBalance
	default:
		return msgPlaceFailed
	}
}

func (h *Hub) handlePurchase(s *session, data json.RawMessage) {
	var req purchasePixelsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendError(EventPurchaseError, msgInvalidPackSize)
		return
	}

	res, err := h.purchases.Purchase(context.Background(), s.participantID, req.PackSize, req.PIN)
	if err != nil {
		s.sendError(EventPurchaseError, purchaseMessage(err))
		return
	}

	s.sendEvent(EventPurchaseSuccess, purchaseSuccessPayload{
		PackSize:   res.Pack.Size,
		NewBalance: res.NewBalance,
	})
	h.NotifyBalance(s.participantID, res.NewBalance)
}

func purchaseMessage(err error) string {
	var transferErr *settlement.TransferError
	switch {
	case errors.Is(err, purchasesvc.ErrInvalidPackSize):
		return msgInvalidPackSize
	case errors.Is(err, purchasesvc.ErrInvalidPIN):
		return msgInvalidPIN
	case errors.Is(err, ledger.ErrParticipantNotFound):
		return msgUserNotFound
	case errors.Is(err, purchasesvc.ErrServiceUnavailable), errors.Is(err, settlement.ErrNotConnected):
		return msgServiceUnavailable
	case errors.Is(err, purchasesvc.ErrNotConfigured):
		return msgNotConfigured
	case errors.Is(err, settlement.ErrTransferTimeout):
		return msgTransferTimeout
	case errors.As(err, &transferErr):
		return transferErr.Message
	default:
		return msgPurchaseFailed
	}
}

func (h *Hub) handleGetBalance(s *session) {
	balance, err := h.ledger.Balance(context.Background(), s.participantID)
	if err != nil {
		s.sendError(EventError, msgUserNotFound)
		return
	}
	s.sendEvent(EventBalanceUpdate, balance)
}
