// Package settlement executes digipogs transfers against the external Formbar
// service over a websocket connection.
package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yorktechapps/pixelplace/pkg/logger"
)

// Transfer failure modes. An explicit rejection from the service is reported
// as *TransferError with the upstream message preserved.
var (
	ErrNotConnected    = errors.New("settlement service not connected")
	ErrTransferTimeout = errors.New("transfer timeout: no response from settlement service")
)

// TransferError is an explicit rejection from the settlement service (bad
// PIN, insufficient digipogs, ...). The upstream message passes through.
type TransferError struct {
	Message string
}

func (e *TransferError) Error() string { return e.Message }

// TransferRequest describes one digipogs transfer attempt.
type TransferRequest struct {
	From   int64  `json:"from"`
	To     int64  `json:"to"`
	Amount int    `json:"amount"`
	Reason string `json:"reason"`
	PIN    int    `json:"pin"`
	Pool   bool   `json:"pool"`
	// Ref is the per-attempt idempotency key. The legacy transfer protocol
	// has no reconciliation query, so the key is our only handle on an
	// attempt whose response never arrived.
	Ref string `json:"ref"`
}

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type transferResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Ref     string `json:"ref"`
}

// Config holds the connection settings for the settlement service.
type Config struct {
	URL     string        // websocket URL of the Formbar transfer endpoint
	APIKey  string        // sent as the "api" header on dial
	Timeout time.Duration // per-transfer response deadline
}

// Client maintains a websocket connection to the settlement service and runs
// correlated transfers over it. Transfers are serialized: the legacy protocol
// does not echo a correlation id reliably, so at most one is in flight.
type Client struct {
	cfg Config
	log *logger.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	done      chan struct{}
	connected bool

	transferMu sync.Mutex
	inflight   chan transferResponse
	inflightMu sync.Mutex
}

// NewClient creates an unconnected client.
func NewClient(cfg Config, log *logger.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if log == nil {
		log = logger.NewDefault("settlement")
	}
	return &Client{cfg: cfg, log: log}
}

// Name implements system.Service.
func (c *Client) Name() string { return "settlement" }

// Start dials the settlement service and begins the read and heartbeat pumps.
// A dial failure is not fatal: transfers fail with ErrNotConnected until the
// reconnect loop succeeds.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.done != nil {
		return nil
	}
	c.done = make(chan struct{})

	if err := c.dialLocked(ctx); err != nil {
		c.log.WithError(err).Warn("settlement dial failed; will retry in background")
	}
	go c.reconnectLoop()
	return nil
}

// Stop closes the connection.
func (c *Client) Stop(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.done == nil {
		return nil
	}
	close(c.done)
	c.done = nil

	if c.conn != nil {
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = c.conn.Close()
		c.conn = nil
	}
	c.connected = false
	return nil
}

// Connected reports whether the websocket is currently established.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Client) dialLocked(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	header := http.Header{}
	if c.cfg.APIKey != "" {
		header.Set("api", c.cfg.APIKey)
	}

	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.conn = conn
	c.connected = true
	go c.readPump(conn)
	go c.heartbeat(conn)

	c.log.WithField("url", c.cfg.URL).Info("connected to settlement service")
	return nil
}

func (c *Client) reconnectLoop() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done == nil {
		return
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.mu.Lock()
			if c.done == nil {
				c.mu.Unlock()
				return
			}
			if !c.connected {
				if err := c.dialLocked(context.Background()); err != nil {
					c.log.WithError(err).Warn("settlement reconnect failed")
				}
			}
			c.mu.Unlock()
		}
	}
}

func (c *Client) readPump(conn *websocket.Conn) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			if c.conn == conn {
				c.connected = false
				c.conn = nil
			}
			c.mu.Unlock()
			c.log.WithError(err).Warn("settlement connection lost")
			return
		}

		var env envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			c.log.WithError(err).Warn("discarding malformed settlement message")
			continue
		}
		if env.Event != "transferResponse" {
			continue
		}

		var resp transferResponse
		if err := json.Unmarshal(env.Data, &resp); err != nil {
			c.log.WithError(err).Warn("discarding malformed transfer response")
			continue
		}
		c.deliver(resp)
	}
}

func (c *Client) heartbeat(conn *websocket.Conn) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		c.mu.Lock()
		current := c.conn
		c.mu.Unlock()
		if current != conn {
			return
		}
		if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
			return
		}
	}
}

func (c *Client) deliver(resp transferResponse) {
	c.inflightMu.Lock()
	ch := c.inflight
	c.inflight = nil
	c.inflightMu.Unlock()

	if ch == nil {
		c.log.WithField("ref", resp.Ref).Warn("transfer response with no transfer in flight")
		return
	}
	ch <- resp
}

// Transfer sends one digipogs transfer and waits for the correlated response
// or the configured timeout. Exactly one outcome is produced: nil (confirmed),
// *TransferError (explicit rejection) or ErrTransferTimeout.
func (c *Client) Transfer(ctx context.Context, req TransferRequest) error {
	c.transferMu.Lock()
	defer c.transferMu.Unlock()

	c.mu.Lock()
	conn := c.conn
	connected := c.connected
	c.mu.Unlock()
	if !connected || conn == nil {
		return ErrNotConnected
	}

	respCh := make(chan transferResponse, 1)
	c.inflightMu.Lock()
	c.inflight = respCh
	c.inflightMu.Unlock()

	clear := func() {
		c.inflightMu.Lock()
		if c.inflight == respCh {
			c.inflight = nil
		}
		c.inflightMu.Unlock()
	}

	data, err := json.Marshal(req)
	if err != nil {
		clear()
		return fmt.Errorf("marshal transfer request: %w", err)
	}
	msg, err := json.Marshal(envelope{Event: "transferDigipogs", Data: data})
	if err != nil {
		clear()
		return fmt.Errorf("marshal transfer envelope: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		clear()
		return fmt.Errorf("send transfer request: %w", err)
	}

	timer := time.NewTimer(c.cfg.Timeout)
	defer timer.Stop()

	select {
	case resp := <-respCh:
		if resp.Success {
			return nil
		}
		msg := resp.Message
		if msg == "" {
			msg = "transfer rejected"
		}
		return &TransferError{Message: msg}
	case <-timer.C:
		clear()
		return ErrTransferTimeout
	case <-ctx.Done():
		clear()
		return ctx.Err()
	}
}
