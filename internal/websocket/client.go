// Fleetwatch - Fleet Tracking and Live Vehicle Location Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package websocket

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/tomtom215/fleetwatch/internal/auth"
	"github.com/tomtom215/fleetwatch/internal/authz"
	"github.com/tomtom215/fleetwatch/internal/ingest"
	"github.com/tomtom215/fleetwatch/internal/logging"
	"github.com/tomtom215/fleetwatch/internal/metrics"
	"github.com/tomtom215/fleetwatch/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024 // 512 KB

	// DefaultQueueSize bounds each client's outbound queue.
	DefaultQueueSize = 256
)

// clientIDCounter hands out observer ids. Zero is reserved for "no origin".
var clientIDCounter atomic.Uint64

// Reporter is the ingest entry point used by send_location.
type Reporter interface {
	Report(ctx context.Context, p auth.Principal, report models.PositionReport, src ingest.Source) (models.Ack, error)
}

// Viewer authorizes join_vehicle.
type Viewer interface {
	CanView(ctx context.Context, p auth.Principal, object, vehicleID string) error
}

// Client is a middleman between the websocket connection and the hub
type Client struct {
	id        uint64
	hub       *Hub
	conn      *websocket.Conn
	principal auth.Principal
	reporter  Reporter
	viewer    Viewer
	limiter   *rate.Limiter

	mu     sync.Mutex
	send   chan Message
	closed bool

	// subs is only touched by readPump.
	subs map[string]*Subscription

	ctx    context.Context
	cancel context.CancelFunc
}

// ClientOptions are per-connection settings.
type ClientOptions struct {
	QueueSize int
	SendRate  rate.Limit
	SendBurst int
}

// NewClient creates a Client. ctx outlives the HTTP request and is canceled
// when the connection closes.
func NewClient(ctx context.Context, hub *Hub, conn *websocket.Conn, p auth.Principal, reporter Reporter, viewer Viewer, opts ClientOptions) *Client {
	queue := opts.QueueSize
	if queue <= 0 {
		queue = DefaultQueueSize
	}
	limit, burst := opts.SendRate, opts.SendBurst
	if limit <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Client{
		id:        clientIDCounter.Add(1),
		hub:       hub,
		conn:      conn,
		principal: p,
		reporter:  reporter,
		viewer:    viewer,
		limiter:   rate.NewLimiter(limit, burst),
		send:      make(chan Message, queue),
		subs:      make(map[string]*Subscription),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// ID returns the client's observer id.
func (c *Client) ID() uint64 {
	return c.id
}

// Deliver enqueues msg without blocking.
func (c *Client) Deliver(msg Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Drop closes the send queue; writePump then closes the connection.
func (c *Client) Drop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// readPump pumps messages from the websocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		c.hub.UnsubscribeAll(c)
		c.cancel()
		c.Drop()
		_ = c.conn.Close() // best-effort cleanup
		metrics.WSConnections.Dec()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				logging.Warn().Err(err).Uint64("client_id", c.id).Msg("unexpected websocket close error")
				metrics.WSErrors.WithLabelValues("unexpected_close").Inc()
			}
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			metrics.WSErrors.WithLabelValues("malformed").Inc()
			c.Deliver(errorMessage("BAD_REQUEST", "malformed frame", ""))
			continue
		}
		metrics.WSMessagesReceived.WithLabelValues(msg.Type).Inc()
		c.handle(msg)
	}
}

func (c *Client) handle(msg inboundMessage) {
	switch msg.Type {
	case MessageTypeJoinVehicle:
		c.join(msg.Data)
	case MessageTypeLeaveVehicle:
		c.leave(msg.Data)
	case MessageTypeSendLocation:
		c.sendLocation(msg.Data)
	case MessageTypePing:
		c.Deliver(Message{Type: MessageTypePong})
	default:
		c.Deliver(errorMessage("BAD_REQUEST", "unknown message type "+msg.Type, ""))
	}
}

func decodeVehicle(data []byte) (string, bool) {
	var payload VehiclePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", false
	}
	id := strings.TrimSpace(payload.VehicleID)
	return id, id != ""
}

func (c *Client) join(data []byte) {
	vehicleID, ok := decodeVehicle(data)
	if !ok {
		c.Deliver(errorMessage(ingest.CodeValidationFailed, "vehicleId is required", ""))
		return
	}
	if err := c.viewer.CanView(c.ctx, c.principal, authz.ObjectLocation, vehicleID); err != nil {
		code := ingest.CodeForbidden
		if !errors.Is(err, authz.ErrDenied) {
			code = ingest.CodeInternal
		}
		c.Deliver(errorMessage(code, "cannot view vehicle", vehicleID))
		return
	}

	sub, err := c.hub.Subscribe(c.ctx, vehicleID, c)
	if err != nil {
		logging.Ctx(c.ctx).Warn().Err(err).Str("vehicle_id", vehicleID).Msg("Subscribe failed")
		c.Deliver(errorMessage(ingest.ErrorCode(err), "subscribe failed", vehicleID))
		return
	}
	c.subs[vehicleID] = sub
}

func (c *Client) leave(data []byte) {
	vehicleID, ok := decodeVehicle(data)
	if !ok {
		c.Deliver(errorMessage(ingest.CodeValidationFailed, "vehicleId is required", ""))
		return
	}
	if sub, ok := c.subs[vehicleID]; ok {
		sub.Unsubscribe()
		delete(c.subs, vehicleID)
	}
}

func (c *Client) sendLocation(data []byte) {
	if !c.limiter.Allow() {
		metrics.WSErrors.WithLabelValues("rate_limited").Inc()
		c.Deliver(errorMessage("RATE_LIMIT_EXCEEDED", "too many location updates", ""))
		return
	}

	report, err := decodeSendLocation(data)
	if err != nil {
		c.Deliver(errorMessage("BAD_REQUEST", "malformed send_location payload", ""))
		return
	}

	ack, err := c.reporter.Report(c.ctx, c.principal, report, ingest.Source{
		Transport:  ingest.TransportWebSocket,
		ObserverID: c.id,
	})
	if err != nil {
		c.Deliver(errorMessage(ingest.ErrorCode(err), err.Error(), report.VehicleID))
		return
	}
	c.Deliver(Message{Type: MessageTypeAck, Data: ack})
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close() // best-effort cleanup
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}

			if !ok {
				// Dropped by the hub or the read side.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			payload, err := MarshalMessage(message)
			if err != nil {
				logging.Error().Err(err).Str("type", message.Type).Msg("failed to marshal message")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				metrics.WSErrors.WithLabelValues("write").Inc()
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline for ping")
				return
			}

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start begins reading and writing for the client
func (c *Client) Start() {
	metrics.WSConnections.Inc()
	go c.writePump()
	go c.readPump()
}
