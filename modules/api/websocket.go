package api

import (
	"time"

	"github.com/example/roomrelay/modules/relay"
	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// handleWebSocket runs one client connection at /ws. The read loop is the only
// goroutine driving the session; writePump is the only one writing to the socket.
func (m *Module) handleWebSocket(c *websocket.Conn) {
	connectionID := uuid.New().String()
	outbox := relay.NewOutbox(m.cfg.SendBuffer)
	m.conns.Store(connectionID, outbox)

	session := m.relay.Open(connectionID, outbox)

	written := make(chan struct{})
	go m.writePump(c, connectionID, outbox, written)

	defer func() {
		// Close the outbox first so signaling to this id fails from here on.
		outbox.Close()
		session.Disconnect()
		m.conns.Delete(connectionID)
		<-written
		m.logger.Info("WebSocket client disconnected", "connectionID", connectionID)
	}()

	m.logger.Info("WebSocket client connected", "connectionID", connectionID, "remote", c.RemoteAddr().String())

	limiter := rate.NewLimiter(rate.Limit(m.cfg.RatePerSecond), m.cfg.RateBurst)

	c.SetReadLimit(maxMessageSize)
	_ = c.SetReadDeadline(time.Now().Add(pongWait))
	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				m.logger.Warn("WebSocket read error", "connectionID", connectionID, "error", err)
			}
			return
		}

		if !limiter.Allow() {
			session.SendError(relay.CodeRateLimited, "too many events, slow down")
			continue
		}

		if err := session.Dispatch(m.baseCtx, frame); err != nil {
			m.logger.Debug("Event not applied",
				"connectionID", connectionID,
				"state", session.State().String(),
				"error", err)
		}
	}
}

// writePump drains the outbox in order and keeps the connection alive with pings.
func (m *Module) writePump(c *websocket.Conn, connectionID string, outbox *relay.Outbox, written chan<- struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		close(written)
	}()

	for {
		select {
		case frame := <-outbox.Frames():
			_ = c.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.WriteMessage(websocket.TextMessage, frame); err != nil {
				m.logger.Debug("WebSocket write failed", "connectionID", connectionID, "error", err)
				m.abort(c, outbox)
				return
			}
		case <-ticker.C:
			_ = c.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
				m.abort(c, outbox)
				return
			}
		case <-outbox.Done():
			_ = c.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			// Unblock the read loop when the close was initiated on this side.
			_ = c.SetReadDeadline(time.Now().Add(writeWait))
			return
		}
	}
}

// abort stops accepting frames and forces the read loop out.
func (m *Module) abort(c *websocket.Conn, outbox *relay.Outbox) {
	outbox.Close()
	_ = c.SetReadDeadline(time.Now())
}
