package api

import (
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/tillworks/pos-bridge/internal/broadcast"
)

// WebSocket message types
const (
	EventScan     = "scan"
	EventPrint    = "print"
	EventResponse = "response"
	EventError    = "error"
)

// WSMessage represents a WebSocket message
type WSMessage struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data"`
}

// wsClient represents a connected WebSocket client. It mirrors the SSE
// stream for clients that prefer a socket, and additionally accepts print
// submissions over the same connection.
type wsClient struct {
	conn   *websocket.Conn
	sub    *broadcast.Subscriber
	send   chan WSMessage
	done   chan struct{}
	server *Server
	once   sync.Once
}

// handleWebSocket upgrades the connection and starts the client pumps.
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &wsClient{
		conn:   conn,
		sub:    s.bus.Register(),
		send:   make(chan WSMessage, 64),
		done:   make(chan struct{}),
		server: s,
	}

	log.Debug().Msg("websocket client connected")

	go client.writePump()
	go client.readPump()
}

// close tears the client down once, whichever pump fails first.
func (c *wsClient) close() {
	c.once.Do(func() {
		c.server.bus.Unregister(c.sub)
		c.conn.Close()
		close(c.done)
		log.Debug().Msg("websocket client disconnected")
	})
}

func (c *wsClient) writePump() {
	defer c.close()

	for {
		select {
		case code, ok := <-c.sub.C:
			if !ok {
				// Dropped by the broadcaster for falling behind.
				return
			}
			msg := WSMessage{
				Event: EventScan,
				Data:  map[string]any{"code": code},
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case msg := <-c.send:
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *wsClient) readPump() {
	defer c.close()

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Msg("websocket read failed")
			}
			return
		}

		c.handleMessage(&msg)
	}
}

func (c *wsClient) handleMessage(msg *WSMessage) {
	switch msg.Event {
	case EventPrint:
		c.handlePrintEvent(msg.Data)
	default:
		c.sendError("unknown event: " + msg.Event)
	}
}

// handlePrintEvent enqueues a print job submitted over the socket. Same
// policy as POST /print.
func (c *wsClient) handlePrintEvent(data map[string]any) {
	text := strings.TrimSpace(coerceString(data["text"]))

	if text == "" && !c.server.cfg.Printer.AllowEmpty {
		c.sendError("empty text")
		return
	}

	jobID := c.server.queue.Enqueue(text)

	c.sendMessage(WSMessage{
		Event: EventResponse,
		Data:  map[string]any{"ok": true, "job_id": jobID},
	})
}

func (c *wsClient) sendError(message string) {
	c.sendMessage(WSMessage{
		Event: EventError,
		Data:  map[string]any{"ok": false, "error": message},
	})
}

func (c *wsClient) sendMessage(msg WSMessage) {
	select {
	case c.send <- msg:
	case <-c.done:
	}
}
