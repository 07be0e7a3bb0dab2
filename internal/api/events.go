package api

import (
	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// handleEvents streams scan events to one client over SSE. The subscriber
// lives exactly as long as the response: registered here, removed when the
// first write fails or the request context ends. A synthetic hello frame is
// sent up front so the client knows the stream is live before any scan
// happens.
func (s *Server) handleEvents(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	sub := s.bus.Register()
	defer s.bus.Unregister(sub)

	log.Debug().Msg("event stream client connected")

	if err := sse.Encode(c.Writer, sse.Event{Event: "hello", Data: "ready"}); err != nil {
		return
	}
	c.Writer.Flush()

	for {
		select {
		case msg, ok := <-sub.C:
			if !ok {
				// Dropped by the broadcaster for falling behind.
				log.Warn().Msg("event stream client too slow, closing")
				return
			}
			if err := sse.Encode(c.Writer, sse.Event{Data: msg}); err != nil {
				log.Debug().Err(err).Msg("event stream client disconnected")
				return
			}
			c.Writer.Flush()
		case <-c.Request.Context().Done():
			log.Debug().Msg("event stream client disconnected")
			return
		}
	}
}
