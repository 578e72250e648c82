package api

import (
	"io"

	"github.com/gin-gonic/gin"
)

// stream attaches the client to the broadcast hub as a server-sent-events
// consumer. Each hub event becomes a named SSE event with a JSON payload.
func (s *Server) stream(c *gin.Context) {
	sub := s.hub.Subscribe()
	defer sub.Close()

	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	clientGone := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-clientGone:
			return false
		case ev, ok := <-sub.C:
			if !ok {
				return false
			}
			c.SSEvent(ev.Name, ev.Data)
			return true
		}
	})
}
