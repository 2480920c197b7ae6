package handler

import (
	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/timmy/memevote/internal/api/middleware"
	"github.com/timmy/memevote/internal/events"
)

// LiveHandler upgrades requests to a websocket event feed.
type LiveHandler struct {
	hub            *events.Hub
	originPatterns []string
	anyOrigin      bool
}

// NewLiveHandler creates a live feed handler. originPatterns are host
// patterns such as "localhost:3000" or "*.vercel.app".
func NewLiveHandler(hub *events.Hub, originPatterns []string, anyOrigin bool) *LiveHandler {
	return &LiveHandler{
		hub:            hub,
		originPatterns: originPatterns,
		anyOrigin:      anyOrigin,
	}
}

// Subscribe handles GET /api/memes/live.
func (h *LiveHandler) Subscribe(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns:     h.originPatterns,
		InsecureSkipVerify: h.anyOrigin,
	})
	if err != nil {
		middleware.GetLogger(c).WithError(err).Warn("Websocket upgrade failed")
		return
	}

	middleware.GetLogger(c).Info("Live feed client connected")
	h.hub.Serve(c.Request.Context(), conn)
}
