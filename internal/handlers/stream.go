package handlers

import (
	"context"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/nikah-service/internal/ceremony"
	"github.com/yourusername/nikah-service/internal/hub"
	"github.com/yourusername/nikah-service/internal/models"
	"github.com/yourusername/nikah-service/pkg/utils"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const writeTimeout = 10 * time.Second

// Event is one frame of a room stream
type Event struct {
	Type string        `json:"type"`
	Data ceremony.View `json:"data"`
}

type StreamHandler struct {
	hub            *hub.Hub
	originPatterns []string
	anyOrigin      bool
}

func NewStreamHandler(h *hub.Hub, allowedOrigins []string) *StreamHandler {
	patterns, anyOrigin := originPatterns(allowedOrigins)
	return &StreamHandler{
		hub:            h,
		originPatterns: patterns,
		anyOrigin:      anyOrigin,
	}
}

// originPatterns turns allowed origins into the host patterns websocket
// Accept matches against.
func originPatterns(allowed []string) ([]string, bool) {
	if len(allowed) == 0 {
		return nil, true
	}
	var patterns []string
	for _, o := range allowed {
		o = strings.TrimSpace(o)
		if o == "*" {
			return nil, true
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			o = u.Host
		}
		if o != "" {
			patterns = append(patterns, o)
		}
	}
	return patterns, false
}

func (h *StreamHandler) listen(ctx context.Context, c *gin.Context) (*hub.Listener, bool) {
	roomID := c.Param("roomId")
	if err := utils.ValidateRoomID(roomID); err != nil {
		writeError(c, models.NewValidationError("roomId", err.Error()))
		return nil, false
	}
	l, err := h.hub.Listen(ctx, roomID)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return l, true
}

// Events streams room views as Server-Sent Events
func (h *StreamHandler) Events(c *gin.Context) {
	l, ok := h.listen(c.Request.Context(), c)
	if !ok {
		return
	}
	defer l.Close()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		view, ok := <-l.C
		if !ok {
			return false
		}
		c.SSEvent("room", view)
		return true
	})
}

// WebSocket streams room views over a push-only WebSocket
func (h *StreamHandler) WebSocket(c *gin.Context) {
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	l, ok := h.listen(ctx, c)
	if !ok {
		return
	}
	defer l.Close()

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns:     h.originPatterns,
		InsecureSkipVerify: h.anyOrigin,
	})
	if err != nil {
		return // Accept already wrote the response
	}

	// Push only, but control frames still need reading
	ctx = conn.CloseRead(ctx)

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "bye")
			return
		case view, ok := <-l.C:
			if !ok {
				_ = conn.Close(websocket.StatusNormalClosure, "room closed")
				return
			}
			writeCtx, cancelWrite := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(writeCtx, conn, Event{Type: "room", Data: view})
			cancelWrite()
			if err != nil {
				return
			}
		}
	}
}
