package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/radlabs/rampd/internal/server/websocket"
	"github.com/radlabs/rampd/pkg/config"
)

type WebSocketHandler struct {
	hub      *websocket.Hub
	upgrader gorilla.Upgrader
	logger   zerolog.Logger
}

func NewWebSocketHandler(hub *websocket.Hub, cfg config.WSConfig, logger zerolog.Logger) *WebSocketHandler {
	readBuf := cfg.ReadBufferSize
	if readBuf == 0 {
		readBuf = 1024
	}
	writeBuf := cfg.WriteBufferSize
	if writeBuf == 0 {
		writeBuf = 1024
	}

	return &WebSocketHandler{
		hub: hub,
		upgrader: gorilla.Upgrader{
			ReadBufferSize:  readBuf,
			WriteBufferSize: writeBuf,
			CheckOrigin: func(r *http.Request) bool {
				// Demo deployment; origin checks are relaxed unless enabled.
				return !cfg.CheckOrigin || r.Header.Get("Origin") == ""
			},
		},
		logger: logger.With().Str("component", "ws_handler").Logger(),
	}
}

// HandleConnection upgrades the request and subscribes the client to transfer
// status broadcasts until it disconnects.
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := websocket.NewClient(conn)
	h.hub.AddClient(client)
	defer h.hub.RemoveClient(client.ID())

	client.Wait()
}
