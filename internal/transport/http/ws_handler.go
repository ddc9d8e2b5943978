package http

import (
	"log/slog"
	"net/http"

	gorilla "github.com/gorilla/websocket"

	"github.com/briantruongvn/ngocson-tss-converter/internal/config"
	"github.com/briantruongvn/ngocson-tss-converter/internal/websocket"
)

// WSHandler upgrades connections and hands them to the progress hub.
type WSHandler struct {
	hub      *websocket.Hub
	cfg      config.WebSocketConfig
	upgrader gorilla.Upgrader
	logger   *slog.Logger
}

// NewWSHandler creates a websocket handler.
func NewWSHandler(hub *websocket.Hub, cfg config.WebSocketConfig, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		hub: hub,
		cfg: cfg,
		upgrader: gorilla.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			// Progress snapshots carry no secrets and the UI may be
			// served from another origin during development.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger.With(slog.String("handler", "websocket")),
	}
}

// Serve handles GET /ws.
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.logger.WarnContext(r.Context(), "websocket upgrade failed",
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("error", err.Error()))
		return
	}

	websocket.ServeWS(h.hub, conn, h.cfg, h.logger)
}
