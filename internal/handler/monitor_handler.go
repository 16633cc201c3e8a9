package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/skolara/skolara-backend/internal/config"
	"github.com/skolara/skolara-backend/internal/middleware"
	"github.com/skolara/skolara-backend/internal/response"
	"github.com/skolara/skolara-backend/internal/service"
)

const (
	monitorWriteWait    = 10 * time.Second
	monitorPingInterval = 30 * time.Second
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// MonitorHandler streams live quiz progress to the material's teacher.
type MonitorHandler struct {
	rdb             *redis.Client
	materialService *service.MaterialService
	monitorService  *service.MonitorService
	log             zerolog.Logger
	upgrader        websocket.Upgrader
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(
	rdb *redis.Client,
	materialService *service.MaterialService,
	monitorService *service.MonitorService,
	log zerolog.Logger,
	allowedOrigins []string,
) *MonitorHandler {
	return &MonitorHandler{
		rdb:             rdb,
		materialService: materialService,
		monitorService:  monitorService,
		log:             log.With().Str("component", "monitor_handler").Logger(),
		upgrader:        buildUpgrader(allowedOrigins),
	}
}

// MonitorMaterial godoc
// WS /ws/v1/teacher/materials/:material_id/monitor?token=...
// Sends an initial per-student snapshot, then forwards live progress and
// submission events published on the material's Redis channel.
func (h *MonitorHandler) MonitorMaterial(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	materialID, err := uuid.Parse(c.Param("material_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	material, err := h.materialService.GetByID(c.Request.Context(), materialID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrMaterialNotFound)
		return
	}
	if material.TeacherID != claims.UserID {
		response.Fail(c, http.StatusForbidden, response.ErrNotMaterialAuthor)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Int("teacher_id", claims.UserID).
		Str("material_id", materialID.String()).
		Logger()
	wsLog.Info().Msg("Teacher attached to live monitor")

	reqCtx := c.Request.Context()

	// Initial snapshot so the teacher does not start from a blank table.
	snapshot, err := h.monitorService.Snapshot(reqCtx, materialID)
	if err != nil {
		wsLog.Error().Err(err).Msg("Snapshot failed")
		h.writeJSON(conn, gin.H{"type": "error", "message": "snapshot unavailable"})
		return
	}
	if err := h.writeJSON(conn, gin.H{"type": "snapshot", "students": snapshot}); err != nil {
		return
	}

	pubsub := h.rdb.Subscribe(reqCtx, config.CacheKey.MaterialMonitorChannel(materialID.String()))
	defer pubsub.Close()
	ch := pubsub.Channel()

	// Reader goroutine: we never expect messages from the teacher, but the
	// read pump is what surfaces the close frame.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	pingTicker := time.NewTicker(monitorPingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-reqCtx.Done():
			return

		case <-done:
			wsLog.Info().Msg("Teacher disconnected")
			return

		case msg, okCh := <-ch:
			if !okCh {
				return
			}
			// Events are published pre-serialized; forward as-is.
			conn.SetWriteDeadline(time.Now().Add(monitorWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				wsLog.Debug().Err(err).Msg("Write failed, closing monitor")
				return
			}

		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(monitorWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *MonitorHandler) writeJSON(conn *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(monitorWriteWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}
