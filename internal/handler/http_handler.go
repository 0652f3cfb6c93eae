// Package handler exposes the HTTP and websocket surface of the service.
package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"

	"story-moderator/internal/config"
	"story-moderator/internal/models"
	"story-moderator/internal/service"
)

// HTTPHandler serves the REST endpoints.
type HTTPHandler struct {
	service *service.SessionService
	cfg     *config.Config
	logger  *zap.Logger
}

// NewHTTPHandler creates the REST handler.
func NewHTTPHandler(svc *service.SessionService, cfg *config.Config, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{service: svc, cfg: cfg, logger: logger.Named("HTTPHandler")}
}

// NewRouter assembles the gin engine with CORS, metrics and all routes.
func NewRouter(httpHandler *HTTPHandler, wsHandler *WSHandler, cfg *config.Config) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.FrontendURL},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	prom := ginprometheus.NewPrometheus("story_moderator")
	prom.Use(router)

	router.GET("/healthz", httpHandler.Health)
	router.GET("/join/:mode", httpHandler.AutoJoin)
	router.GET("/api/room/:room_id", httpHandler.RoomInfo)
	router.GET("/api/stories", httpHandler.Stories)
	router.GET("/ws", wsHandler.ServeWS)

	return router
}

// Health handles GET /healthz.
func (h *HTTPHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// AutoJoin handles GET /join/:mode, assigning the caller to a joinable room.
func (h *HTTPHandler) AutoJoin(c *gin.Context) {
	mode := models.RoomMode(c.Param("mode"))
	h.logger.Info("Auto-join request", zap.String("mode", string(mode)))

	room, err := h.service.GetOrCreateRoom(c.Request.Context(), mode)
	if err != nil {
		if errors.Is(err, models.ErrInvalidMode) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid mode. Use 'active' or 'passive'"})
			return
		}
		h.logger.Error("Failed to assign room", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to assign room"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"room_id":      room.ID.String(),
		"mode":         room.Mode,
		"redirect_url": fmt.Sprintf("%s/chat/%s", h.cfg.FrontendURL, room.ID),
	})
}

// RoomInfo handles GET /api/room/:room_id.
func (h *HTTPHandler) RoomInfo(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("room_id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
		return
	}

	room, participants, err := h.service.GetRoomInfo(c.Request.Context(), roomID)
	if err != nil {
		if errors.Is(err, models.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
			return
		}
		h.logger.Error("Failed to get room info", zap.String("room_id", roomID.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get room info"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"room":              room,
		"participants":      participants,
		"participant_count": len(participants),
	})
}

// Stories handles GET /api/stories.
func (h *HTTPHandler) Stories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"stories": h.service.ListStories()})
}
