package http

import (
	"errors"
	"net/http"

	"github.com/dkeye/one-word-story/internal/app"
	"github.com/dkeye/one-word-story/internal/app/orch"
	"github.com/dkeye/one-word-story/internal/domain"
	"github.com/gin-gonic/gin"
)

type StatsSource interface {
	Stats() app.Stats
}

// Handlers serves the REST side of the game. Identity comes from the
// "client_token" context key set by the session middleware.
type Handlers struct {
	Orch  *orch.Orchestrator
	Stats StatsSource
}

type CreateRoomRequest struct {
	Name string `json:"name"`
}

type CreateRoomResponse struct {
	ID   domain.RoomID   `json:"id"`
	Name domain.RoomName `json:"name"`
}

type StoryResponse struct {
	RoomID domain.RoomID    `json:"room_id"`
	Pages  []orch.StoryPage `json:"pages"`
}

type StatsResponse struct {
	app.Stats
	Rooms       int `json:"rooms"`
	Connections int `json:"connections"`
}

func (h *Handlers) Register(api *gin.RouterGroup) {
	api.GET("/healthz", h.healthz)
	api.GET("/stats", h.stats)
	api.GET("/rooms", h.listRooms)
	api.POST("/rooms", h.createRoom)
	api.GET("/rooms/:id/story", h.roomStory)
}

func (h *Handlers) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handlers) stats(c *gin.Context) {
	resp := StatsResponse{
		Rooms:       len(h.Orch.Rooms.List()),
		Connections: h.Orch.Registry.Len(),
	}
	if h.Stats != nil {
		resp.Stats = h.Stats.Stats()
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handlers) listRooms(c *gin.Context) {
	c.JSON(http.StatusOK, h.Orch.Rooms.List())
}

func (h *Handlers) createRoom(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil || domain.NormalizeRoomName(req.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid name"})
		return
	}
	owner := domain.Identity(c.GetString("client_token"))
	room := h.Orch.CreateRoom(owner, req.Name)
	c.JSON(http.StatusCreated, CreateRoomResponse{ID: room.Room().ID, Name: room.Room().Name})
}

func (h *Handlers) roomStory(c *gin.Context) {
	id := domain.RoomID(c.Param("id"))
	pages, err := h.Orch.Story(id)
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": domain.Reason(err)})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": domain.Reason(err)})
		return
	}
	if pages == nil {
		pages = []orch.StoryPage{}
	}
	c.JSON(http.StatusOK, StoryResponse{RoomID: id, Pages: pages})
}
