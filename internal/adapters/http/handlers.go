package http

import (
	"cmp"
	"errors"
	"net/http"
	"slices"

	"github.com/dkeye/Chat/internal/app/orch"
	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	defaultAdminName = "An administrator"
	latestRoomsLimit = 5
)

type handlers struct {
	orch          *orch.Orchestrator
	defaultAvatar string
}

type roomView struct {
	domain.Room
	Users int `json:"users"`
}

func (h *handlers) guestLogin(c *gin.Context) {
	name := domain.GuestName()
	sess := sessions.Default(c)
	sess.Set("username", name)
	sess.Set("guest", true)
	if err := sess.Save(); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("save session")
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "guest": name})
}

func (h *handlers) session(c *gin.Context) {
	name, ok := sessions.Default(c).Get("username").(string)
	if !ok || name == "" {
		c.JSON(http.StatusOK, gin.H{"logged": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"logged":    true,
		"username":  name,
		"avatarUrl": h.defaultAvatar,
		"role":      "guest",
		"isAdmin":   false,
		"guest":     true,
	})
}

func (h *handlers) listRooms(c *gin.Context) {
	rooms, err := h.orch.Store.ListRooms(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("list rooms")
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false})
		return
	}
	counts := h.orch.OnlineCounts()
	out := make([]roomView, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, roomView{Room: r, Users: counts[r.ID]})
	}
	c.JSON(http.StatusOK, out)
}

// latestRooms lists the most recently created rooms, newest first.
func (h *handlers) latestRooms(c *gin.Context) {
	rooms, err := h.orch.Store.ListRooms(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("latest rooms")
		c.JSON(http.StatusOK, []gin.H{})
		return
	}
	slices.SortFunc(rooms, func(a, b domain.Room) int { return cmp.Compare(b.ID, a.ID) })
	if len(rooms) > latestRoomsLimit {
		rooms = rooms[:latestRoomsLimit]
	}
	out := make([]gin.H, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, gin.H{"id": r.ID, "name": r.Name})
	}
	c.JSON(http.StatusOK, out)
}

// roomInfo answers {} for an unknown room. The password hash is never exposed;
// clients only learn whether the room is locked.
func (h *handlers) roomInfo(c *gin.Context) {
	id, err := domain.ParseRoomID(c.Query("roomId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}
	rooms, err := h.orch.Store.ListRooms(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Stringer("room", id).Msg("room info")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load room"})
		return
	}
	for _, r := range rooms {
		if r.ID == id {
			c.JSON(http.StatusOK, roomView{Room: r, Users: h.orch.OnlineCounts()[id]})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{})
}

type createRoomRequest struct {
	Name        string `json:"name" binding:"required,max=64"`
	Description string `json:"description" binding:"max=500"`
	Category    string `json:"category" binding:"max=64"`
	Password    string `json:"password" binding:"max=128"`
}

func (h *handlers) createRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	room, err := h.orch.Store.CreateRoom(c.Request.Context(), domain.NewRoom{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Password:    req.Password,
	})
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("create room")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false})
		return
	}
	log.Info().Str("module", "adapters.http").Stringer("room", room.ID).Str("name", room.Name).Msg("room created")
	c.JSON(http.StatusCreated, gin.H{"success": true, "roomId": room.ID, "room": room})
}

func (h *handlers) roomMembers(c *gin.Context) {
	id, err := domain.ParseRoomID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}
	c.JSON(http.StatusOK, h.orch.Snapshot(id))
}

func (h *handlers) messages(c *gin.Context) {
	raw := c.Query("roomId")
	if raw == "" {
		c.JSON(http.StatusOK, []domain.Message{})
		return
	}
	id, err := domain.ParseRoomID(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}
	msgs, err := h.orch.History(c.Request.Context(), id)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Stringer("room", id).Msg("get messages")
		c.JSON(http.StatusOK, []domain.Message{})
		return
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	c.JSON(http.StatusOK, msgs)
}

func (h *handlers) activeUsers(c *gin.Context) {
	names, err := h.orch.ActiveUsers(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("active users")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list active users"})
		return
	}
	out := make([]gin.H, 0, len(names))
	for _, name := range names {
		out = append(out, gin.H{"username": name})
	}
	c.JSON(http.StatusOK, out)
}

type usernameRequest struct {
	Username string `json:"username" binding:"required,max=36"`
}

type kickRequest struct {
	SocketID string        `json:"socketId" binding:"required"`
	RoomID   domain.RoomID `json:"roomId" binding:"gt=0"`
}

type banRequest struct {
	Username string        `json:"username" binding:"required,max=36"`
	RoomID   domain.RoomID `json:"roomId" binding:"gt=0"`
}

// adminName is who gets credited in moderation notices.
func adminName(c *gin.Context) string {
	if name, ok := sessions.Default(c).Get("username").(string); ok && name != "" {
		return name
	}
	return defaultAdminName
}

func (h *handlers) setHost(c *gin.Context) {
	var req usernameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}
	h.orch.GrantHost(c.Request.Context(), adminName(c), req.Username)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *handlers) removeHost(c *gin.Context) {
	var req usernameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}
	h.orch.RevokeHost(c.Request.Context(), adminName(c), req.Username)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *handlers) kickUser(c *gin.Context) {
	var req kickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}
	kicked := h.orch.Kick(core.ConnID(req.SocketID), req.RoomID)
	c.JSON(http.StatusOK, gin.H{"ok": true, "kicked": kicked})
}

func (h *handlers) banUser(c *gin.Context) {
	var req banRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}
	h.orch.Ban(c.Request.Context(), req.Username, req.RoomID)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *handlers) stats(c *gin.Context) {
	st, err := h.orch.Stats(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("admin stats")
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false})
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *handlers) setOfficial(official bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := domain.ParseRoomID(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid room id"})
			return
		}
		if err := h.orch.SetOfficial(c.Request.Context(), id, official); err != nil {
			if errors.Is(err, core.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"ok": false})
				return
			}
			log.Error().Err(err).Str("module", "adapters.http").Stringer("room", id).Msg("set official")
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
