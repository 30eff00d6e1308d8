package rest

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jupiterclapton/socialgraph/internal/core/domain"
	"github.com/jupiterclapton/socialgraph/internal/core/ports"
)

const (
	defaultSuggestionLimit = 10
	maxSuggestionLimit     = domain.MaxPageLimit
)

// Handler expose le FollowService en REST et hydrate les ids en users.
type Handler struct {
	service ports.FollowService
	users   ports.UserDirectory
}

func NewHandler(service ports.FollowService, users ports.UserDirectory) *Handler {
	return &Handler{service: service, users: users}
}

func (h *Handler) RegisterRoutes(router gin.IRouter) {
	v1 := router.Group("/v1")
	{
		v1.POST("/follows", h.Follow)
		v1.DELETE("/follows/:follower/:followee", h.Unfollow)

		users := v1.Group("/users/:username")
		{
			users.DELETE("/followers/:follower", h.RemoveFollower)
			users.GET("/followers", h.ListFollowers)
			users.GET("/following", h.ListFollowing)
			users.GET("/following/:target", h.IsFollowing)
			users.GET("/relation/:target", h.Relation)
			users.GET("/stats", h.Stats)
			users.GET("/mutual/:other", h.Mutual)
			users.GET("/suggestions", h.Suggestions)
		}
	}
}

type followRequest struct {
	Follower string `json:"follower" binding:"required"`
	Followee string `json:"followee" binding:"required"`
}

type pageQuery struct {
	Page  int `form:"page"`
	Limit int `form:"limit"`
}

type suggestionQuery struct {
	Limit *int `form:"limit"`
}

// --- COMMANDS ---

func (h *Handler) Follow(c *gin.Context) {
	var req followRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	res := h.service.FollowUser(c.Request.Context(), req.Follower, req.Followee)
	if !res.Success {
		writeFailure(c, res.Message, res.Err, res.Degraded)
		return
	}
	c.JSON(http.StatusCreated, envelope{Success: true, Message: res.Message, Data: toFollowResponse(res.Data)})
}

func (h *Handler) Unfollow(c *gin.Context) {
	res := h.service.UnfollowUser(c.Request.Context(), c.Param("follower"), c.Param("followee"))
	writeResult(c, res, res.Data)
}

func (h *Handler) RemoveFollower(c *gin.Context) {
	res := h.service.RemoveFollower(c.Request.Context(), c.Param("username"), c.Param("follower"))
	writeResult(c, res, res.Data)
}

// --- QUERIES ---

func (h *Handler) ListFollowers(c *gin.Context) {
	h.listPage(c, h.service.GetFollowers)
}

func (h *Handler) ListFollowing(c *gin.Context) {
	h.listPage(c, h.service.GetFollowing)
}

func (h *Handler) listPage(c *gin.Context, fetch func(context.Context, string, domain.Pagination) domain.Result[domain.Page[string]]) {
	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid pagination: " + err.Error()})
		return
	}

	ctx := c.Request.Context()
	res := fetch(ctx, c.Param("username"), domain.Pagination{Page: q.Page, Limit: q.Limit})
	if !res.Success {
		writeFailure(c, res.Message, res.Err, res.Degraded)
		return
	}

	users, hydrated := h.hydrate(ctx, res.Data.Data)
	c.JSON(http.StatusOK, envelope{
		Success:  true,
		Message:  res.Message,
		Data:     toPageResponse(res.Data, users),
		Degraded: res.Degraded || !hydrated,
	})
}

func (h *Handler) IsFollowing(c *gin.Context) {
	following := h.service.IsFollowing(c.Request.Context(), c.Param("username"), c.Param("target"))
	c.JSON(http.StatusOK, envelope{Success: true, Data: gin.H{"following": following}})
}

func (h *Handler) Relation(c *gin.Context) {
	res := h.service.RelationStatus(c.Request.Context(), c.Param("username"), c.Param("target"))
	writeResult(c, res, toRelationResponse(res.Data))
}

func (h *Handler) Stats(c *gin.Context) {
	res := h.service.GetFollowStats(c.Request.Context(), c.Param("username"))
	writeResult(c, res, toStatsResponse(res.Data))
}

func (h *Handler) Mutual(c *gin.Context) {
	ctx := c.Request.Context()
	res := h.service.GetMutualFollows(ctx, c.Param("username"), c.Param("other"))
	if !res.Success {
		writeFailure(c, res.Message, res.Err, res.Degraded)
		return
	}
	users, hydrated := h.hydrate(ctx, res.Data)
	c.JSON(http.StatusOK, envelope{Success: true, Message: res.Message, Data: users, Degraded: res.Degraded || !hydrated})
}

func (h *Handler) Suggestions(c *gin.Context) {
	var q suggestionQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit: " + err.Error()})
		return
	}
	limit := defaultSuggestionLimit
	if q.Limit != nil {
		limit = min(*q.Limit, maxSuggestionLimit)
	}

	ctx := c.Request.Context()
	res := h.service.GetFollowSuggestions(ctx, c.Param("username"), limit)
	if !res.Success {
		writeFailure(c, res.Message, res.Err, res.Degraded)
		return
	}
	users, hydrated := h.hydrate(ctx, res.Data)
	c.JSON(http.StatusOK, envelope{Success: true, Message: res.Message, Data: users, Degraded: res.Degraded || !hydrated})
}

// hydrate attache les users aux ids en gardant l'ordre et en retirant les users disparus.
// Si le directory est en panne, on renvoie des users réduits au username.
func (h *Handler) hydrate(ctx context.Context, ids []string) ([]userResponse, bool) {
	out := make([]userResponse, 0, len(ids))
	if len(ids) == 0 {
		return out, true
	}

	users, err := h.users.GetByUsernames(ctx, ids)
	if err != nil {
		slog.Error("❌ User hydration failed", "error", err, "count", len(ids))
		for _, id := range ids {
			out = append(out, userResponse{Username: id})
		}
		return out, false
	}

	byName := make(map[string]*domain.User, len(users))
	for _, u := range users {
		byName[u.Username] = u
	}
	for _, id := range ids {
		if u, ok := byName[id]; ok {
			out = append(out, toUserResponse(u))
		}
	}
	return out, true
}
