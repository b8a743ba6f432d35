package handlers

import (
	"context"
	"errors"
	"net/http"

	"emoji-to-do/internal/config"
	"emoji-to-do/internal/log"
	"emoji-to-do/internal/models"
	"emoji-to-do/internal/services"

	"github.com/gin-gonic/gin"
)

// ReactionPatternStore is the persistence interface behind the admin API.
type ReactionPatternStore interface {
	CreateReactionPattern(ctx context.Context, pattern *models.ReactionPattern) error
	ListReactionPatterns(ctx context.Context, teamID string) ([]models.ReactionPattern, error)
	DeleteReactionPattern(ctx context.Context, teamID, name string) error
}

// AdminHandler exposes reaction pattern CRUD, guarded by a shared API key.
type AdminHandler struct {
	store  ReactionPatternStore
	apiKey string
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(store ReactionPatternStore, cfg *config.Config) *AdminHandler {
	return &AdminHandler{
		store:  store,
		apiKey: cfg.APIAdminKey,
	}
}

func (ah *AdminHandler) authorized(c *gin.Context) bool {
	apiKey := c.GetHeader("X-API-Key")
	if ah.apiKey == "" || apiKey != ah.apiKey {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
		return false
	}
	return true
}

// HandleCreateReaction registers a reaction pattern for a team.
func (ah *AdminHandler) HandleCreateReaction(c *gin.Context) {
	if !ah.authorized(c) {
		return
	}

	var req struct {
		TeamID    string   `json:"team_id"`
		Name      string   `json:"name"`
		Repo      string   `json:"repo"`
		Assignees []string `json:"assignees"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}
	if req.TeamID == "" || req.Name == "" || req.Repo == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "team_id, name and repo are required"})
		return
	}

	pattern := &models.ReactionPattern{
		TeamID:    req.TeamID,
		Name:      req.Name,
		Repo:      req.Repo,
		Assignees: req.Assignees,
	}

	ctx := c.Request.Context()
	if err := ah.store.CreateReactionPattern(ctx, pattern); err != nil {
		log.Error(ctx, "Failed to create reaction pattern", "error", err, "team_id", req.TeamID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create reaction pattern"})
		return
	}

	c.JSON(http.StatusCreated, pattern)
}

// HandleListReactions lists the reaction patterns configured for a team.
func (ah *AdminHandler) HandleListReactions(c *gin.Context) {
	if !ah.authorized(c) {
		return
	}

	teamID := c.Query("team_id")
	if teamID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "team_id is required"})
		return
	}

	ctx := c.Request.Context()
	patterns, err := ah.store.ListReactionPatterns(ctx, teamID)
	if err != nil {
		log.Error(ctx, "Failed to list reaction patterns", "error", err, "team_id", teamID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list reaction patterns"})
		return
	}
	if patterns == nil {
		patterns = []models.ReactionPattern{}
	}

	c.JSON(http.StatusOK, gin.H{"reactions": patterns})
}

// HandleDeleteReaction removes the reaction pattern for a (team, reaction).
func (ah *AdminHandler) HandleDeleteReaction(c *gin.Context) {
	if !ah.authorized(c) {
		return
	}

	teamID := c.Query("team_id")
	name := c.Query("name")
	if teamID == "" || name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "team_id and name are required"})
		return
	}

	ctx := c.Request.Context()
	if err := ah.store.DeleteReactionPattern(ctx, teamID, name); err != nil {
		if errors.Is(err, services.ErrReactionPatternNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "reaction pattern not found"})
			return
		}
		log.Error(ctx, "Failed to delete reaction pattern", "error", err, "team_id", teamID, "name", name)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete reaction pattern"})
		return
	}

	c.Status(http.StatusNoContent)
}
