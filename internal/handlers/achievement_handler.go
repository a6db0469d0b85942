package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"social-trading-backend/internal/services"
)

type AchievementHandler struct {
	achievementService *services.AchievementService
}

func NewAchievementHandler(achievementService *services.AchievementService) *AchievementHandler {
	return &AchievementHandler{achievementService: achievementService}
}

// GetCatalog returns all achievement definitions
func (h *AchievementHandler) GetCatalog(c *gin.Context) {
	definitions, err := h.achievementService.GetCatalog()
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    definitions,
	})
}

// GetUserAchievements returns the caller's unlocked achievements
func (h *AchievementHandler) GetUserAchievements(c *gin.Context) {
	did, ok := requirePrivyDID(c)
	if !ok {
		return
	}

	records, err := h.achievementService.GetUserAchievements(did)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    records,
		"count":   len(records),
	})
}

// InitializeAchievements seeds the achievement catalog (admin only, idempotent)
func (h *AchievementHandler) InitializeAchievements(c *gin.Context) {
	if err := h.achievementService.InitializeAchievements(); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Achievement catalog initialized",
	})
}
