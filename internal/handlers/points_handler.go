package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"social-trading-backend/internal/models"
	"social-trading-backend/internal/services"
)

type PointsHandler struct {
	pointsService      *services.PointsService
	leaderboardService *services.LeaderboardService
}

func NewPointsHandler(pointsService *services.PointsService, leaderboardService *services.LeaderboardService) *PointsHandler {
	return &PointsHandler{
		pointsService:      pointsService,
		leaderboardService: leaderboardService,
	}
}

// AwardPoints records a point award for the authenticated user
func (h *PointsHandler) AwardPoints(c *gin.Context) {
	did, ok := requirePrivyDID(c)
	if !ok {
		return
	}

	var req struct {
		ActionType string       `json:"action_type" binding:"required"`
		Metadata   models.JSONB `json:"metadata"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.pointsService.Award(did, req.ActionType, req.Metadata)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}

// GetHistory returns the caller's paginated point-transaction history
func (h *PointsHandler) GetHistory(c *gin.Context) {
	did, ok := requirePrivyDID(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	transactions, total, err := h.pointsService.GetHistory(did, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    transactions,
		"total":   total,
	})
}

// GetSummary returns the caller's points summary
func (h *PointsHandler) GetSummary(c *gin.Context) {
	did, ok := requirePrivyDID(c)
	if !ok {
		return
	}

	summary, err := h.pointsService.GetSummary(did)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    summary,
	})
}

// GetLeaderboard returns the ranked page plus the caller's own rank when
// they fall outside it
func (h *PointsHandler) GetLeaderboard(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	period := c.DefaultQuery("period", services.PeriodAll)
	userID := c.Query("userId")

	result, err := h.leaderboardService.GetLeaderboard(limit, period, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}
