package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"social-trading-backend/internal/services"
)

type OGHandler struct {
	ogService *services.OGService
}

func NewOGHandler(ogService *services.OGService) *OGHandler {
	return &OGHandler{ogService: ogService}
}

// UpdateTradingVolume records trade volume for the caller and evaluates OG
func (h *OGHandler) UpdateTradingVolume(c *gin.Context) {
	did, ok := requirePrivyDID(c)
	if !ok {
		return
	}

	var req struct {
		TradeVolumeUSD string `json:"trade_volume_usd" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	volume, err := decimal.NewFromString(req.TradeVolumeUSD)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid trade_volume_usd"})
		return
	}

	result, err := h.ogService.UpdateTradingVolumeAndCheckOG(did, volume)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}

// GetOGProgress returns the caller's progress toward OG status
func (h *OGHandler) GetOGProgress(c *gin.Context) {
	did, ok := requirePrivyDID(c)
	if !ok {
		return
	}

	progress, err := h.ogService.GetOGProgress(did)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    progress,
	})
}

// GrantManualOG grants OG status by admin decision
func (h *OGHandler) GrantManualOG(c *gin.Context) {
	var req struct {
		PrivyDID string `json:"privy_did" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.ogService.GrantManualOG(req.PrivyDID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
