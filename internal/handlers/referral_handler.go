package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"social-trading-backend/internal/services"
)

type ReferralHandler struct {
	referralService *services.ReferralService
}

func NewReferralHandler(referralService *services.ReferralService) *ReferralHandler {
	return &ReferralHandler{referralService: referralService}
}

// CheckReferralCode validates a referral code without side effects
func (h *ReferralHandler) CheckReferralCode(c *gin.Context) {
	result, err := h.referralService.CheckReferralCode(c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}

// ProcessReferral applies a referral code for the authenticated new user
func (h *ReferralHandler) ProcessReferral(c *gin.Context) {
	did, ok := requirePrivyDID(c)
	if !ok {
		return
	}

	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	applied, err := h.referralService.ProcessReferral(req.Code, did)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": applied,
	})
}

// GetReferrals returns users referred by the caller
func (h *ReferralHandler) GetReferrals(c *gin.Context) {
	did, ok := requirePrivyDID(c)
	if !ok {
		return
	}

	referrals, err := h.referralService.GetUserReferrals(did)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    referrals,
		"count":   len(referrals),
	})
}
