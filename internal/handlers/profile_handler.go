package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"social-trading-backend/internal/services"
)

type ProfileHandler struct {
	profileService *services.ProfileService
}

func NewProfileHandler(profileService *services.ProfileService) *ProfileHandler {
	return &ProfileHandler{profileService: profileService}
}

// CreateProfile finds or creates the authenticated user's profile
func (h *ProfileHandler) CreateProfile(c *gin.Context) {
	did, ok := requirePrivyDID(c)
	if !ok {
		return
	}

	var req services.ProfileInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, created, err := h.profileService.FindOrCreateProfile(did, req)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{
		"success": true,
		"data":    user,
		"created": created,
	})
}

// UpdateProfile applies partial updates to the authenticated user's profile
func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	did, ok := requirePrivyDID(c)
	if !ok {
		return
	}

	var req services.ProfileInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.profileService.UpdateProfile(did, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    user,
	})
}

// GetProfile returns a profile by DID, optionally merged with the external view
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	did := c.Param("did")
	includeExternal := c.Query("includeExternal") == "true"

	result, err := h.profileService.GetProfile(did, includeExternal)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"data":        result.User,
		"external":    result.ExternalProfile,
		"data_source": result.DataSources,
	})
}

// GetSuggestedProfiles returns externally suggested profiles for the caller
func (h *ProfileHandler) GetSuggestedProfiles(c *gin.Context) {
	did, ok := requirePrivyDID(c)
	if !ok {
		return
	}

	profiles, sources, err := h.profileService.GetSuggestedProfiles(did)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"data":        profiles,
		"data_source": sources,
	})
}

// GetProfileByWallet resolves an external identity by wallet address
func (h *ProfileHandler) GetProfileByWallet(c *gin.Context) {
	address := c.Param("address")

	profile, err := h.profileService.GetProfileByWallet(address)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    profile,
	})
}
