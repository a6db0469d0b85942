package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"social-trading-backend/internal/apperrors"
	"social-trading-backend/internal/services"
)

type SocialHandler struct {
	socialService *services.SocialService
}

func NewSocialHandler(socialService *services.SocialService) *SocialHandler {
	return &SocialHandler{socialService: socialService}
}

// Follow creates a follow edge from the caller to the target user
func (h *SocialHandler) Follow(c *gin.Context) {
	did, ok := requirePrivyDID(c)
	if !ok {
		return
	}

	var req struct {
		FollowingDID string `json:"following_did" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.socialService.Follow(did, req.FollowingDID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true})
}

// Unfollow removes a follow edge
func (h *SocialHandler) Unfollow(c *gin.Context) {
	did, ok := requirePrivyDID(c)
	if !ok {
		return
	}

	var req struct {
		FollowingDID string `json:"following_did" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.socialService.Unfollow(did, req.FollowingDID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// IsFollowing answers a follow state check from the local store
func (h *SocialHandler) IsFollowing(c *gin.Context) {
	followerDID := c.Query("followerDid")
	followingDID := c.Query("followingDid")
	if followerDID == "" || followingDID == "" {
		respondError(c, apperrors.ErrInvalidArgument)
		return
	}

	following, err := h.socialService.IsFollowing(followerDID, followingDID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"is_following": following,
	})
}

// GetFollowers returns users following the given DID
func (h *SocialHandler) GetFollowers(c *gin.Context) {
	result, err := h.socialService.GetFollowers(c.Param("did"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"data":        result.Users,
		"external":    result.ExternalProfiles,
		"data_source": result.DataSources,
	})
}

// GetFollowing returns users the given DID follows
func (h *SocialHandler) GetFollowing(c *gin.Context) {
	result, err := h.socialService.GetFollowing(c.Param("did"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"data":        result.Users,
		"external":    result.ExternalProfiles,
		"data_source": result.DataSources,
	})
}

// CreateComment posts a comment on a profile
func (h *SocialHandler) CreateComment(c *gin.Context) {
	did, ok := requirePrivyDID(c)
	if !ok {
		return
	}

	var req struct {
		ProfileDID string `json:"profile_did" binding:"required"`
		Text       string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	comment, err := h.socialService.CreateComment(did, req.ProfileDID, req.Text)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    comment,
	})
}

// GetProfileComments lists comments on a profile
func (h *SocialHandler) GetProfileComments(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	comments, err := h.socialService.GetProfileComments(c.Param("did"), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    comments,
		"count":   len(comments),
	})
}

// LikeComment records a like on a comment
func (h *SocialHandler) LikeComment(c *gin.Context) {
	did, ok := requirePrivyDID(c)
	if !ok {
		return
	}

	commentID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid comment id"})
		return
	}

	if err := h.socialService.LikeComment(did, uint(commentID)); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true})
}

// UnlikeComment removes a like from a comment
func (h *SocialHandler) UnlikeComment(c *gin.Context) {
	did, ok := requirePrivyDID(c)
	if !ok {
		return
	}

	commentID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid comment id"})
		return
	}

	if err := h.socialService.UnlikeComment(did, uint(commentID)); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
