// internal/handlers/profile.go
package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/limey-tt/limey-backend/internal/i18n"
	"github.com/limey-tt/limey-backend/internal/models"
	"github.com/limey-tt/limey-backend/internal/services"
	"github.com/limey-tt/limey-backend/internal/utils"
)

type ProfileHandler struct {
	profileService *services.ProfileService
}

func NewProfileHandler(profileService *services.ProfileService) *ProfileHandler {
	return &ProfileHandler{
		profileService: profileService,
	}
}

func (h *ProfileHandler) respondView(c *gin.Context, profile *models.Profile) {
	viewerID, _ := utils.GetUserUUIDFromContext(c)

	view, err := h.profileService.View(c.Request.Context(), profile, viewerID)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, view)
}

// GET /me
func (h *ProfileHandler) GetMe(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	profile, err := h.profileService.GetProfile(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	h.respondView(c, profile)
}

// GET /profiles/:id
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	userID, ok := pathID(c, "id")
	if !ok {
		return
	}

	profile, err := h.profileService.GetProfile(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	h.respondView(c, profile)
}

// GET /profiles/by-username/:username
func (h *ProfileHandler) GetByUsername(c *gin.Context) {
	profile, err := h.profileService.GetByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		respondError(c, err)
		return
	}
	h.respondView(c, profile)
}

// PUT /me
func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req services.UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}

	profile, err := h.profileService.UpdateProfile(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyProfileUpdated),
		"profile": profile,
	})
}

// POST /me/avatar
func (h *ProfileHandler) UploadAvatar(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	file, _, err := c.Request.FormFile("avatar")
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationRequired, "avatar"), nil)
		return
	}
	defer file.Close()

	profile, err := h.profileService.UpdateAvatar(c.Request.Context(), userID, file)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyProfileUpdated),
		"profile": profile,
	})
}

// POST /profiles/:id/follow
func (h *ProfileHandler) Follow(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	targetID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.profileService.Follow(c.Request.Context(), userID, targetID); err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"message": i18n.T(lang, i18n.KeyFollowSuccess), "following": true})
}

// DELETE /profiles/:id/follow
func (h *ProfileHandler) Unfollow(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	targetID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.profileService.Unfollow(c.Request.Context(), userID, targetID); err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"message": i18n.T(lang, i18n.KeyUnfollowSuccess), "following": false})
}

// GET /profiles/:id/followers
func (h *ProfileHandler) Followers(c *gin.Context) {
	h.listFollows(c, h.profileService.Followers)
}

// GET /profiles/:id/following
func (h *ProfileHandler) Following(c *gin.Context) {
	h.listFollows(c, h.profileService.Following)
}

type followLister func(ctx context.Context, userID uuid.UUID, params utils.PaginationParams) ([]models.Profile, int64, error)

func (h *ProfileHandler) listFollows(c *gin.Context, list followLister) {
	userID, ok := pathID(c, "id")
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	profiles, total, err := list(c.Request.Context(), userID, params)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(profiles, total, params))
}

// GET /me/settings
func (h *ProfileHandler) GetSettings(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	settings, err := h.profileService.GetSettings(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, settings)
}

// PUT /me/settings
func (h *ProfileHandler) UpdateSettings(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req services.UpdateSettingsRequest
	if !bindJSON(c, &req) {
		return
	}

	settings, err := h.profileService.UpdateSettings(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message":  i18n.T(lang, i18n.KeySettingsUpdated),
		"settings": settings,
	})
}
