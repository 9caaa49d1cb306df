// internal/handlers/ad.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/limey-tt/limey-backend/internal/i18n"
	"github.com/limey-tt/limey-backend/internal/middleware"
	"github.com/limey-tt/limey-backend/internal/services"
	"github.com/limey-tt/limey-backend/internal/utils"
)

type AdHandler struct {
	adService *services.AdService
	storage   *services.StorageService
	admins    middleware.AdminChecker
}

func NewAdHandler(adService *services.AdService, storage *services.StorageService, admins middleware.AdminChecker) *AdHandler {
	return &AdHandler{
		adService: adService,
		storage:   storage,
		admins:    admins,
	}
}

// GET /ads/pricing
func (h *AdHandler) Pricing(c *gin.Context) {
	pricing := make([]gin.H, 0)
	for _, days := range []int{1, 3, 7, 14, 30} {
		cost, _ := services.BoostCost(days)
		pricing = append(pricing, gin.H{"days": days, "cost": cost})
	}
	utils.SuccessResponse(c, pricing)
}

// POST /ads
func (h *AdHandler) CreateAd(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req services.CreateAdRequest
	if !bindJSON(c, &req) {
		return
	}

	ad, err := h.adService.CreateAd(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyAdCreated),
		"ad":      ad,
	})
}

// POST /ads/media uploads an ad creative and returns its URL for CreateAd.
func (h *AdHandler) UploadMedia(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	file, _, err := c.Request.FormFile("file")
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationRequired, "file"), nil)
		return
	}
	defer file.Close()

	result, err := h.storage.Upload(c.Request.Context(), file, h.storage.GetDefaultUploadOptions(services.UploadAds))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.CreatedResponse(c, result)
}

// GET /ads/:id
func (h *AdHandler) GetAd(c *gin.Context) {
	adID, ok := pathID(c, "id")
	if !ok {
		return
	}

	ad, err := h.adService.GetAd(c.Request.Context(), adID)
	if err != nil {
		respondError(c, err)
		return
	}

	// Ads outside their live window are only visible to their advertiser and
	// admins.
	if !ad.IsActive(h.adService.Now()) {
		userID, _ := utils.GetUserUUIDFromContext(c)
		if ad.AdvertiserID != userID && !middleware.ResolveAdmin(c, h.admins) {
			utils.NotFoundResponse(c, "ad")
			return
		}
	}

	utils.SuccessResponse(c, ad)
}

// GET /ads
func (h *AdHandler) ListActive(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	ads, total, err := h.adService.ListActive(c.Request.Context(), params)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.PaginatedResponse(c, utils.CreatePaginationResult(ads, total, params))
}

// GET /ads/mine
func (h *AdHandler) ListMine(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	ads, total, err := h.adService.ListMine(c.Request.Context(), userID, params)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.PaginatedResponse(c, utils.CreatePaginationResult(ads, total, params))
}

// POST /ads/:id/impression
func (h *AdHandler) Impression(c *gin.Context) {
	adID, ok := pathID(c, "id")
	if !ok {
		return
	}
	h.adService.TrackImpression(c.Request.Context(), adID)
	c.Status(204)
}

// POST /ads/:id/click
func (h *AdHandler) Click(c *gin.Context) {
	adID, ok := pathID(c, "id")
	if !ok {
		return
	}
	h.adService.TrackClick(c.Request.Context(), adID)
	c.Status(204)
}
