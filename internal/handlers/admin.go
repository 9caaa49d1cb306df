// internal/handlers/admin.go
package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/limey-tt/limey-backend/internal/i18n"
	"github.com/limey-tt/limey-backend/internal/models"
	"github.com/limey-tt/limey-backend/internal/services"
	"github.com/limey-tt/limey-backend/internal/utils"
)

type AdminHandler struct {
	adminService *services.AdminService
	adService    *services.AdService
}

func NewAdminHandler(adminService *services.AdminService, adService *services.AdService) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
		adService:    adService,
	}
}

// GET /admin/dashboard/stats
func (h *AdminHandler) GetDashboardStats(c *gin.Context) {
	stats, err := h.adminService.GetDashboardStats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"stats": stats,
	})
}

// GET /admin/ads/pending
func (h *AdminHandler) GetPendingAds(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	ads, total, err := h.adService.ListPending(c.Request.Context(), params)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(ads, total, params))
}

// POST /admin/ads/:id/approve
func (h *AdminHandler) ApproveAd(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	adminID, ok := currentUser(c)
	if !ok {
		return
	}
	adID, ok := pathID(c, "id")
	if !ok {
		return
	}

	ad, err := h.adService.ApproveAd(c.Request.Context(), adID, adminID)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyAdApproved),
		"ad":      ad,
	})
}

// POST /admin/ads/:id/reject
func (h *AdminHandler) RejectAd(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	adminID, ok := currentUser(c)
	if !ok {
		return
	}
	adID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req services.RejectAdRequest
	if !bindJSON(c, &req) {
		return
	}

	ad, err := h.adService.RejectAd(c.Request.Context(), adID, adminID, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyAdRejected),
		"ad":      ad,
	})
}

// GET /admin/transactions
func (h *AdminHandler) GetTransactions(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	filter := services.AdminTransactionFilter{
		PaginationParams: params,
	}

	if userIDStr := c.Query("user_id"); userIDStr != "" {
		if userID, err := uuid.Parse(userIDStr); err == nil {
			filter.UserID = &userID
		}
	}

	if txType := c.Query("type"); txType != "" {
		tType := models.TransactionType(txType)
		filter.Type = &tType
	}

	if status := c.Query("status"); status != "" {
		tStatus := models.TransactionStatus(status)
		filter.Status = &tStatus
	}

	if createdAfter := c.Query("created_after"); createdAfter != "" {
		if t, err := time.Parse("2006-01-02", createdAfter); err == nil {
			filter.CreatedAfter = &t
		}
	}

	if createdBefore := c.Query("created_before"); createdBefore != "" {
		if t, err := time.Parse("2006-01-02", createdBefore); err == nil {
			filter.CreatedBefore = &t
		}
	}

	transactions, total, err := h.adminService.GetTransactions(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(transactions, total, params))
}

// GET /admin/audit-logs
func (h *AdminHandler) GetAuditLogs(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	filter := services.AdminAuditFilter{
		PaginationParams: params,
		ResourceType:     c.Query("resource_type"),
	}
	if userIDStr := c.Query("user_id"); userIDStr != "" {
		if userID, err := uuid.Parse(userIDStr); err == nil {
			filter.UserID = &userID
		}
	}

	logs, total, err := h.adminService.GetAuditLogs(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(logs, total, params))
}
