// internal/handlers/credits.go
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/limey-tt/limey-backend/internal/i18n"
	"github.com/limey-tt/limey-backend/internal/services"
	"github.com/limey-tt/limey-backend/internal/utils"
)

type CreditsHandler struct {
	service *services.CreditService
}

func NewCreditsHandler(service *services.CreditService) *CreditsHandler {
	return &CreditsHandler{service: service}
}

// POST /credits/purchase
func (h *CreditsHandler) CreateIntent(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req services.PurchaseIntentRequest
	if !bindJSON(c, &req) {
		return
	}

	intent, err := h.service.CreatePurchaseIntent(c.Request.Context(), userID, &req)
	if err != nil {
		if errors.Is(err, services.ErrBelowMinimum) {
			utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyCreditsBelowMinimum, h.service.Minimum().StringFixed(2)), nil)
			return
		}
		respondError(c, err)
		return
	}

	utils.CreatedResponse(c, intent)
}

// POST /credits/confirm
func (h *CreditsHandler) Confirm(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req services.ConfirmPurchaseRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.service.ConfirmPurchase(c.Request.Context(), userID, req.PaymentIntentID)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message":          i18n.T(lang, i18n.KeyCreditsPurchased),
		"transaction":      result.Transaction,
		"balance":          result.Balance,
		"already_credited": result.AlreadyCredited,
	})
}
