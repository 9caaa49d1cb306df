// internal/handlers/wallet.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/limey-tt/limey-backend/internal/i18n"
	"github.com/limey-tt/limey-backend/internal/services"
	"github.com/limey-tt/limey-backend/internal/utils"
)

type WalletHandler struct {
	walletService *services.WalletService
	ledger        *services.LedgerService
}

func NewWalletHandler(walletService *services.WalletService, ledger *services.LedgerService) *WalletHandler {
	return &WalletHandler{
		walletService: walletService,
		ledger:        ledger,
	}
}

// POST /wallet/link
func (h *WalletHandler) Link(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req services.LinkAccountRequest
	if !bindJSON(c, &req) {
		return
	}

	link, err := h.walletService.LinkAccount(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyWalletLinked),
		"link":    link,
	})
}

// GET /wallet/status
func (h *WalletHandler) Status(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	status, err := h.walletService.Status(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, status)
}

// GET /wallet/limits
func (h *WalletHandler) Limits(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	limits, err := h.walletService.Limits(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, limits)
}

// POST /wallet/deposit moves money from TTPayPal into TriniCredits.
func (h *WalletHandler) Deposit(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req services.WalletAmountRequest
	if !bindJSON(c, &req) {
		return
	}

	entry, err := h.walletService.DepositToApp(c.Request.Context(), userID, req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}

	h.respondTransfer(c, i18n.T(lang, i18n.KeyWalletDepositSuccess), entry)
}

// POST /wallet/withdraw moves TriniCredits out to TTPayPal.
func (h *WalletHandler) Withdraw(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req services.WalletAmountRequest
	if !bindJSON(c, &req) {
		return
	}

	entry, err := h.walletService.WithdrawToWallet(c.Request.Context(), userID, req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}

	h.respondTransfer(c, i18n.T(lang, i18n.KeyWalletWithdrawSuccess), entry)
}

func (h *WalletHandler) respondTransfer(c *gin.Context, message string, entry interface{}) {
	userID, _ := utils.GetUserUUIDFromContext(c)

	response := gin.H{
		"message":     message,
		"transaction": entry,
	}
	if balance, err := h.ledger.GetBalance(c.Request.Context(), userID); err == nil {
		response["balance"] = balance
	}
	utils.SuccessResponse(c, response)
}

// DELETE /wallet/link
func (h *WalletHandler) Unlink(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	if err := h.walletService.Unlink(c.Request.Context(), userID); err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, gin.H{"message": i18n.T(lang, i18n.KeyWalletUnlinked)})
}

// GET /credits/balance
func (h *WalletHandler) Balance(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	summary, err := h.ledger.Summary(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, summary)
}

// GET /credits/transactions
func (h *WalletHandler) History(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	rows, total, err := h.ledger.History(c.Request.Context(), userID, params)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.PaginatedResponse(c, utils.CreatePaginationResult(rows, total, params))
}
