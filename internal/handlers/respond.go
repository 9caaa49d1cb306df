// internal/handlers/respond.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/limey-tt/limey-backend/internal/gateway/ttpaypal"
	"github.com/limey-tt/limey-backend/internal/i18n"
	"github.com/limey-tt/limey-backend/internal/services"
	"github.com/limey-tt/limey-backend/internal/utils"
)

// notFound maps sentinel errors to the resource name used in "<resource>.not_found".
var notFound = map[error]string{
	services.ErrProfileNotFound: "profile",
	services.ErrVideoNotFound:   "video",
	services.ErrMessageNotFound: "message",
	services.ErrChatNotFound:    "chat",
	services.ErrAdNotFound:      "ad",
}

// respondError writes the response for an error returned by a service.
func respondError(c *gin.Context, err error) {
	lang := utils.GetLangFromContext(c)

	for sentinel, resource := range notFound {
		if errors.Is(err, sentinel) {
			utils.NotFoundResponse(c, resource)
			return
		}
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		utils.ValidationErrorResponse(c, utils.GetValidationErrors(validationErrs))
		return
	}

	var limitErr *services.LimitError
	if errors.As(err, &limitErr) {
		utils.UnprocessableResponse(c, "LIMIT_EXCEEDED", i18n.T(lang, i18n.KeyWalletLimitExceeded, limitErr.Limit))
		return
	}

	switch {
	case errors.Is(err, services.ErrInvalidAmount):
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyWalletInvalidAmount), nil)
	case errors.Is(err, services.ErrInsufficientBalance):
		utils.UnprocessableResponse(c, "INSUFFICIENT_BALANCE", i18n.T(lang, i18n.KeyWalletInsufficient))
	case errors.Is(err, services.ErrDuplicateTransaction):
		utils.ConflictResponse(c, i18n.T(lang, i18n.KeyWalletDuplicateRequest))
	case errors.Is(err, services.ErrInvalidCredentials):
		utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthInvalidCredentials))
	case errors.Is(err, services.ErrSignupFailed):
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyAuthUserExists), nil)
	case errors.Is(err, services.ErrAuthUnavailable):
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "AUTH_UNAVAILABLE", i18n.T(lang, i18n.KeyError), nil)
	case errors.Is(err, services.ErrUsernameTaken):
		utils.ConflictResponse(c, i18n.T(lang, i18n.KeyProfileUsernameUsed))
	case errors.Is(err, services.ErrCannotFollowSelf):
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyFollowSelf), nil)
	case errors.Is(err, services.ErrNotVideoOwner):
		utils.ForbiddenResponse(c, i18n.T(lang, i18n.KeyVideoNotOwner))
	case errors.Is(err, services.ErrMessageToSelf):
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyMessageToSelf), nil)
	case errors.Is(err, services.ErrWalletNotLinked):
		utils.UnprocessableResponse(c, "WALLET_NOT_LINKED", i18n.T(lang, i18n.KeyWalletNotLinked))
	case errors.Is(err, services.ErrWalletSessionExpired):
		utils.ErrorResponse(c, http.StatusUnauthorized, "WALLET_SESSION_EXPIRED", i18n.T(lang, i18n.KeyWalletSessionExpired), nil)
	case errors.Is(err, services.ErrCredentialsRequired):
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationRequired, "username"), nil)
	case errors.Is(err, services.ErrAdAlreadyReviewed):
		utils.ConflictResponse(c, i18n.T(lang, i18n.KeyAdAlreadyReviewed))
	case errors.Is(err, services.ErrInvalidBoostDays):
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyAdInvalidDuration), nil)
	case errors.Is(err, services.ErrRejectionReason):
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyAdRejectionReason), nil)
	case errors.Is(err, services.ErrPaymentNotSucceeded):
		utils.UnprocessableResponse(c, "PAYMENT_PENDING", i18n.T(lang, i18n.KeyCreditsPending))
	case errors.Is(err, services.ErrPaymentMismatch):
		utils.ForbiddenResponse(c, i18n.T(lang, i18n.KeyCreditsPaymentFailed))
	case errors.Is(err, services.ErrInvalidFileType):
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyFileInvalidType), nil)
	case errors.Is(err, services.ErrFileTooLarge):
		utils.ErrorResponse(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", i18n.T(lang, i18n.KeyFileTooLarge), nil)
	default:
		var gwErr *ttpaypal.Error
		if errors.As(err, &gwErr) {
			utils.BadGatewayResponse(c, i18n.T(lang, i18n.KeyWalletGatewayError, gwErr.Message))
			return
		}

		logrus.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
		utils.InternalErrorResponse(c, i18n.T(lang, i18n.KeyError))
	}
}

// currentUser returns the authenticated caller or writes a 401.
func currentUser(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := utils.GetUserUUIDFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return uuid.Nil, false
	}
	return userID, true
}

// pathID parses a uuid path parameter or writes a 400.
func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		lang := utils.GetLangFromContext(c)
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, name), nil)
		return uuid.Nil, false
	}
	return id, true
}

// bindJSON decodes and validates a request body, writing a 400 on failure.
func bindJSON(c *gin.Context, req interface{}) bool {
	lang := utils.GetLangFromContext(c)

	if err := c.ShouldBindJSON(req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return false
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return false
	}
	return true
}
