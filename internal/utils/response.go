// internal/utils/response.go
package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/limey-tt/limey-backend/internal/i18n"
)

// Error codes returned in APIError.Code. Clients switch on these, so they are
// stable across languages.
const (
	CodeBadRequest   = "BAD_REQUEST"
	CodeValidation   = "VALIDATION_ERROR"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeGateway      = "GATEWAY_ERROR"
	CodeInternal     = "INTERNAL_ERROR"
)

// APIResponse is the envelope every JSON endpoint answers with.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
}

type APIError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func respond(c *gin.Context, status int, body APIResponse) {
	c.JSON(status, body)
}

func SuccessResponse(c *gin.Context, data interface{}) {
	respond(c, http.StatusOK, APIResponse{Success: true, Data: data})
}

func CreatedResponse(c *gin.Context, data interface{}) {
	respond(c, http.StatusCreated, APIResponse{Success: true, Data: data})
}

func ErrorResponse(c *gin.Context, statusCode int, code, message string, details interface{}) {
	respond(c, statusCode, APIResponse{
		Error: &APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// localized returns message, or the translation of key when message is empty.
func localized(c *gin.Context, message, key string, args ...interface{}) string {
	if message != "" {
		return message
	}
	return i18n.T(GetLangFromContext(c), key, args...)
}

func BadRequestResponse(c *gin.Context, message string, details interface{}) {
	ErrorResponse(c, http.StatusBadRequest, CodeBadRequest, localized(c, message, i18n.KeyValidationInvalid, "request"), details)
}

func UnauthorizedResponse(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusUnauthorized, CodeUnauthorized, localized(c, message, i18n.KeyAuthRequired), nil)
}

func ForbiddenResponse(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusForbidden, CodeForbidden, localized(c, message, i18n.KeyAdminAccessDenied), nil)
}

// NotFoundResponse translates "<resource>.not_found".
func NotFoundResponse(c *gin.Context, resource string) {
	ErrorResponse(c, http.StatusNotFound, CodeNotFound, localized(c, "", resource+".not_found"), nil)
}

func ConflictResponse(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusConflict, CodeConflict, message, nil)
}

// UnprocessableResponse is for well-formed requests the ledger refuses, such
// as insufficient balance or a wallet limit. code says which.
func UnprocessableResponse(c *gin.Context, code, message string) {
	ErrorResponse(c, http.StatusUnprocessableEntity, code, message, nil)
}

func BadGatewayResponse(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusBadGateway, CodeGateway, localized(c, message, i18n.KeyWalletGatewayError), nil)
}

func InternalErrorResponse(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusInternalServerError, CodeInternal, localized(c, message, i18n.KeyError), nil)
}

func ValidationErrorResponse(c *gin.Context, errors []ValidationError) {
	ErrorResponse(c, http.StatusBadRequest, CodeValidation, localized(c, "", i18n.KeyValidationInvalid, "input"), errors)
}

// PaginatedResponse sends result.Data with the page info both in meta and in
// the X-* headers.
func PaginatedResponse(c *gin.Context, result PaginationResult) {
	SetPaginationHeaders(c, result)
	respond(c, http.StatusOK, APIResponse{
		Success: true,
		Data:    result.Data,
		Meta: gin.H{
			"pagination": gin.H{
				"page":        result.Page,
				"limit":       result.Limit,
				"total":       result.Total,
				"total_pages": result.TotalPages,
				"has_more":    result.HasMore,
			},
		},
	})
}

func GetLangFromContext(c *gin.Context) string {
	if lang := c.GetString("lang"); lang != "" {
		return lang
	}
	return "en"
}

func GetUserIDFromContext(c *gin.Context) (string, bool) {
	userID := c.GetString("user_id")
	return userID, userID != ""
}

// GetUserUUIDFromContext returns the authenticated user's id as set by the
// auth middleware.
func GetUserUUIDFromContext(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := GetUserIDFromContext(c)
	if !ok {
		return uuid.Nil, false
	}
	parsed, err := uuid.Parse(userID)
	if err != nil {
		return uuid.Nil, false
	}
	return parsed, true
}
