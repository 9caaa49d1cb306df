// internal/gateway/ttpaypal/errors.go
package ttpaypal

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error is a WordPress REST error: {"code": ..., "message": ..., "data": {"status": ...}}.
type Error struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("ttpaypal: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

type wpError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Status int `json:"status"`
	} `json:"data"`
}

func parseError(status int, body []byte) *Error {
	var wp wpError
	if err := json.Unmarshal(body, &wp); err != nil || wp.Message == "" {
		return &Error{
			StatusCode: status,
			Code:       "http_error",
			Message:    http.StatusText(status),
		}
	}

	if wp.Data.Status != 0 {
		status = wp.Data.Status
	}
	return &Error{StatusCode: status, Code: wp.Code, Message: wp.Message}
}

func statusOf(err error) int {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.StatusCode
	}
	return 0
}

func IsNotFound(err error) bool {
	return statusOf(err) == http.StatusNotFound
}

// IsUnauthorized reports a rejected or expired gateway JWT.
func IsUnauthorized(err error) bool {
	status := statusOf(err)
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}
