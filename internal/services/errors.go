// internal/services/errors.go
package services

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAmount          = errors.New("amount must be greater than zero")
	ErrInvalidTransactionType = errors.New("invalid transaction type")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrDuplicateTransaction   = errors.New("transaction already recorded")
	ErrTransactionNotFound    = errors.New("transaction not found")

	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrSignupFailed       = errors.New("sign up failed")
	ErrAuthUnavailable    = errors.New("auth provider is not configured")

	ErrProfileNotFound  = errors.New("profile not found")
	ErrUsernameTaken    = errors.New("username already taken")
	ErrCannotFollowSelf = errors.New("cannot follow yourself")

	ErrVideoNotFound = errors.New("video not found")
	ErrNotVideoOwner = errors.New("only the owner can modify this video")

	ErrMessageNotFound = errors.New("message not found")
	ErrChatNotFound    = errors.New("chat not found")
	ErrMessageToSelf   = errors.New("cannot message yourself")

	ErrWalletNotLinked      = errors.New("ttpaypal account is not linked")
	ErrWalletSessionExpired = errors.New("ttpaypal session expired")
	ErrCredentialsRequired  = errors.New("ttpaypal username and password are required")

	ErrAdNotFound        = errors.New("ad not found")
	ErrAdAlreadyReviewed = errors.New("ad has already been reviewed")
	ErrInvalidBoostDays  = errors.New("unsupported boost duration")
	ErrRejectionReason   = errors.New("rejection reason is required")

	ErrPaymentNotSucceeded = errors.New("payment has not succeeded")
	ErrPaymentMismatch     = errors.New("payment does not belong to this user")
	ErrBelowMinimum        = errors.New("amount is below the minimum purchase")

	ErrInvalidFileType = errors.New("unsupported file type")
)

// LimitError reports a gateway limit the request would exceed.
type LimitError struct {
	Limit string
	Max   string
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("amount exceeds %s limit of %s", e.Limit, e.Max)
}
