// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Common
	KeySuccess = "success"
	KeyError   = "error"

	// Authentication
	KeyAuthRequired           = "auth.required"
	KeyAuthInvalidToken       = "auth.invalid_token"
	KeyAuthTokenExpired       = "auth.token_expired"
	KeyAuthInvalidCredentials = "auth.invalid_credentials"
	KeyAuthUserExists         = "auth.user_exists"
	KeyAuthLoginSuccess       = "auth.login_success"
	KeyAuthRegisterSuccess    = "auth.register_success"

	// Profiles
	KeyProfileUpdated      = "profile.updated"
	KeyProfileNotFound     = "profile.not_found"
	KeyProfileUsernameUsed = "profile.username_taken"
	KeyFollowSelf          = "follow.self"
	KeyFollowSuccess       = "follow.success"
	KeyUnfollowSuccess     = "follow.removed"
	KeySettingsUpdated     = "settings.updated"

	// Videos
	KeyVideoUploaded = "video.uploaded"
	KeyVideoDeleted  = "video.deleted"
	KeyVideoNotFound = "video.not_found"
	KeyVideoNotOwner = "video.not_owner"

	// Messaging
	KeyMessageSent     = "message.sent"
	KeyMessageDeleted  = "message.deleted"
	KeyMessageNotFound = "message.not_found"
	KeyMessageToSelf   = "message.to_self"
	KeyChatNotFound    = "chat.not_found"

	// Wallet
	KeyWalletLinked           = "wallet.linked"
	KeyWalletUnlinked         = "wallet.unlinked"
	KeyWalletNotLinked        = "wallet.not_linked"
	KeyWalletSessionExpired   = "wallet.session_expired"
	KeyWalletInsufficient     = "wallet.insufficient_balance"
	KeyWalletInvalidAmount    = "wallet.invalid_amount"
	KeyWalletLimitExceeded    = "wallet.limit_exceeded"
	KeyWalletGatewayError     = "wallet.gateway_error"
	KeyWalletDepositSuccess   = "wallet.deposit_success"
	KeyWalletWithdrawSuccess  = "wallet.withdraw_success"
	KeyWalletDuplicateRequest = "wallet.duplicate_request"

	// Ads
	KeyAdCreated         = "ad.created"
	KeyAdNotFound        = "ad.not_found"
	KeyAdApproved        = "ad.approved"
	KeyAdRejected        = "ad.rejected"
	KeyAdAlreadyReviewed = "ad.already_reviewed"
	KeyAdInvalidDuration = "ad.invalid_duration"
	KeyAdRejectionReason = "ad.rejection_reason_required"

	// Credits
	KeyCreditsPurchased     = "credits.purchased"
	KeyCreditsPending       = "credits.pending"
	KeyCreditsBelowMinimum  = "credits.below_minimum"
	KeyCreditsPaymentFailed = "credits.payment_failed"

	// Admin
	KeyAdminAccessDenied = "admin.access_denied"

	// Validation
	KeyValidationRequired = "validation.required"
	KeyValidationInvalid  = "validation.invalid"

	// File Upload
	KeyFileUploadFailed = "file.upload_failed"
	KeyFileInvalidType  = "file.invalid_type"
	KeyFileTooLarge     = "file.too_large"

	// Rate limiting
	KeyRateLimited = "rate.limited"
)
