// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package http

// HeaderUserID is the header carrying the base64url-encoded user id on
// ceremony finish requests.
const HeaderUserID = "X-User-Id"

// EnrollRequest is the request body for creating a user account.
type EnrollRequest struct {
	// Username is the account name (required).
	Username string `json:"username"`

	// Secret is the enrollment secret. It is hashed server-side and never
	// stored in plaintext.
	Secret string `json:"secret"`
}

// EnrollResponse is returned after successful enrollment.
type EnrollResponse struct {
	// UserID is the base64url-encoded id of the new user.
	UserID string `json:"user_id"`
}

// BeginRequest is the request body for starting a registration or
// authentication ceremony.
type BeginRequest struct {
	// UserID is the base64url-encoded user id (required).
	UserID string `json:"user_id"`
}

// VerifyResponse is returned after a ceremony finish succeeds.
type VerifyResponse struct {
	// Verified is true when the authenticator response validated.
	Verified bool `json:"verified"`

	// UserID is the base64url-encoded id of the verified user.
	UserID string `json:"user_id"`
}

// RegistrationStatusResponse is the response for registration status.
type RegistrationStatusResponse struct {
	// Registered indicates if the user has a bound credential.
	Registered bool `json:"registered"`
}

// ErrorResponse is the response format for errors.
type ErrorResponse struct {
	// Error is the error code.
	Error string `json:"error"`

	// Message is a human-readable error message.
	Message string `json:"message"`
}

// Error codes returned in ErrorResponse.
const (
	ErrorCodeInvalidRequest     = "invalid_request"
	ErrorCodeChallengeNotFound  = "challenge_not_found"
	ErrorCodeChallengeExpired   = "challenge_expired"
	ErrorCodeUserNotFound       = "user_not_found"
	ErrorCodeNoCredentials      = "no_credentials"
	ErrorCodeVerificationFailed = "verification_failed"
	ErrorCodeInternalError      = "internal_error"
)
