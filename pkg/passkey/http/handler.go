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

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/jeremyhahn/go-passkey/pkg/metrics"
	"github.com/jeremyhahn/go-passkey/pkg/passkey"
)

// Handler provides HTTP handlers for the passkey ceremonies.
// These handlers can be mounted on any HTTP router.
type Handler struct {
	service *passkey.Service
	logger  *slog.Logger
}

// NewHandler creates a new passkey HTTP handler.
func NewHandler(service *passkey.Service) *Handler {
	return &Handler{
		service: service,
		logger:  slog.Default(),
	}
}

// WithLogger sets a custom logger for the handler.
func (h *Handler) WithLogger(logger *slog.Logger) *Handler {
	h.logger = logger
	return h
}

// Enroll handles POST /enroll
//
// Request body:
//
//	{
//	    "username": "alice",
//	    "secret": "correct horse battery staple"
//	}
//
// Response: EnrollResponse with the generated user ID.
func (h *Handler) Enroll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, ErrorCodeInvalidRequest, "method not allowed")
		return
	}

	var req EnrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid request body")
		return
	}
	if req.Username == "" {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "username is required")
		return
	}

	userID, err := h.service.Enroll(r.Context(), req.Username, req.Secret)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	metrics.RecordEnrollment()
	h.writeJSON(w, http.StatusCreated, EnrollResponse{
		UserID: base64.RawURLEncoding.EncodeToString(userID),
	})
}

// BeginRegistration handles POST /registration/begin
//
// Request body:
//
//	{
//	    "user_id": "base64url-user-id"
//	}
//
// Response: WebAuthn PublicKeyCredentialCreationOptions. Any unconsumed
// registration challenge for the user is replaced.
func (h *Handler) BeginRegistration(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, ErrorCodeInvalidRequest, "method not allowed")
		return
	}

	userID, ok := h.userIDFromBody(w, r)
	if !ok {
		return
	}

	options, err := h.service.BeginRegistration(r.Context(), userID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	metrics.RecordChallengeIssued(metrics.CeremonyRegistration)
	h.writeJSON(w, http.StatusOK, options)
}

// FinishRegistration handles POST /registration/finish
//
// Header: X-User-Id (base64url user id)
// Request body: attestation response from the authenticator
// Response: VerifyResponse
func (h *Handler) FinishRegistration(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, ErrorCodeInvalidRequest, "method not allowed")
		return
	}

	userID, ok := h.userIDFromHeader(w, r)
	if !ok {
		return
	}

	response, err := protocol.ParseCredentialCreationResponseBody(r.Body)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid attestation response")
		return
	}

	if err := h.service.FinishRegistration(r.Context(), userID, response); err != nil {
		metrics.RecordCeremony(metrics.CeremonyRegistration, metrics.StatusFailure)
		h.handleServiceError(w, err)
		return
	}

	metrics.RecordCeremony(metrics.CeremonyRegistration, metrics.StatusSuccess)
	h.writeJSON(w, http.StatusOK, VerifyResponse{
		Verified: true,
		UserID:   base64.RawURLEncoding.EncodeToString(userID),
	})
}

// RegistrationStatus handles GET /registration/status
//
// Query param or header: user_id
// Response: {"registered": true/false}
func (h *Handler) RegistrationStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, ErrorCodeInvalidRequest, "method not allowed")
		return
	}

	userIDStr := r.Header.Get(HeaderUserID)
	if userIDStr == "" {
		userIDStr = r.URL.Query().Get("user_id")
	}
	if userIDStr == "" {
		h.writeJSON(w, http.StatusOK, RegistrationStatusResponse{Registered: false})
		return
	}

	userID, err := base64.RawURLEncoding.DecodeString(userIDStr)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid user ID encoding")
		return
	}

	registered, err := h.service.IsRegistered(r.Context(), userID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, RegistrationStatusResponse{Registered: registered})
}

// BeginLogin handles POST /login/begin
//
// Request body:
//
//	{
//	    "user_id": "base64url-user-id"
//	}
//
// Response: WebAuthn PublicKeyCredentialRequestOptions. Any unconsumed
// authentication challenge for the user is replaced.
func (h *Handler) BeginLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, ErrorCodeInvalidRequest, "method not allowed")
		return
	}

	userID, ok := h.userIDFromBody(w, r)
	if !ok {
		return
	}

	options, err := h.service.BeginLogin(r.Context(), userID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	metrics.RecordChallengeIssued(metrics.CeremonyAuthentication)
	h.writeJSON(w, http.StatusOK, options)
}

// FinishLogin handles POST /login/finish
//
// Header: X-User-Id (base64url user id)
// Request body: assertion response from the authenticator
// Response: VerifyResponse
func (h *Handler) FinishLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, ErrorCodeInvalidRequest, "method not allowed")
		return
	}

	userID, ok := h.userIDFromHeader(w, r)
	if !ok {
		return
	}

	response, err := protocol.ParseCredentialRequestResponseBody(r.Body)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid assertion response")
		return
	}

	verifiedID, err := h.service.FinishLogin(r.Context(), userID, response)
	if err != nil {
		metrics.RecordCeremony(metrics.CeremonyAuthentication, metrics.StatusFailure)
		h.handleServiceError(w, err)
		return
	}

	metrics.RecordCeremony(metrics.CeremonyAuthentication, metrics.StatusSuccess)
	h.writeJSON(w, http.StatusOK, VerifyResponse{
		Verified: true,
		UserID:   base64.RawURLEncoding.EncodeToString(verifiedID),
	})
}

// userIDFromBody decodes the user id from a BeginRequest body. On failure it
// writes the error response and returns ok=false.
func (h *Handler) userIDFromBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	var req BeginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid request body")
		return nil, false
	}
	if req.UserID == "" {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "user_id is required")
		return nil, false
	}
	userID, err := base64.RawURLEncoding.DecodeString(req.UserID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid user ID encoding")
		return nil, false
	}
	return userID, true
}

// userIDFromHeader decodes the user id from the X-User-Id header. On failure
// it writes the error response and returns ok=false.
func (h *Handler) userIDFromHeader(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	userIDStr := r.Header.Get(HeaderUserID)
	if userIDStr == "" {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "user ID header is required")
		return nil, false
	}
	userID, err := base64.RawURLEncoding.DecodeString(userIDStr)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid user ID encoding")
		return nil, false
	}
	return userID, true
}

// handleServiceError maps service errors to HTTP responses. Verification
// outcomes stay opaque: a cloned-authenticator rejection is reported to the
// client with the same code as any other verification failure.
func (h *Handler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, passkey.ErrChallengeNotFound):
		h.writeError(w, http.StatusBadRequest, ErrorCodeChallengeNotFound, "no outstanding challenge")
	case errors.Is(err, passkey.ErrChallengeExpired):
		h.writeError(w, http.StatusBadRequest, ErrorCodeChallengeExpired, "challenge expired")
	case errors.Is(err, passkey.ErrUserNotFound):
		h.writeError(w, http.StatusNotFound, ErrorCodeUserNotFound, "user not found")
	case errors.Is(err, passkey.ErrNoCredentials):
		h.writeError(w, http.StatusBadRequest, ErrorCodeNoCredentials, "user has no registered credentials")
	case errors.Is(err, passkey.ErrClonedAuthenticator):
		h.logger.Warn("rejected assertion with regressed sign counter")
		h.writeError(w, http.StatusUnauthorized, ErrorCodeVerificationFailed, "verification failed")
	case errors.Is(err, passkey.ErrVerificationFailed):
		h.writeError(w, http.StatusUnauthorized, ErrorCodeVerificationFailed, "verification failed")
	case errors.Is(err, passkey.ErrInvalidRequest):
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, err.Error())
	default:
		h.writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal server error")
	}
}

// writeJSON writes a JSON response.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Response headers already written, can only log the error
		h.logger.Error("failed to encode JSON response",
			"error", err,
			"status", status)
	}
}

// writeError writes an error response.
func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: message,
	})
}
