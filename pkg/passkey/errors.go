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

package passkey

import (
	"errors"
	"fmt"
)

// Sentinel errors for ceremony operations.
var (
	// ErrUserNotFound is returned when a user cannot be found.
	ErrUserNotFound = errors.New("user not found")

	// ErrNoCredentials is returned when a user has no bound credential.
	// Distinct from ErrUserNotFound: the user exists but never completed
	// a registration ceremony.
	ErrNoCredentials = errors.New("user has no registered credentials")

	// ErrCredentialNotFound is returned when a credential cannot be found.
	ErrCredentialNotFound = errors.New("credential not found")

	// ErrChallengeNotFound is returned when a ceremony is completed with no
	// live challenge: none was ever issued, it was already consumed, or the
	// slot was overwritten by a newer issuance.
	ErrChallengeNotFound = errors.New("challenge not found")

	// ErrChallengeExpired is returned when the challenge for a slot exists
	// but its TTL has elapsed.
	ErrChallengeExpired = errors.New("challenge expired")

	// ErrVerificationFailed is returned when the cryptographic, origin, or
	// RP checks on a ceremony response fail. Callers see a single pass/fail
	// outcome; which check failed is deliberately not surfaced.
	ErrVerificationFailed = errors.New("verification failed")

	// ErrClonedAuthenticator is returned when the assertion's signature
	// counter regressed, indicating a potentially cloned authenticator.
	ErrClonedAuthenticator = errors.New("cloned authenticator detected")

	// ErrInvalidRequest is returned when the request is malformed.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrNotConfigured is returned when the service is not properly configured.
	ErrNotConfigured = errors.New("passkey service not configured")
)

// CeremonyError wraps an error with the operation that produced it.
type CeremonyError struct {
	Op  string // Operation that failed
	Err error  // Underlying error
}

// Error returns the error message.
func (e *CeremonyError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *CeremonyError) Unwrap() error {
	return e.Err
}

// Is reports whether the target error matches.
func (e *CeremonyError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewError creates a new CeremonyError with the given operation and error.
func NewError(op string, err error) error {
	return &CeremonyError{
		Op:  op,
		Err: err,
	}
}

// WrapError wraps an error with an operation name if it's not nil.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return NewError(op, err)
}

// IsUserNotFound returns true if the error indicates a user was not found.
func IsUserNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}

// IsNoCredentials returns true if the error indicates the user has no
// bound credential.
func IsNoCredentials(err error) bool {
	return errors.Is(err, ErrNoCredentials)
}

// IsChallengeNotFound returns true if the error indicates no live challenge
// exists for the ceremony.
func IsChallengeNotFound(err error) bool {
	return errors.Is(err, ErrChallengeNotFound)
}

// IsChallengeExpired returns true if the error indicates the challenge expired.
func IsChallengeExpired(err error) bool {
	return errors.Is(err, ErrChallengeExpired)
}

// IsVerificationFailed returns true if the error indicates verification failed.
func IsVerificationFailed(err error) bool {
	return errors.Is(err, ErrVerificationFailed)
}
