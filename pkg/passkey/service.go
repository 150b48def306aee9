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
	"context"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

// Service is the ceremony engine. It drives the two-step registration and
// authentication ceremonies against the challenge ledger and the credential
// directory.
type Service struct {
	webauthn   *webauthn.WebAuthn
	config     *Config
	users      UserStore
	challenges ChallengeStore
	creds      CredentialStore
	hasher     SecretHasher
	configured bool
}

// ServiceParams contains dependencies for creating a passkey service.
type ServiceParams struct {
	// Config is the relying-party configuration (required).
	Config *Config

	// UserStore is the user persistence layer (required).
	UserStore UserStore

	// ChallengeStore is the challenge ledger (required).
	ChallengeStore ChallengeStore

	// CredentialStore is the credential persistence layer (required).
	CredentialStore CredentialStore

	// SecretHasher hashes enrollment secrets before storage (required).
	SecretHasher SecretHasher
}

// NewService creates a new passkey service with the provided dependencies.
func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if params.UserStore == nil {
		return nil, fmt.Errorf("user store is required")
	}
	if params.ChallengeStore == nil {
		return nil, fmt.Errorf("challenge store is required")
	}
	if params.CredentialStore == nil {
		return nil, fmt.Errorf("credential store is required")
	}
	if params.SecretHasher == nil {
		return nil, fmt.Errorf("secret hasher is required")
	}

	params.Config.SetDefaults()
	if err := params.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	wa, err := webauthn.New(params.Config.ToWebAuthnConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create webauthn instance: %w", err)
	}

	return &Service{
		webauthn:   wa,
		config:     params.Config,
		users:      params.UserStore,
		challenges: params.ChallengeStore,
		creds:      params.CredentialStore,
		hasher:     params.SecretHasher,
		configured: true,
	}, nil
}

// Enroll creates a new user and returns its generated id. The secret is
// hashed before it reaches the store; the plaintext is never persisted.
// Enrollment does not bind a credential - that happens when a registration
// ceremony completes.
func (s *Service) Enroll(ctx context.Context, username, secret string) ([]byte, error) {
	if !s.configured {
		return nil, ErrNotConfigured
	}
	if username == "" {
		return nil, NewError("enroll", fmt.Errorf("%w: username is required", ErrInvalidRequest))
	}

	secretHash, err := s.hasher.Hash(secret)
	if err != nil {
		return nil, WrapError("hash secret", err)
	}

	user, err := s.users.Create(ctx, username, secretHash)
	if err != nil {
		return nil, WrapError("create user", err)
	}
	return user.WebAuthnID(), nil
}

// BeginRegistration starts the registration ceremony for an enrolled user.
// It issues a registration challenge, replacing any prior unconsumed one for
// the user, and returns the credential creation options to pass through to
// the authenticator.
func (s *Service) BeginRegistration(ctx context.Context, userID []byte) (*protocol.CredentialCreation, error) {
	if !s.configured {
		return nil, ErrNotConfigured
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, WrapError("get user", err)
	}

	options, session, err := s.webauthn.BeginRegistration(user)
	if err != nil {
		return nil, WrapError("begin registration", err)
	}

	if err := s.challenges.Put(ctx, userID, CeremonyRegistration, session); err != nil {
		return nil, WrapError("store challenge", err)
	}
	return options, nil
}

// FinishRegistration completes the registration ceremony. The registration
// challenge is consumed whether or not verification succeeds; a failed
// attempt cannot be retried without a fresh BeginRegistration. On success
// the verified credential replaces any previously bound credential.
func (s *Service) FinishRegistration(ctx context.Context, userID []byte, response *protocol.ParsedCredentialCreationData) error {
	if !s.configured {
		return ErrNotConfigured
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return WrapError("get user", err)
	}

	// Single use: the slot is cleared here, before verification.
	session, err := s.challenges.Take(ctx, userID, CeremonyRegistration)
	if err != nil {
		return WrapError("consume challenge", err)
	}

	if response == nil {
		return NewError("finish registration", ErrInvalidRequest)
	}

	credential, err := s.webauthn.CreateCredential(user, *session, response)
	if err != nil {
		return verificationFailed("create credential", err)
	}

	cred := FromWebAuthnCredential(user.WebAuthnID(), credential)
	if err := s.creds.ReplaceForUser(ctx, userID, cred); err != nil {
		return WrapError("bind credential", err)
	}

	user.SetCredentials([]*Credential{cred})
	if err := s.users.Save(ctx, user); err != nil {
		return WrapError("save user", err)
	}
	return nil
}

// BeginLogin starts the authentication ceremony. By default the user must be
// enrolled with at least one bound credential; with AllowUnknownUserLogin the
// service instead issues discoverable-credential options for unknown users,
// mirroring deployments where the user handle is resolved client-side.
func (s *Service) BeginLogin(ctx context.Context, userID []byte) (*protocol.CredentialAssertion, error) {
	if !s.configured {
		return nil, ErrNotConfigured
	}

	var options *protocol.CredentialAssertion
	var session *webauthn.SessionData

	user, err := s.users.GetByID(ctx, userID)
	switch {
	case err == nil && len(user.WebAuthnCredentials()) > 0:
		options, session, err = s.webauthn.BeginLogin(user)
	case s.config.AllowUnknownUserLogin:
		options, session, err = s.webauthn.BeginDiscoverableLogin()
	case err != nil:
		return nil, WrapError("get user", err)
	default:
		return nil, NewError("begin login", ErrNoCredentials)
	}
	if err != nil {
		return nil, WrapError("begin login", err)
	}

	if err := s.challenges.Put(ctx, userID, CeremonyAuthentication, session); err != nil {
		return nil, WrapError("store challenge", err)
	}
	return options, nil
}

// FinishLogin completes the authentication ceremony and returns the id of
// the authenticated user. The authentication challenge is consumed whether
// or not verification succeeds, so a captured assertion cannot be replayed.
func (s *Service) FinishLogin(ctx context.Context, userID []byte, response *protocol.ParsedCredentialAssertionData) ([]byte, error) {
	if !s.configured {
		return nil, ErrNotConfigured
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, WrapError("get user", err)
	}
	if len(user.WebAuthnCredentials()) == 0 {
		return nil, NewError("finish login", ErrNoCredentials)
	}

	// Single use: the slot is cleared here, before verification.
	session, err := s.challenges.Take(ctx, userID, CeremonyAuthentication)
	if err != nil {
		return nil, WrapError("consume challenge", err)
	}

	if response == nil {
		return nil, NewError("finish login", ErrInvalidRequest)
	}

	credential, err := s.webauthn.ValidateLogin(user, *session, response)
	if err != nil {
		return nil, verificationFailed("validate login", err)
	}
	if credential.Authenticator.CloneWarning {
		return nil, NewError("validate login", ErrClonedAuthenticator)
	}

	stored, err := s.creds.GetByCredentialID(ctx, credential.ID)
	if err != nil {
		return nil, WrapError("get credential for update", err)
	}
	stored.Authenticator.SignCount = credential.Authenticator.SignCount
	stored.Authenticator.CloneWarning = credential.Authenticator.CloneWarning
	stored.LastUsedAt = time.Now().UTC()

	if err := s.creds.Update(ctx, stored); err != nil {
		return nil, WrapError("update credential", err)
	}

	user.UpdateCredential(stored)
	if err := s.users.Save(ctx, user); err != nil {
		return nil, WrapError("save user", err)
	}

	return user.WebAuthnID(), nil
}

// IsRegistered checks if a user has a bound credential.
func (s *Service) IsRegistered(ctx context.Context, userID []byte) (bool, error) {
	if !s.configured {
		return false, ErrNotConfigured
	}
	if userID == nil {
		return false, nil
	}

	creds, err := s.creds.GetByUserID(ctx, userID)
	if err != nil {
		return false, WrapError("get credentials", err)
	}
	return len(creds) > 0, nil
}

// GetUser retrieves a user by their id.
func (s *Service) GetUser(ctx context.Context, userID []byte) (User, error) {
	if !s.configured {
		return nil, ErrNotConfigured
	}
	return s.users.GetByID(ctx, userID)
}

// Credentials retrieves the credentials bound to a user.
func (s *Service) Credentials(ctx context.Context, userID []byte) ([]*Credential, error) {
	if !s.configured {
		return nil, ErrNotConfigured
	}
	return s.creds.GetByUserID(ctx, userID)
}

// Config returns the service configuration.
func (s *Service) Config() *Config {
	return s.config
}

// verificationFailed collapses a verification error into the single
// pass/fail sentinel. The underlying detail stays in the message for server
// logs but callers match only ErrVerificationFailed.
func verificationFailed(op string, err error) error {
	return NewError(op, fmt.Errorf("%w: %v", ErrVerificationFailed, err))
}
