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
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
)

// Ceremony identifies which of the two WebAuthn ceremonies a challenge
// belongs to. Each user has one independent challenge slot per ceremony.
type Ceremony string

const (
	// CeremonyRegistration is the credential creation (attestation) ceremony.
	CeremonyRegistration Ceremony = "registration"

	// CeremonyAuthentication is the assertion ceremony.
	CeremonyAuthentication Ceremony = "authentication"
)

// User represents an enrolled user. Applications should implement this
// interface to integrate with their existing user model.
//
// The interface embeds webauthn.User from the go-webauthn library to ensure
// compatibility with the underlying WebAuthn operations.
type User interface {
	webauthn.User

	// Username returns the handle supplied at enrollment.
	Username() string

	// SecretHash returns the hashed enrollment secret. The hash is opaque
	// to the ceremony engine; only the enrollment subsystem interprets it.
	SecretHash() string

	// Credentials returns the user's bound credentials.
	Credentials() []*Credential

	// SetCredentials replaces the user's bound credentials.
	SetCredentials(creds []*Credential)

	// UpdateCredential updates an existing credential (e.g., sign counter).
	UpdateCredential(cred *Credential)
}

// Credential is the public-key record bound to a user after a successful
// registration ceremony. It wraps the go-webauthn credential with storage
// metadata.
type Credential struct {
	// ID is the credential identifier assigned by the authenticator.
	ID []byte `json:"id"`

	// UserID is the user this credential belongs to.
	UserID []byte `json:"user_id"`

	// PublicKey is the credential's public key in COSE format.
	PublicKey []byte `json:"public_key"`

	// AttestationType indicates the type of attestation used.
	AttestationType string `json:"attestation_type"`

	// Transport lists the transports supported by the authenticator.
	Transport []protocol.AuthenticatorTransport `json:"transport,omitempty"`

	// Flags contains authenticator capability flags.
	Flags CredentialFlags `json:"flags"`

	// Authenticator contains authenticator-specific data.
	Authenticator AuthenticatorData `json:"authenticator"`

	// CreatedAt is when the credential was registered.
	CreatedAt time.Time `json:"created_at"`

	// LastUsedAt is when the credential was last used for authentication.
	LastUsedAt time.Time `json:"last_used_at,omitempty"`
}

// CredentialFlags contains authenticator capability flags.
type CredentialFlags struct {
	// UserPresent indicates the user was present during the operation.
	UserPresent bool `json:"user_present"`

	// UserVerified indicates the user was verified (e.g., biometric, PIN).
	UserVerified bool `json:"user_verified"`

	// BackupEligible indicates the credential can be backed up.
	BackupEligible bool `json:"backup_eligible"`

	// BackupState indicates the credential is currently backed up.
	BackupState bool `json:"backup_state"`
}

// AuthenticatorData contains authenticator-specific information.
type AuthenticatorData struct {
	// AAGUID is the authenticator's unique identifier.
	AAGUID []byte `json:"aaguid"`

	// SignCount is the signature counter for clone detection.
	SignCount uint32 `json:"sign_count"`

	// CloneWarning indicates a potential cloned authenticator.
	CloneWarning bool `json:"clone_warning"`

	// Attachment indicates how the authenticator is attached.
	Attachment protocol.AuthenticatorAttachment `json:"attachment"`
}

// ToWebAuthn converts a Credential to the go-webauthn library's type.
func (c *Credential) ToWebAuthn() webauthn.Credential {
	return webauthn.Credential{
		ID:              c.ID,
		PublicKey:       c.PublicKey,
		AttestationType: c.AttestationType,
		Transport:       c.Transport,
		Flags: webauthn.CredentialFlags{
			UserPresent:    c.Flags.UserPresent,
			UserVerified:   c.Flags.UserVerified,
			BackupEligible: c.Flags.BackupEligible,
			BackupState:    c.Flags.BackupState,
		},
		Authenticator: webauthn.Authenticator{
			AAGUID:       c.Authenticator.AAGUID,
			SignCount:    c.Authenticator.SignCount,
			CloneWarning: c.Authenticator.CloneWarning,
			Attachment:   c.Authenticator.Attachment,
		},
	}
}

// FromWebAuthnCredential creates a Credential from the go-webauthn type.
func FromWebAuthnCredential(userID []byte, wc *webauthn.Credential) *Credential {
	return &Credential{
		ID:              wc.ID,
		UserID:          userID,
		PublicKey:       wc.PublicKey,
		AttestationType: wc.AttestationType,
		Transport:       wc.Transport,
		Flags: CredentialFlags{
			UserPresent:    wc.Flags.UserPresent,
			UserVerified:   wc.Flags.UserVerified,
			BackupEligible: wc.Flags.BackupEligible,
			BackupState:    wc.Flags.BackupState,
		},
		Authenticator: AuthenticatorData{
			AAGUID:       wc.Authenticator.AAGUID,
			SignCount:    wc.Authenticator.SignCount,
			CloneWarning: wc.Authenticator.CloneWarning,
			Attachment:   wc.Authenticator.Attachment,
		},
		CreatedAt: time.Now().UTC(),
	}
}

// Account is the built-in implementation of the User interface.
// Applications can use it directly or as a reference for their own model.
type Account struct {
	id          []byte
	username    string
	secretHash  string
	credentials []*Credential
	createdAt   time.Time
}

// NewAccount creates a new Account with a freshly generated unique id.
// The id is a UUIDv4 in byte form, suitable as a WebAuthn user handle.
func NewAccount(username, secretHash string) *Account {
	id := uuid.New()
	return &Account{
		id:          id[:],
		username:    username,
		secretHash:  secretHash,
		credentials: make([]*Credential, 0),
		createdAt:   time.Now().UTC(),
	}
}

// WebAuthnID returns the user's WebAuthn ID (user handle).
func (a *Account) WebAuthnID() []byte {
	return a.id
}

// WebAuthnName returns the user's username.
func (a *Account) WebAuthnName() string {
	return a.username
}

// WebAuthnDisplayName returns the name shown by the authenticator UI.
func (a *Account) WebAuthnDisplayName() string {
	return a.username
}

// WebAuthnCredentials returns the user's bound credentials in the
// go-webauthn representation.
func (a *Account) WebAuthnCredentials() []webauthn.Credential {
	creds := make([]webauthn.Credential, len(a.credentials))
	for i, c := range a.credentials {
		creds[i] = c.ToWebAuthn()
	}
	return creds
}

// Username returns the handle supplied at enrollment.
func (a *Account) Username() string {
	return a.username
}

// SecretHash returns the hashed enrollment secret.
func (a *Account) SecretHash() string {
	return a.secretHash
}

// Credentials returns the user's bound credentials.
func (a *Account) Credentials() []*Credential {
	return a.credentials
}

// SetCredentials replaces the user's bound credentials.
func (a *Account) SetCredentials(creds []*Credential) {
	a.credentials = creds
}

// UpdateCredential updates an existing credential in place, matched by ID.
func (a *Account) UpdateCredential(cred *Credential) {
	for i, c := range a.credentials {
		if string(c.ID) == string(cred.ID) {
			a.credentials[i] = cred
			return
		}
	}
}

// CreatedAt returns when the account was enrolled.
func (a *Account) CreatedAt() time.Time {
	return a.createdAt
}
