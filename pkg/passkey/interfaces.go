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

	"github.com/go-webauthn/webauthn/webauthn"
)

// UserStore is the credential directory's user side. Applications implement
// this to persist enrolled users; the interface is intentionally minimal.
type UserStore interface {
	// Create enrolls a new user with the given username and hashed secret,
	// assigning a fresh unique id. Usernames are not required to be unique.
	Create(ctx context.Context, username, secretHash string) (User, error)

	// GetByID retrieves a user by their WebAuthn ID (user handle).
	// Returns ErrUserNotFound if the user does not exist.
	GetByID(ctx context.Context, userID []byte) (User, error)

	// Save persists changes to an existing user (bound credentials).
	Save(ctx context.Context, user User) error

	// Delete removes a user by their WebAuthn ID.
	// Returns ErrUserNotFound if the user does not exist.
	Delete(ctx context.Context, userID []byte) error
}

// ChallengeStore is the challenge ledger: at most one live challenge per
// (user, ceremony) slot. The stored value is the go-webauthn session data so
// verification compares the user binding, not just the challenge bytes.
//
// Implementations must make Take atomic with respect to concurrent Take and
// Put calls on the same slot; two concurrent ceremony completions for the
// same user must never both consume one issuance.
type ChallengeStore interface {
	// Put stores a challenge for the slot, replacing any prior unconsumed
	// challenge. Replacement invalidates responses minted over the old one.
	Put(ctx context.Context, userID []byte, ceremony Ceremony, session *webauthn.SessionData) error

	// Take reads and atomically clears the slot. Returns ErrChallengeNotFound
	// if no challenge is live, or ErrChallengeExpired if its TTL elapsed.
	// A second Take for the same issuance always fails; this is the sole
	// replay defense.
	Take(ctx context.Context, userID []byte, ceremony Ceremony) (*webauthn.SessionData, error)
}

// CredentialStore is the credential directory's credential side.
type CredentialStore interface {
	// ReplaceForUser binds a credential to a user, removing any previously
	// bound credentials (last-write-wins, no merge).
	ReplaceForUser(ctx context.Context, userID []byte, cred *Credential) error

	// GetByUserID retrieves all credentials bound to a user.
	// Returns an empty slice if the user has no credentials.
	GetByUserID(ctx context.Context, userID []byte) ([]*Credential, error)

	// GetByCredentialID retrieves a credential by its ID.
	// Returns ErrCredentialNotFound if the credential does not exist.
	GetByCredentialID(ctx context.Context, credID []byte) (*Credential, error)

	// Update updates an existing credential (sign counter, last used).
	// Returns ErrCredentialNotFound if the credential does not exist.
	Update(ctx context.Context, cred *Credential) error

	// DeleteByUserID removes all credentials bound to a user.
	DeleteByUserID(ctx context.Context, userID []byte) error
}

// SecretHasher hashes enrollment secrets before they reach the UserStore.
// The ceremony engine never stores or compares plaintext secrets.
type SecretHasher interface {
	// Hash returns an encoded, self-describing hash of the secret.
	Hash(secret string) (string, error)
}
