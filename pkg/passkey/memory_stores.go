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
	"encoding/hex"
	"sync"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
)

// MemoryUserStore is an in-memory implementation of UserStore.
// This is intended for development and testing only.
type MemoryUserStore struct {
	mu   sync.RWMutex
	byID map[string]*Account
}

// NewMemoryUserStore creates a new in-memory user store.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		byID: make(map[string]*Account),
	}
}

// Create enrolls a new user with a freshly generated unique id.
func (s *MemoryUserStore) Create(ctx context.Context, username, secretHash string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account := NewAccount(username, secretHash)
	s.byID[hex.EncodeToString(account.WebAuthnID())] = account
	return account, nil
}

// GetByID retrieves a user by their WebAuthn ID.
func (s *MemoryUserStore) GetByID(ctx context.Context, userID []byte) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.byID[hex.EncodeToString(userID)]
	if !ok {
		return nil, ErrUserNotFound
	}
	return account, nil
}

// Save persists changes to an existing user.
func (s *MemoryUserStore) Save(ctx context.Context, user User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := user.(*Account)
	if !ok {
		return ErrInvalidRequest
	}
	s.byID[hex.EncodeToString(account.WebAuthnID())] = account
	return nil
}

// Delete removes a user by their WebAuthn ID.
func (s *MemoryUserStore) Delete(ctx context.Context, userID []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := hex.EncodeToString(userID)
	if _, ok := s.byID[key]; !ok {
		return ErrUserNotFound
	}
	delete(s.byID, key)
	return nil
}

// Count returns the number of users in the store.
func (s *MemoryUserStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// Clear removes all users from the store.
func (s *MemoryUserStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID = make(map[string]*Account)
}

// MemoryChallengeStore is an in-memory implementation of ChallengeStore.
// This is intended for development and testing only.
type MemoryChallengeStore struct {
	mu    sync.Mutex
	slots map[slotKey]*challengeEntry
	ttl   time.Duration
}

type slotKey struct {
	userID   string
	ceremony Ceremony
}

type challengeEntry struct {
	session  *webauthn.SessionData
	issuedAt time.Time
}

// NewMemoryChallengeStore creates a new in-memory challenge store with the
// default TTL.
func NewMemoryChallengeStore() *MemoryChallengeStore {
	return NewMemoryChallengeStoreWithTTL(DefaultChallengeTTL)
}

// NewMemoryChallengeStoreWithTTL creates a new in-memory challenge store.
// A ttl of zero or less disables expiry.
func NewMemoryChallengeStoreWithTTL(ttl time.Duration) *MemoryChallengeStore {
	return &MemoryChallengeStore{
		slots: make(map[slotKey]*challengeEntry),
		ttl:   ttl,
	}
}

// Put stores a challenge for the (user, ceremony) slot, replacing any prior
// unconsumed challenge.
func (s *MemoryChallengeStore) Put(ctx context.Context, userID []byte, ceremony Ceremony, session *webauthn.SessionData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.slots[slotKey{hex.EncodeToString(userID), ceremony}] = &challengeEntry{
		session:  session,
		issuedAt: time.Now(),
	}
	return nil
}

// Take reads and atomically clears the slot. The entry is removed before the
// lock is released, so a concurrent Take for the same issuance fails.
func (s *MemoryChallengeStore) Take(ctx context.Context, userID []byte, ceremony Ceremony) (*webauthn.SessionData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := slotKey{hex.EncodeToString(userID), ceremony}
	entry, ok := s.slots[key]
	if !ok {
		return nil, ErrChallengeNotFound
	}
	delete(s.slots, key)

	if s.ttl > 0 && time.Since(entry.issuedAt) > s.ttl {
		return nil, ErrChallengeExpired
	}
	return entry.session, nil
}

// Count returns the number of live challenges in the store.
func (s *MemoryChallengeStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots)
}

// Clear removes all challenges from the store.
func (s *MemoryChallengeStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots = make(map[slotKey]*challengeEntry)
}

// Cleanup removes expired challenges and returns the count removed.
func (s *MemoryChallengeStore) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ttl <= 0 {
		return 0
	}
	now := time.Now()
	removed := 0
	for key, entry := range s.slots {
		if now.Sub(entry.issuedAt) > s.ttl {
			delete(s.slots, key)
			removed++
		}
	}
	return removed
}

// MemoryCredentialStore is an in-memory implementation of CredentialStore.
// This is intended for development and testing only.
type MemoryCredentialStore struct {
	mu       sync.RWMutex
	byID     map[string]*Credential
	byUserID map[string][]*Credential
}

// NewMemoryCredentialStore creates a new in-memory credential store.
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{
		byID:     make(map[string]*Credential),
		byUserID: make(map[string][]*Credential),
	}
}

// ReplaceForUser binds a credential to a user, dropping any prior bindings.
func (s *MemoryCredentialStore) ReplaceForUser(ctx context.Context, userID []byte, cred *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	userKey := hex.EncodeToString(userID)
	for _, old := range s.byUserID[userKey] {
		delete(s.byID, hex.EncodeToString(old.ID))
	}

	s.byID[hex.EncodeToString(cred.ID)] = cred
	s.byUserID[userKey] = []*Credential{cred}
	return nil
}

// GetByUserID retrieves all credentials bound to a user.
func (s *MemoryCredentialStore) GetByUserID(ctx context.Context, userID []byte) ([]*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	creds, ok := s.byUserID[hex.EncodeToString(userID)]
	if !ok {
		return []*Credential{}, nil
	}

	// Return a copy to prevent external modification
	result := make([]*Credential, len(creds))
	copy(result, creds)
	return result, nil
}

// GetByCredentialID retrieves a credential by its ID.
func (s *MemoryCredentialStore) GetByCredentialID(ctx context.Context, credID []byte) (*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, ok := s.byID[hex.EncodeToString(credID)]
	if !ok {
		return nil, ErrCredentialNotFound
	}
	return cred, nil
}

// Update updates an existing credential.
func (s *MemoryCredentialStore) Update(ctx context.Context, cred *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	credKey := hex.EncodeToString(cred.ID)
	if _, ok := s.byID[credKey]; !ok {
		return ErrCredentialNotFound
	}
	s.byID[credKey] = cred

	userKey := hex.EncodeToString(cred.UserID)
	for i, c := range s.byUserID[userKey] {
		if hex.EncodeToString(c.ID) == credKey {
			s.byUserID[userKey][i] = cred
			break
		}
	}
	return nil
}

// DeleteByUserID removes all credentials bound to a user.
func (s *MemoryCredentialStore) DeleteByUserID(ctx context.Context, userID []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	userKey := hex.EncodeToString(userID)
	for _, cred := range s.byUserID[userKey] {
		delete(s.byID, hex.EncodeToString(cred.ID))
	}
	delete(s.byUserID, userKey)
	return nil
}

// Count returns the total number of credentials in the store.
func (s *MemoryCredentialStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// Clear removes all credentials from the store.
func (s *MemoryCredentialStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID = make(map[string]*Credential)
	s.byUserID = make(map[string][]*Credential)
}
