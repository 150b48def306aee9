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

package rest

import (
	"context"
	"time"

	"github.com/jeremyhahn/go-passkey/pkg/passkey"
)

// Stores bundles the passkey storage implementations for the REST server.
// The in-memory stores are suitable for development and testing; production
// deployments substitute database-backed implementations of the same
// interfaces into passkey.ServiceParams directly.
type Stores struct {
	users       passkey.UserStore
	challenges  passkey.ChallengeStore
	credentials passkey.CredentialStore
}

// StoresConfig configures the passkey stores.
type StoresConfig struct {
	// ChallengeTTL is the duration after which an unconsumed challenge
	// expires. Zero disables expiry.
	ChallengeTTL time.Duration
}

// NewStores creates in-memory passkey stores for the REST server.
func NewStores(cfg *StoresConfig) *Stores {
	if cfg == nil {
		cfg = &StoresConfig{ChallengeTTL: passkey.DefaultChallengeTTL}
	}
	return &Stores{
		users:       passkey.NewMemoryUserStore(),
		challenges:  passkey.NewMemoryChallengeStoreWithTTL(cfg.ChallengeTTL),
		credentials: passkey.NewMemoryCredentialStore(),
	}
}

// UserStore returns the user store.
func (s *Stores) UserStore() passkey.UserStore {
	return s.users
}

// ChallengeStore returns the challenge ledger.
func (s *Stores) ChallengeStore() passkey.ChallengeStore {
	return s.challenges
}

// CredentialStore returns the credential store.
func (s *Stores) CredentialStore() passkey.CredentialStore {
	return s.credentials
}

// CleanupChallenges removes expired challenges and returns the count
// removed. Expired challenges are also rejected at consume time, so this
// only bounds memory held by abandoned ceremonies.
func (s *Stores) CleanupChallenges() int {
	if memStore, ok := s.challenges.(*passkey.MemoryChallengeStore); ok {
		return memStore.Cleanup()
	}
	return 0
}

// StartCleanupRoutine starts a background goroutine that periodically cleans
// up expired challenges. Call the returned cancel function to stop it.
func (s *Stores) StartCleanupRoutine(ctx context.Context, interval time.Duration) context.CancelFunc {
	ctx, cancel := context.WithCancel(ctx)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.CleanupChallenges()
			}
		}
	}()

	return cancel
}

// Clear clears all stores (useful for testing).
func (s *Stores) Clear() {
	if memStore, ok := s.users.(*passkey.MemoryUserStore); ok {
		memStore.Clear()
	}
	if memStore, ok := s.challenges.(*passkey.MemoryChallengeStore); ok {
		memStore.Clear()
	}
	if memStore, ok := s.credentials.(*passkey.MemoryCredentialStore); ok {
		memStore.Clear()
	}
}
