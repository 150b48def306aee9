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

// Package passkey implements the server side of WebAuthn (FIDO2) passwordless
// authentication: enrollment, the registration ceremony, and the
// authentication ceremony.
//
// The package is built around three collaborators:
//
//  1. Service - the ceremony engine. It issues challenges, verifies
//     attestations and assertions, and binds verified credentials to users.
//  2. Storage (UserStore, ChallengeStore, CredentialStore) - pluggable
//     persistence. In-memory implementations suitable for development and
//     testing are included.
//  3. HTTP layer (pkg/passkey/http) - composable handlers that can be
//     mounted on any router.
//
// # Challenge lifecycle
//
// Every ceremony is two steps separated by an authenticator interaction on
// the client. The only state carried across that gap is a single-use
// challenge held by the ChallengeStore, keyed by (user, ceremony). Issuing a
// new challenge for a slot overwrites the previous one, and completing a
// ceremony consumes the slot whether or not verification succeeds. A replayed
// response therefore always fails: its challenge has already been consumed.
//
// # Usage
//
//	svc, err := passkey.NewService(passkey.ServiceParams{
//	    Config: &passkey.Config{
//	        RPID:          "localhost",
//	        RPDisplayName: "My App",
//	        RPOrigins:     []string{"http://localhost:3000"},
//	    },
//	    UserStore:       passkey.NewMemoryUserStore(),
//	    ChallengeStore:  passkey.NewMemoryChallengeStore(),
//	    CredentialStore: passkey.NewMemoryCredentialStore(),
//	    SecretHasher:    secret.NewHasher(),
//	})
//
// For production, implement the storage interfaces with your database.
//
// Note: WebAuthn requires a secure context. Browsers only expose the API
// over HTTPS (localhost excepted); TLS termination is the deployment's
// responsibility, not this package's.
package passkey
