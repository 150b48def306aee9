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

// Package rest assembles the passkey HTTP server: it wires the ceremony
// service, in-memory stores, health probes, Prometheus metrics, and the
// demo web UI behind a chi router with logging, correlation, and recovery
// middleware.
//
// # Server Setup
//
//	stores := rest.NewStores(&rest.StoresConfig{ChallengeTTL: 2 * time.Minute})
//	svc, _ := passkey.NewService(passkey.ServiceParams{
//	    Config:          &passkey.Config{RPID: "localhost", RPDisplayName: "example", RPOrigins: []string{"http://localhost:8443"}},
//	    UserStore:       stores.UserStore(),
//	    ChallengeStore:  stores.ChallengeStore(),
//	    CredentialStore: stores.CredentialStore(),
//	    SecretHasher:    secret.NewDefaultHasher(),
//	})
//
//	server, _ := rest.NewServer(&rest.Config{Port: 8443, Service: svc})
//	go server.Start()
//
//	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
//	defer cancel()
//	server.Stop(ctx)
//
// # API Endpoints
//
// Health:
//   - GET /health          - aggregate health status
//   - GET /health/live     - Kubernetes liveness probe
//   - GET /health/ready    - Kubernetes readiness probe
//   - GET /health/startup  - Kubernetes startup probe
//
// Passkey ceremonies (under /api/v1/passkey):
//   - POST /enroll               - create a user account
//   - POST /registration/begin   - issue a registration challenge
//   - POST /registration/finish  - verify attestation, bind credential
//   - GET  /registration/status  - check registration state
//   - POST /login/begin          - issue an authentication challenge
//   - POST /login/finish         - verify assertion
//
// Metrics are exposed at the configured path (default /metrics) when
// enabled.
//
// # Security Considerations
//
// The server speaks plain HTTP and expects TLS termination in front of
// it; WebAuthn origins must still match the externally visible scheme
// and host. There is no session issuance: a successful login finish is
// reported to the caller, which owns whatever session machinery follows.
package rest
