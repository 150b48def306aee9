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

// Package http provides framework-agnostic HTTP handlers for the passkey
// ceremonies. The handlers translate JSON requests into service calls and
// map service errors onto stable error codes; they carry no session state
// of their own, since the challenge ledger inside the service already binds
// each outstanding ceremony to its user.
//
// Routes:
//
//	POST /enroll               - create a user account
//	POST /registration/begin   - issue a registration challenge
//	POST /registration/finish  - verify attestation, bind credential
//	GET  /registration/status  - check whether a user has a credential
//	POST /login/begin          - issue an authentication challenge
//	POST /login/finish         - verify assertion
//
// Finish requests identify the user through the X-User-Id header; begin
// requests carry the user id in the JSON body. User ids are base64url
// encoded without padding.
package http
