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

// Package secret hashes enrollment secrets with Argon2id. Hashes are encoded
// in the PHC string format so the parameters travel with the hash and can be
// tightened later without invalidating stored values.
package secret

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	// DefaultMemory is the memory cost in KiB.
	DefaultMemory = 64 * 1024

	// DefaultTime is the time cost (iterations).
	DefaultTime = 3

	// DefaultThreads is the degree of parallelism.
	DefaultThreads = 4

	// DefaultSaltLength is the salt length in bytes.
	DefaultSaltLength = 16

	// DefaultKeyLength is the derived key length in bytes.
	DefaultKeyLength = 32
)

var (
	// ErrInvalidHash is returned when a stored hash cannot be parsed.
	ErrInvalidHash = errors.New("secret: invalid hash format")

	// ErrIncompatibleVersion is returned when a stored hash uses an
	// unsupported Argon2 version.
	ErrIncompatibleVersion = errors.New("secret: incompatible argon2 version")
)

// Params are the Argon2id cost parameters.
type Params struct {
	Memory     uint32
	Time       uint32
	Threads    uint8
	SaltLength uint32
	KeyLength  uint32
}

// DefaultParams returns the default Argon2id cost parameters.
func DefaultParams() Params {
	return Params{
		Memory:     DefaultMemory,
		Time:       DefaultTime,
		Threads:    DefaultThreads,
		SaltLength: DefaultSaltLength,
		KeyLength:  DefaultKeyLength,
	}
}

// Hasher hashes and verifies enrollment secrets.
type Hasher struct {
	params Params
}

// NewHasher creates a hasher with the given parameters. Zero-valued fields
// fall back to the defaults.
func NewHasher(params Params) *Hasher {
	defaults := DefaultParams()
	if params.Memory == 0 {
		params.Memory = defaults.Memory
	}
	if params.Time == 0 {
		params.Time = defaults.Time
	}
	if params.Threads == 0 {
		params.Threads = defaults.Threads
	}
	if params.SaltLength == 0 {
		params.SaltLength = defaults.SaltLength
	}
	if params.KeyLength == 0 {
		params.KeyLength = defaults.KeyLength
	}
	return &Hasher{params: params}
}

// NewDefaultHasher creates a hasher with the default parameters.
func NewDefaultHasher() *Hasher {
	return NewHasher(DefaultParams())
}

// Hash derives an Argon2id hash of the secret and returns it in PHC string
// format:
//
//	$argon2id$v=19$m=65536,t=3,p=4$<salt-b64>$<hash-b64>
func (h *Hasher) Hash(secret string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("secret: failed to generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(secret), salt, h.params.Time, h.params.Memory, h.params.Threads, h.params.KeyLength)

	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory,
		h.params.Time,
		h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
	return encoded, nil
}

// Verify reports whether the secret matches the encoded hash. Comparison is
// constant time over the derived keys.
func (h *Hasher) Verify(secret, encodedHash string) (bool, error) {
	params, salt, key, err := decodeHash(encodedHash)
	if err != nil {
		return false, err
	}

	candidate := argon2.IDKey([]byte(secret), salt, params.Time, params.Memory, params.Threads, params.KeyLength)
	return subtle.ConstantTimeCompare(key, candidate) == 1, nil
}

// decodeHash parses a PHC-format Argon2id hash into its parameters, salt,
// and derived key.
func decodeHash(encodedHash string) (Params, []byte, []byte, error) {
	var params Params

	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return params, nil, nil, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return params, nil, nil, ErrInvalidHash
	}
	if version != argon2.Version {
		return params, nil, nil, ErrIncompatibleVersion
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.Memory, &params.Time, &params.Threads); err != nil {
		return params, nil, nil, ErrInvalidHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return params, nil, nil, ErrInvalidHash
	}
	params.SaltLength = uint32(len(salt))

	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return params, nil, nil, ErrInvalidHash
	}
	params.KeyLength = uint32(len(key))

	return params, salt, key, nil
}
