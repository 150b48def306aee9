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
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/protocol/webauthncbor"
	"github.com/go-webauthn/webauthn/protocol/webauthncose"
)

// FakeAuthenticator is a scriptable software authenticator used to exercise
// the ceremony engine without a browser. Unlike a real authenticator it
// exposes its sign counter, flags and credential id so tests can produce
// tampered or replayed responses on purpose.
type FakeAuthenticator struct {
	// AAGUID is the authenticator model identifier (16 bytes).
	AAGUID []byte

	// CredentialID identifies the single credential this authenticator holds.
	CredentialID []byte

	// SignCount is the signature counter reported in assertions.
	SignCount uint32

	// UserPresent and UserVerified control the UP/UV flags.
	UserPresent  bool
	UserVerified bool

	key      *ecdsa.PrivateKey
	rpIDHash []byte
}

// FakeAuthenticatorOption configures a FakeAuthenticator.
type FakeAuthenticatorOption func(*FakeAuthenticator)

// WithCredentialID sets a fixed credential id.
func WithCredentialID(id []byte) FakeAuthenticatorOption {
	return func(a *FakeAuthenticator) { a.CredentialID = id }
}

// WithSignCount sets the initial signature counter.
func WithSignCount(n uint32) FakeAuthenticatorOption {
	return func(a *FakeAuthenticator) { a.SignCount = n }
}

// WithUserVerified controls the UV flag.
func WithUserVerified(uv bool) FakeAuthenticatorOption {
	return func(a *FakeAuthenticator) { a.UserVerified = uv }
}

// NewFakeAuthenticator creates a fake authenticator bound to the given
// relying-party id with a fresh P-256 key pair.
func NewFakeAuthenticator(rpID string, opts ...FakeAuthenticatorOption) (*FakeAuthenticator, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}

	aaguid := make([]byte, 16)
	if _, err := rand.Read(aaguid); err != nil {
		return nil, err
	}
	credID := make([]byte, 32)
	if _, err := rand.Read(credID); err != nil {
		return nil, err
	}

	rpIDHash := sha256.Sum256([]byte(rpID))

	a := &FakeAuthenticator{
		AAGUID:       aaguid,
		CredentialID: credID,
		UserPresent:  true,
		UserVerified: true,
		key:          key,
		rpIDHash:     rpIDHash[:],
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// COSEPublicKey returns the credential public key in COSE format.
func (a *FakeAuthenticator) COSEPublicKey() ([]byte, error) {
	pub := a.key.Public().(*ecdsa.PublicKey)
	coseKey := map[int]interface{}{
		1:  2,                          // kty: EC2
		3:  int(webauthncose.AlgES256), // alg: ES256
		-1: 1,                          // crv: P-256
		-2: pub.X.Bytes(),
		-3: pub.Y.Bytes(),
	}
	return webauthncbor.Marshal(coseKey)
}

// Attest produces a parsed registration response for the given challenge,
// using "none" attestation.
func (a *FakeAuthenticator) Attest(challenge []byte, origin string) (*protocol.ParsedCredentialCreationData, error) {
	authData, err := a.authenticatorData(true)
	if err != nil {
		return nil, err
	}
	clientDataJSON := a.clientDataJSON(challenge, origin, "webauthn.create")

	attestationObject, err := webauthncbor.Marshal(map[string]interface{}{
		"authData": authData,
		"fmt":      "none",
		"attStmt":  map[string]interface{}{},
	})
	if err != nil {
		return nil, err
	}

	pubKey, err := a.COSEPublicKey()
	if err != nil {
		return nil, err
	}

	credIDEncoded := base64.RawURLEncoding.EncodeToString(a.CredentialID)

	return &protocol.ParsedCredentialCreationData{
		ParsedPublicKeyCredential: protocol.ParsedPublicKeyCredential{
			ParsedCredential: protocol.ParsedCredential{
				ID:   credIDEncoded,
				Type: "public-key",
			},
			RawID:                  a.CredentialID,
			ClientExtensionResults: protocol.AuthenticationExtensionsClientOutputs{},
		},
		Response: protocol.ParsedAttestationResponse{
			CollectedClientData: protocol.CollectedClientData{
				Type:      "webauthn.create",
				Challenge: base64.RawURLEncoding.EncodeToString(challenge),
				Origin:    origin,
			},
			AttestationObject: protocol.AttestationObject{
				Format:       "none",
				AttStatement: map[string]interface{}{},
				AuthData: protocol.AuthenticatorData{
					RPIDHash: a.rpIDHash,
					Flags:    a.flags(true),
					Counter:  a.SignCount,
					AttData: protocol.AttestedCredentialData{
						AAGUID:              a.AAGUID,
						CredentialID:        a.CredentialID,
						CredentialPublicKey: pubKey,
					},
				},
			},
			Transports: []protocol.AuthenticatorTransport{protocol.Internal},
		},
		Raw: protocol.CredentialCreationResponse{
			PublicKeyCredential: protocol.PublicKeyCredential{
				Credential: protocol.Credential{
					ID:   credIDEncoded,
					Type: "public-key",
				},
				RawID:                  a.CredentialID,
				ClientExtensionResults: protocol.AuthenticationExtensionsClientOutputs{},
			},
			AttestationResponse: protocol.AuthenticatorAttestationResponse{
				AuthenticatorResponse: protocol.AuthenticatorResponse{
					ClientDataJSON: clientDataJSON,
				},
				AttestationObject: attestationObject,
				Transports:        []string{"internal"},
			},
		},
	}, nil
}

// Assert produces a parsed authentication response for the given challenge.
// The sign counter is incremented before signing, matching real
// authenticator behavior.
func (a *FakeAuthenticator) Assert(challenge, userHandle []byte, origin string) (*protocol.ParsedCredentialAssertionData, error) {
	a.SignCount++

	authData, err := a.authenticatorData(false)
	if err != nil {
		return nil, err
	}
	clientDataJSON := a.clientDataJSON(challenge, origin, "webauthn.get")
	clientDataHash := sha256.Sum256(clientDataJSON)

	signed := append(authData, clientDataHash[:]...)
	digest := sha256.Sum256(signed)
	signature, err := ecdsa.SignASN1(rand.Reader, a.key, digest[:])
	if err != nil {
		return nil, err
	}

	credIDEncoded := base64.RawURLEncoding.EncodeToString(a.CredentialID)

	return &protocol.ParsedCredentialAssertionData{
		ParsedPublicKeyCredential: protocol.ParsedPublicKeyCredential{
			ParsedCredential: protocol.ParsedCredential{
				ID:   credIDEncoded,
				Type: "public-key",
			},
			RawID:                  a.CredentialID,
			ClientExtensionResults: protocol.AuthenticationExtensionsClientOutputs{},
		},
		Response: protocol.ParsedAssertionResponse{
			CollectedClientData: protocol.CollectedClientData{
				Type:      "webauthn.get",
				Challenge: base64.RawURLEncoding.EncodeToString(challenge),
				Origin:    origin,
			},
			AuthenticatorData: protocol.AuthenticatorData{
				RPIDHash: a.rpIDHash,
				Flags:    a.flags(false),
				Counter:  a.SignCount,
			},
			Signature:  signature,
			UserHandle: userHandle,
		},
		Raw: protocol.CredentialAssertionResponse{
			PublicKeyCredential: protocol.PublicKeyCredential{
				Credential: protocol.Credential{
					ID:   credIDEncoded,
					Type: "public-key",
				},
				RawID:                  a.CredentialID,
				ClientExtensionResults: protocol.AuthenticationExtensionsClientOutputs{},
			},
			AssertionResponse: protocol.AuthenticatorAssertionResponse{
				AuthenticatorResponse: protocol.AuthenticatorResponse{
					ClientDataJSON: clientDataJSON,
				},
				AuthenticatorData: authData,
				Signature:         signature,
				UserHandle:        userHandle,
			},
		},
	}, nil
}

func (a *FakeAuthenticator) flags(attested bool) protocol.AuthenticatorFlags {
	var f protocol.AuthenticatorFlags
	if a.UserPresent {
		f |= protocol.FlagUserPresent
	}
	if a.UserVerified {
		f |= protocol.FlagUserVerified
	}
	if attested {
		f |= protocol.FlagAttestedCredentialData
	}
	return f
}

// authenticatorData serializes the raw authenticator data structure.
// Attested credential data is appended only for registration.
func (a *FakeAuthenticator) authenticatorData(attested bool) ([]byte, error) {
	var buf bytes.Buffer

	buf.Write(a.rpIDHash)
	buf.WriteByte(byte(a.flags(attested)))

	counter := make([]byte, 4)
	binary.BigEndian.PutUint32(counter, a.SignCount)
	buf.Write(counter)

	if attested {
		buf.Write(a.AAGUID)

		credIDLen := make([]byte, 2)
		binary.BigEndian.PutUint16(credIDLen, uint16(len(a.CredentialID)))
		buf.Write(credIDLen)
		buf.Write(a.CredentialID)

		pubKey, err := a.COSEPublicKey()
		if err != nil {
			return nil, err
		}
		buf.Write(pubKey)
	}
	return buf.Bytes(), nil
}

func (a *FakeAuthenticator) clientDataJSON(challenge []byte, origin, ceremonyType string) []byte {
	data, _ := json.Marshal(struct {
		Type      string `json:"type"`
		Challenge string `json:"challenge"`
		Origin    string `json:"origin"`
	}{
		Type:      ceremonyType,
		Challenge: base64.RawURLEncoding.EncodeToString(challenge),
		Origin:    origin,
	})
	return data
}
