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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOrigin = "https://example.com"

func validTestConfig() *Config {
	return &Config{
		RPID:          "example.com",
		RPDisplayName: "Example",
		RPOrigins:     []string{testOrigin},
	}
}

// plainHasher avoids paying argon2 cost in every ceremony test. The hashing
// contract itself is covered by the secret package's own tests.
type plainHasher struct{}

func (plainHasher) Hash(secret string) (string, error) {
	return "hashed:" + secret, nil
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Config:          validTestConfig(),
		UserStore:       NewMemoryUserStore(),
		ChallengeStore:  NewMemoryChallengeStore(),
		CredentialStore: NewMemoryCredentialStore(),
		SecretHasher:    plainHasher{},
	})
	require.NoError(t, err)
	return svc
}

// register drives a full registration ceremony for the user with the given
// fake authenticator.
func register(t *testing.T, svc *Service, userID []byte, auth *FakeAuthenticator) {
	t.Helper()
	ctx := context.Background()

	options, err := svc.BeginRegistration(ctx, userID)
	require.NoError(t, err)

	response, err := auth.Attest(options.Response.Challenge, testOrigin)
	require.NoError(t, err)

	require.NoError(t, svc.FinishRegistration(ctx, userID, response))
}

// login drives a full authentication ceremony and returns the authenticated
// user id.
func login(t *testing.T, svc *Service, userID []byte, auth *FakeAuthenticator) []byte {
	t.Helper()
	ctx := context.Background()

	options, err := svc.BeginLogin(ctx, userID)
	require.NoError(t, err)

	response, err := auth.Assert(options.Response.Challenge, userID, testOrigin)
	require.NoError(t, err)

	authenticated, err := svc.FinishLogin(ctx, userID, response)
	require.NoError(t, err)
	return authenticated
}

func TestNewService(t *testing.T) {
	tests := []struct {
		name    string
		params  ServiceParams
		wantErr string
	}{
		{
			name:    "nil config",
			params:  ServiceParams{},
			wantErr: "config is required",
		},
		{
			name: "nil user store",
			params: ServiceParams{
				Config: validTestConfig(),
			},
			wantErr: "user store is required",
		},
		{
			name: "nil challenge store",
			params: ServiceParams{
				Config:    validTestConfig(),
				UserStore: NewMemoryUserStore(),
			},
			wantErr: "challenge store is required",
		},
		{
			name: "nil credential store",
			params: ServiceParams{
				Config:         validTestConfig(),
				UserStore:      NewMemoryUserStore(),
				ChallengeStore: NewMemoryChallengeStore(),
			},
			wantErr: "credential store is required",
		},
		{
			name: "nil secret hasher",
			params: ServiceParams{
				Config:          validTestConfig(),
				UserStore:       NewMemoryUserStore(),
				ChallengeStore:  NewMemoryChallengeStore(),
				CredentialStore: NewMemoryCredentialStore(),
			},
			wantErr: "secret hasher is required",
		},
		{
			name: "invalid config",
			params: ServiceParams{
				Config:          &Config{},
				UserStore:       NewMemoryUserStore(),
				ChallengeStore:  NewMemoryChallengeStore(),
				CredentialStore: NewMemoryCredentialStore(),
				SecretHasher:    plainHasher{},
			},
			wantErr: "invalid config",
		},
		{
			name: "valid params",
			params: ServiceParams{
				Config:          validTestConfig(),
				UserStore:       NewMemoryUserStore(),
				ChallengeStore:  NewMemoryChallengeStore(),
				CredentialStore: NewMemoryCredentialStore(),
				SecretHasher:    plainHasher{},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewService(tt.params)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, svc)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, svc)
				assert.NotNil(t, svc.Config())
			}
		})
	}
}

func TestService_Enroll(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	userID, err := svc.Enroll(ctx, "alice", "correct horse battery staple")
	require.NoError(t, err)
	require.NotEmpty(t, userID)

	user, err := svc.GetUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username())
	assert.Equal(t, "hashed:correct horse battery staple", user.SecretHash())
	assert.Empty(t, user.Credentials())

	// Enrollment alone does not register a credential.
	registered, err := svc.IsRegistered(ctx, userID)
	require.NoError(t, err)
	assert.False(t, registered)
}

func TestService_Enroll_EmptyUsername(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Enroll(context.Background(), "", "secret")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestService_Enroll_DuplicateUsername(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	first, err := svc.Enroll(ctx, "alice", "s1")
	require.NoError(t, err)
	second, err := svc.Enroll(ctx, "alice", "s2")
	require.NoError(t, err)

	// Usernames are labels, not keys; each enrollment is a distinct user.
	assert.NotEqual(t, first, second)
}

func TestService_BeginRegistration(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	userID, err := svc.Enroll(ctx, "alice", "secret")
	require.NoError(t, err)

	options, err := svc.BeginRegistration(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, options)

	assert.Equal(t, "example.com", options.Response.RelyingParty.ID)
	assert.Equal(t, "alice", options.Response.User.Name)
	assert.NotEmpty(t, options.Response.Challenge)
}

func TestService_BeginRegistration_UnknownUser(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.BeginRegistration(context.Background(), []byte{1, 2, 3})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestService_RegistrationCeremony(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	userID, err := svc.Enroll(ctx, "alice", "secret")
	require.NoError(t, err)

	auth, err := NewFakeAuthenticator("example.com")
	require.NoError(t, err)
	register(t, svc, userID, auth)

	registered, err := svc.IsRegistered(ctx, userID)
	require.NoError(t, err)
	assert.True(t, registered)

	creds, err := svc.Credentials(ctx, userID)
	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.Equal(t, auth.CredentialID, creds[0].ID)
	assert.Equal(t, userID, creds[0].UserID)
	assert.Equal(t, "none", creds[0].AttestationType)
}

func TestService_FinishRegistration_NoChallenge(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	userID, err := svc.Enroll(ctx, "alice", "secret")
	require.NoError(t, err)

	auth, err := NewFakeAuthenticator("example.com")
	require.NoError(t, err)
	response, err := auth.Attest([]byte("whatever"), testOrigin)
	require.NoError(t, err)

	// Finish without a begin: no challenge is live for the slot.
	err = svc.FinishRegistration(ctx, userID, response)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrChallengeNotFound)
}

func TestService_FinishRegistration_ConsumesChallengeOnFailure(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	userID, err := svc.Enroll(ctx, "alice", "secret")
	require.NoError(t, err)

	auth, err := NewFakeAuthenticator("example.com")
	require.NoError(t, err)

	options, err := svc.BeginRegistration(ctx, userID)
	require.NoError(t, err)

	// Attest over the wrong challenge bytes.
	bad, err := auth.Attest([]byte("not-the-issued-challenge"), testOrigin)
	require.NoError(t, err)

	err = svc.FinishRegistration(ctx, userID, bad)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrVerificationFailed)

	// The failed attempt consumed the challenge; even the correct response
	// is now rejected.
	good, err := auth.Attest(options.Response.Challenge, testOrigin)
	require.NoError(t, err)

	err = svc.FinishRegistration(ctx, userID, good)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrChallengeNotFound)
}

func TestService_FinishRegistration_NilResponse(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	userID, err := svc.Enroll(ctx, "alice", "secret")
	require.NoError(t, err)

	_, err = svc.BeginRegistration(ctx, userID)
	require.NoError(t, err)

	err = svc.FinishRegistration(ctx, userID, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	// Even a malformed attempt consumes the issuance.
	_, err = svc.challenges.Take(ctx, userID, CeremonyRegistration)
	assert.ErrorIs(t, err, ErrChallengeNotFound)
}

func TestService_BeginRegistration_ReplacesChallenge(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	userID, err := svc.Enroll(ctx, "alice", "secret")
	require.NoError(t, err)

	auth, err := NewFakeAuthenticator("example.com")
	require.NoError(t, err)

	first, err := svc.BeginRegistration(ctx, userID)
	require.NoError(t, err)
	_, err = svc.BeginRegistration(ctx, userID)
	require.NoError(t, err)

	// A response minted over the superseded challenge no longer verifies.
	response, err := auth.Attest(first.Response.Challenge, testOrigin)
	require.NoError(t, err)

	err = svc.FinishRegistration(ctx, userID, response)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrVerificationFailed)
}

func TestService_ReRegistrationReplacesCredential(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	userID, err := svc.Enroll(ctx, "alice", "secret")
	require.NoError(t, err)

	oldAuth, err := NewFakeAuthenticator("example.com")
	require.NoError(t, err)
	register(t, svc, userID, oldAuth)

	newAuth, err := NewFakeAuthenticator("example.com")
	require.NoError(t, err)
	register(t, svc, userID, newAuth)

	// Last write wins: exactly one credential, the new authenticator's.
	creds, err := svc.Credentials(ctx, userID)
	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.Equal(t, newAuth.CredentialID, creds[0].ID)

	// The new credential logs in; the replaced one cannot.
	login(t, svc, userID, newAuth)

	options, err := svc.BeginLogin(ctx, userID)
	require.NoError(t, err)
	response, err := oldAuth.Assert(options.Response.Challenge, userID, testOrigin)
	require.NoError(t, err)

	_, err = svc.FinishLogin(ctx, userID, response)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrVerificationFailed)
}

func TestService_LoginCeremony(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	userID, err := svc.Enroll(ctx, "alice", "secret")
	require.NoError(t, err)

	auth, err := NewFakeAuthenticator("example.com")
	require.NoError(t, err)
	register(t, svc, userID, auth)

	authenticated := login(t, svc, userID, auth)
	assert.Equal(t, userID, authenticated)

	// The stored sign counter tracks the authenticator.
	creds, err := svc.Credentials(ctx, userID)
	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.Equal(t, auth.SignCount, creds[0].Authenticator.SignCount)
	assert.False(t, creds[0].LastUsedAt.IsZero())
}

func TestService_LoginCeremony_Repeated(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	userID, err := svc.Enroll(ctx, "alice", "secret")
	require.NoError(t, err)

	auth, err := NewFakeAuthenticator("example.com")
	require.NoError(t, err)
	register(t, svc, userID, auth)

	for i := 0; i < 3; i++ {
		login(t, svc, userID, auth)
	}

	creds, err := svc.Credentials(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), creds[0].Authenticator.SignCount)
}

func TestService_BeginLogin_UnknownUser(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.BeginLogin(context.Background(), []byte{1, 2, 3})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestService_BeginLogin_NoCredentials(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	userID, err := svc.Enroll(ctx, "alice", "secret")
	require.NoError(t, err)

	// Enrolled but never registered: distinct failure from unknown user.
	_, err = svc.BeginLogin(ctx, userID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoCredentials)
	assert.NotErrorIs(t, err, ErrUserNotFound)
}

func TestService_BeginLogin_AllowUnknownUserLogin(t *testing.T) {
	ctx := context.Background()

	cfg := validTestConfig()
	cfg.AllowUnknownUserLogin = true
	svc, err := NewService(ServiceParams{
		Config:          cfg,
		UserStore:       NewMemoryUserStore(),
		ChallengeStore:  NewMemoryChallengeStore(),
		CredentialStore: NewMemoryCredentialStore(),
		SecretHasher:    plainHasher{},
	})
	require.NoError(t, err)

	// Unknown users receive discoverable-credential options instead of an
	// enumeration-friendly error.
	options, err := svc.BeginLogin(ctx, []byte{9, 9, 9})
	require.NoError(t, err)
	require.NotNil(t, options)
	assert.Empty(t, options.Response.AllowedCredentials)
	assert.NotEmpty(t, options.Response.Challenge)
}

func TestService_FinishLogin_Replay(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	userID, err := svc.Enroll(ctx, "alice", "secret")
	require.NoError(t, err)

	auth, err := NewFakeAuthenticator("example.com")
	require.NoError(t, err)
	register(t, svc, userID, auth)

	options, err := svc.BeginLogin(ctx, userID)
	require.NoError(t, err)

	response, err := auth.Assert(options.Response.Challenge, userID, testOrigin)
	require.NoError(t, err)

	_, err = svc.FinishLogin(ctx, userID, response)
	require.NoError(t, err)

	// Replaying the captured assertion fails: the issuance was consumed.
	_, err = svc.FinishLogin(ctx, userID, response)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrChallengeNotFound)
}

func TestService_FinishLogin_ConsumesChallengeOnFailure(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	userID, err := svc.Enroll(ctx, "alice", "secret")
	require.NoError(t, err)

	auth, err := NewFakeAuthenticator("example.com")
	require.NoError(t, err)
	register(t, svc, userID, auth)

	options, err := svc.BeginLogin(ctx, userID)
	require.NoError(t, err)

	bad, err := auth.Assert([]byte("forged-challenge"), userID, testOrigin)
	require.NoError(t, err)

	_, err = svc.FinishLogin(ctx, userID, bad)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrVerificationFailed)

	// The correct response is dead too; a fresh BeginLogin is required.
	good, err := auth.Assert(options.Response.Challenge, userID, testOrigin)
	require.NoError(t, err)

	_, err = svc.FinishLogin(ctx, userID, good)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrChallengeNotFound)
}

func TestService_FinishLogin_CrossUserReplay(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	aliceID, err := svc.Enroll(ctx, "alice", "secret")
	require.NoError(t, err)
	bobID, err := svc.Enroll(ctx, "bob", "secret")
	require.NoError(t, err)

	aliceAuth, err := NewFakeAuthenticator("example.com")
	require.NoError(t, err)
	register(t, svc, aliceID, aliceAuth)

	bobAuth, err := NewFakeAuthenticator("example.com")
	require.NoError(t, err)
	register(t, svc, bobID, bobAuth)

	aliceOptions, err := svc.BeginLogin(ctx, aliceID)
	require.NoError(t, err)
	_, err = svc.BeginLogin(ctx, bobID)
	require.NoError(t, err)

	// An assertion minted for alice's ceremony must not authenticate bob,
	// even though bob has a live challenge of his own.
	response, err := aliceAuth.Assert(aliceOptions.Response.Challenge, aliceID, testOrigin)
	require.NoError(t, err)

	_, err = svc.FinishLogin(ctx, bobID, response)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrVerificationFailed)
}

func TestService_FinishLogin_NoCredentials(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	userID, err := svc.Enroll(ctx, "alice", "secret")
	require.NoError(t, err)

	_, err = svc.FinishLogin(ctx, userID, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestService_FinishLogin_ExpiredChallenge(t *testing.T) {
	ctx := context.Background()

	svc, err := NewService(ServiceParams{
		Config:          validTestConfig(),
		UserStore:       NewMemoryUserStore(),
		ChallengeStore:  NewMemoryChallengeStoreWithTTL(10 * time.Millisecond),
		CredentialStore: NewMemoryCredentialStore(),
		SecretHasher:    plainHasher{},
	})
	require.NoError(t, err)

	userID, err := svc.Enroll(ctx, "alice", "secret")
	require.NoError(t, err)

	auth, err := NewFakeAuthenticator("example.com")
	require.NoError(t, err)
	register(t, svc, userID, auth)

	options, err := svc.BeginLogin(ctx, userID)
	require.NoError(t, err)

	response, err := auth.Assert(options.Response.Challenge, userID, testOrigin)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	_, err = svc.FinishLogin(ctx, userID, response)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrChallengeExpired)

	// Expiry consumes the slot like any other Take.
	_, err = svc.FinishLogin(ctx, userID, response)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrChallengeNotFound)
}

func TestService_FinishLogin_CloneDetection(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	userID, err := svc.Enroll(ctx, "alice", "secret")
	require.NoError(t, err)

	auth, err := NewFakeAuthenticator("example.com")
	require.NoError(t, err)
	register(t, svc, userID, auth)

	// Establish a nonzero stored counter.
	login(t, svc, userID, auth)

	// Roll the authenticator's counter back, as a cloned device would report.
	auth.SignCount = 0

	options, err := svc.BeginLogin(ctx, userID)
	require.NoError(t, err)

	response, err := auth.Assert(options.Response.Challenge, userID, testOrigin)
	require.NoError(t, err)

	_, err = svc.FinishLogin(ctx, userID, response)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrClonedAuthenticator)
}

func TestService_FinishLogin_WrongOrigin(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	userID, err := svc.Enroll(ctx, "alice", "secret")
	require.NoError(t, err)

	auth, err := NewFakeAuthenticator("example.com")
	require.NoError(t, err)
	register(t, svc, userID, auth)

	options, err := svc.BeginLogin(ctx, userID)
	require.NoError(t, err)

	response, err := auth.Assert(options.Response.Challenge, userID, "https://evil.example.net")
	require.NoError(t, err)

	_, err = svc.FinishLogin(ctx, userID, response)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrVerificationFailed)
}

func TestService_IsRegistered(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	registered, err := svc.IsRegistered(ctx, nil)
	require.NoError(t, err)
	assert.False(t, registered)

	registered, err = svc.IsRegistered(ctx, []byte{1, 2, 3})
	require.NoError(t, err)
	assert.False(t, registered)
}

func TestService_GetUser(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.GetUser(ctx, []byte{1, 2, 3})
	require.Error(t, err)
	assert.True(t, IsUserNotFound(err))

	userID, err := svc.Enroll(ctx, "alice", "secret")
	require.NoError(t, err)

	user, err := svc.GetUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, userID, user.WebAuthnID())
}

func TestService_Credentials_Empty(t *testing.T) {
	svc := newTestService(t)

	creds, err := svc.Credentials(context.Background(), []byte{1, 2, 3})
	require.NoError(t, err)
	assert.Empty(t, creds)
}

func TestService_NotConfigured(t *testing.T) {
	svc := &Service{configured: false}
	ctx := context.Background()

	_, err := svc.Enroll(ctx, "alice", "secret")
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = svc.BeginRegistration(ctx, []byte{1})
	assert.ErrorIs(t, err, ErrNotConfigured)

	err = svc.FinishRegistration(ctx, []byte{1}, nil)
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = svc.BeginLogin(ctx, []byte{1})
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = svc.FinishLogin(ctx, []byte{1}, nil)
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = svc.IsRegistered(ctx, []byte{1})
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = svc.GetUser(ctx, []byte{1})
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = svc.Credentials(ctx, []byte{1})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestService_Config(t *testing.T) {
	svc := newTestService(t)
	cfg := svc.Config()
	require.NotNil(t, cfg)
	assert.Equal(t, "example.com", cfg.RPID)
}
