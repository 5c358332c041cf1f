// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/taibuivan/keygate/internal/platform/constants"
	"github.com/taibuivan/keygate/internal/platform/sec"
	"github.com/taibuivan/keygate/internal/users/auth"
)

// # Fixtures

var (
	keyOnce sync.Once
	testKey *rsa.PrivateKey
)

func signingKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	keyOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		testKey = key
	})
	return testKey
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (clock *fakeClock) Now() time.Time {
	clock.mu.Lock()
	defer clock.mu.Unlock()
	return clock.now
}

func (clock *fakeClock) Set(now time.Time) {
	clock.mu.Lock()
	defer clock.mu.Unlock()
	clock.now = now
}

func (clock *fakeClock) Advance(step time.Duration) {
	clock.mu.Lock()
	defer clock.mu.Unlock()
	clock.now = clock.now.Add(step)
}

// recordingNotifier keeps every activation mail it was asked to send.
type recordingNotifier struct {
	mu    sync.Mutex
	codes []string
	err   error
}

func (notifier *recordingNotifier) SendActivationEmail(_ context.Context, _, _, code string) error {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	notifier.codes = append(notifier.codes, code)
	return notifier.err
}

func (notifier *recordingNotifier) last() string {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.codes) == 0 {
		return ""
	}
	return notifier.codes[len(notifier.codes)-1]
}

// stubThrottle returns a fixed decision.
type stubThrottle struct {
	allowed bool
	err     error
}

func (throttle stubThrottle) Allow(context.Context, string) (bool, error) {
	return throttle.allowed, throttle.err
}

// # Environment

type testEnv struct {
	store    *auth.MemoryStore
	service  *auth.Service
	signer   *sec.TokenService
	clock    *fakeClock
	notifier *recordingNotifier
}

func newTestEnv(t *testing.T, configure ...func(*auth.Options)) *testEnv {
	t.Helper()

	env := &testEnv{
		store:    auth.NewMemoryStore(),
		signer:   sec.NewTokenServiceFromKeys(signingKey(t), constants.AuthIssuer),
		clock:    newFakeClock(),
		notifier: &recordingNotifier{},
	}

	options := auth.Options{
		Signer:     env.signer,
		Hasher:     sec.BcryptHasher{Cost: bcrypt.MinCost},
		Notifier:   env.notifier,
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
		Policy:     auth.DefaultLinkingPolicy(),
		Logger:     zap.NewNop(),
		Clock:      env.clock.Now,
	}
	for _, apply := range configure {
		apply(&options)
	}

	env.service = auth.NewService(env.store.Users, env.store.RefreshTokens, env.store.Roles, options)
	return env
}

// activeUser registers and activates an account with password "password123".
func (env *testEnv) activeUser(t *testing.T, email string) *auth.User {
	t.Helper()
	ctx := context.Background()

	user, err := env.service.Register(ctx, auth.RegisterInput{Email: email, Password: "password123", Name: "Test"})
	require.NoError(t, err)
	require.NoError(t, env.service.Activate(ctx, user.ID, user.ActivationCode))

	activated, err := env.service.CurrentUser(ctx, user.ID)
	require.NoError(t, err)
	return activated
}

func (env *testEnv) login(t *testing.T, email string) *auth.Session {
	t.Helper()
	session, err := env.service.Login(context.Background(), auth.LoginInput{Email: email, Password: "password123"})
	require.NoError(t, err)
	return session
}

var errBackend = errors.New("backend unavailable")
