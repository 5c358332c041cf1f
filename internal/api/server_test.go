// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package api_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/taibuivan/keygate/internal/api"
	"github.com/taibuivan/keygate/internal/platform/config"
	"github.com/taibuivan/keygate/internal/platform/constants"
	"github.com/taibuivan/keygate/internal/platform/sec"
	"github.com/taibuivan/keygate/internal/users/auth"
)

func newServer(t *testing.T, checkers ...api.Checker) http.Handler {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	signer := sec.NewTokenServiceFromKeys(key, constants.AuthIssuer)

	store := auth.NewMemoryStore()
	service := auth.NewService(store.Users, store.RefreshTokens, store.Roles, auth.Options{
		Signer: signer,
		Policy: auth.DefaultLinkingPolicy(),
	})

	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{Checkers: checkers}, zap.NewNop())
	cfg := &config.Config{ServerPort: "0", Environment: "development"}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	server := api.NewServer(ctx, cfg, zap.NewNop(), signer, api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Auth:      auth.NewHandler(service, false),
	})
	return server.Handler()
}

func get(handler http.Handler, path string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, path, nil))
	return recorder
}

/*
TestServer_Health always reports a live process.
*/
func TestServer_Health(t *testing.T) {
	recorder := get(newServer(t), "/health")

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.NotEmpty(t, recorder.Header().Get(constants.HeaderXRequestID))
}

/*
TestServer_Ready reports each dependency and degrades on any failure.
*/
func TestServer_Ready(t *testing.T) {
	healthy := api.Checker{Name: "postgres", Check: func(context.Context) error { return nil }}
	broken := api.Checker{Name: "redis", Check: func(context.Context) error { return errors.New("connection refused") }}

	tests := []struct {
		name       string
		checkers   []api.Checker
		wantStatus int
		wantReport string
	}{
		{"no_dependencies", nil, http.StatusOK, "ready"},
		{"all_healthy", []api.Checker{healthy}, http.StatusOK, "ready"},
		{"one_broken", []api.Checker{healthy, broken}, http.StatusServiceUnavailable, "degraded"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recorder := get(newServer(t, tc.checkers...), "/ready")
			assert.Equal(t, tc.wantStatus, recorder.Code)

			var envelope struct {
				Data struct {
					Status string `json:"status"`
					Checks []struct {
						Name string `json:"name"`
						OK   bool   `json:"ok"`
					} `json:"checks"`
				} `json:"data"`
			}
			require.NoError(t, json.NewDecoder(recorder.Body).Decode(&envelope))
			assert.Equal(t, tc.wantReport, envelope.Data.Status)
			assert.Len(t, envelope.Data.Checks, len(tc.checkers))
		})
	}
}

/*
TestServer_MountsAuth routes the versioned auth prefix and enforces bearer auth.
*/
func TestServer_MountsAuth(t *testing.T) {
	handler := newServer(t)

	assert.Equal(t, http.StatusUnauthorized, get(handler, "/api/v1/auth/me").Code)
	assert.Equal(t, http.StatusNotFound, get(handler, "/api/v1/comics").Code)
}
