// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package api contains the health check handlers for liveness and readiness probes.
package api

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/taibuivan/keygate/internal/platform/constants"
	"github.com/taibuivan/keygate/internal/platform/respond"
)

const readinessTimeout = 3 * time.Second

// Checker probes one backing dependency for the /ready endpoint.
type Checker struct {
	// Name appears in the readiness report, e.g. "postgres".
	Name string

	// Check returns nil when the dependency is reachable.
	Check func(context context.Context) error
}

// HealthDependencies holds the injectable dependency checkers for the /ready endpoint.
//
// Only configured backends are listed; a memory-backed deployment has none.
type HealthDependencies struct {
	Checkers []Checker
}

type healthHandler struct {
	dependencies HealthDependencies
	logger       *zap.Logger
}

// NewHealthHandlers creates the /health and /ready http.HandlerFuncs.
func NewHealthHandlers(deps HealthDependencies, logger *zap.Logger) (liveness, readiness http.HandlerFunc) {
	handler := &healthHandler{dependencies: deps, logger: logger}
	return handler.liveness, handler.readiness
}

// liveness handles GET /health (Liveness probe).
func (handler *healthHandler) liveness(writer http.ResponseWriter, _ *http.Request) {
	respond.OK(writer, map[string]string{constants.FieldStatus: "ok"})
}

type checkResult struct {
	Name  string `json:"name"`
	IsOK  bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// readiness handles GET /ready (Readiness probe).
func (handler *healthHandler) readiness(writer http.ResponseWriter, request *http.Request) {
	context, cancel := context.WithTimeout(request.Context(), readinessTimeout)
	defer cancel()

	results := make([]checkResult, 0, len(handler.dependencies.Checkers))
	isSystemReady := true

	for _, checker := range handler.dependencies.Checkers {
		result := checkResult{Name: checker.Name, IsOK: true}
		if err := checker.Check(context); err != nil {
			result.IsOK = false
			result.Error = err.Error()
			isSystemReady = false
			handler.logger.Error("readiness_check_failed", zap.String("dependency", checker.Name), zap.Error(err))
		}
		results = append(results, result)
	}

	responseStatus := "ready"
	httpStatus := http.StatusOK
	if !isSystemReady {
		responseStatus = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	respond.JSON(writer, httpStatus, respond.SuccessEnvelope{Data: map[string]any{
		constants.FieldStatus: responseStatus,
		constants.FieldChecks: results,
	}})
}
