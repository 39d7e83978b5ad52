package http

import (
	"github.com/fyrsmithlabs/advisord/internal/consult"
)

// HealthResponse is the response body for GET /api/health.
type HealthResponse struct {
	Status         string   `json:"status"`
	Agents         []string `json:"agents"`
	ActiveSessions int      `json:"active_sessions"`
}

// ConsultRequest is the request body for POST /api/consult.
type ConsultRequest = consult.Request

// ConsultResponse is the response body for POST /api/consult.
type ConsultResponse = consult.Result

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// Fixed client-facing error messages. Causes are logged, never returned.
const (
	msgAgentFailed    = "Agent execution failed. Please try again."
	msgUnexpected     = "An unexpected error occurred. Please try again later."
	msgInvalidBody    = "invalid request body"
	msgRateLimited    = "Rate limit exceeded. Please try again later."
	msgSessionMissing = "session not found"
)
