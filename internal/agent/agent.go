// Package agent talks to the language model that plays the coordinator of
// the advisory team.
//
// A Client sends one query per call, prefixed by the embedded coordinator
// instruction, and returns the model's markdown reply. Calls are rate limited
// on the client side and transient failures (rate limiting, server errors,
// per-attempt timeouts) are retried with exponential backoff.
//
// Two backends are available: "gemini" through google.golang.org/genai and
// "openai" (or any OpenAI-compatible endpoint) through langchaingo.
package agent

import (
	"context"
	_ "embed"
	"errors"
)

// Agent answers business formation questions.
type Agent interface {
	// Consult sends query to the model and returns its raw reply.
	Consult(ctx context.Context, query string) (string, error)

	// Name identifies the backend serving the agent.
	Name() string
}

// Team members reported by the health endpoint. The three specialists are
// reasoned about inside the coordinator instruction.
const (
	RoleTaxCPA             = "TaxCPA"
	RoleCorporateAttorney  = "CorporateAttorney"
	RoleBusinessStrategist = "BusinessStrategist"
	RoleCoordinator        = "Coordinator"
)

// Roles returns the advisory team in reporting order.
func Roles() []string {
	return []string{RoleTaxCPA, RoleCorporateAttorney, RoleBusinessStrategist, RoleCoordinator}
}

var (
	// ErrEmptyResponse is returned when the model replies with no text.
	ErrEmptyResponse = errors.New("empty response from model")

	// ErrMissingAPIKey is returned when the selected backend needs a key and
	// none is configured.
	ErrMissingAPIKey = errors.New("agent api key required")
)

//go:embed prompts/coordinator.md
var coordinatorInstruction string

// CoordinatorInstruction returns the system instruction sent with every query.
func CoordinatorInstruction() string {
	return coordinatorInstruction
}
