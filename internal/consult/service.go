// Package consult runs one advisory consultation: it validates the query,
// folds it into the caller's session, asks the agent and parses the reply.
package consult

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fyrsmithlabs/advisord/internal/agent"
	"github.com/fyrsmithlabs/advisord/internal/logging"
	"github.com/fyrsmithlabs/advisord/internal/recommendation"
	"github.com/fyrsmithlabs/advisord/internal/session"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Query length bounds, counted in characters after trimming.
const (
	MinQueryLength = 10
	MaxQueryLength = 5000
)

var (
	// ErrInvalidQuery is returned when a query fails validation.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrAgentFailed is returned when the agent could not produce a reply.
	ErrAgentFailed = errors.New("agent execution failed")
)

const instrumentationName = "github.com/fyrsmithlabs/advisord/internal/consult"

// Request is a consultation request.
type Request struct {
	Query   string          `json:"query"`
	Context *RequestContext `json:"context,omitempty"`
}

// RequestContext carries the optional follow-up state of a request.
type RequestContext struct {
	SessionID           string `json:"sessionId,omitempty"`
	ClarificationAnswer string `json:"clarificationAnswer,omitempty"`
}

func (r Request) sessionID() string {
	if r.Context == nil {
		return ""
	}
	return r.Context.SessionID
}

func (r Request) clarificationAnswer() (string, bool) {
	if r.Context == nil || r.Context.ClarificationAnswer == "" {
		return "", false
	}
	return r.Context.ClarificationAnswer, true
}

// Result is the parsed recommendation plus the session it belongs to.
type Result struct {
	recommendation.Response
	SessionID string `json:"sessionId"`
}

// Service runs consultations against an agent and a session store.
//
// A Service is safe for concurrent use.
type Service struct {
	agent  agent.Agent
	store  *session.Store
	parser *recommendation.Parser
	tracer trace.Tracer
	logger *logging.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithParser sets the reply parser.
func WithParser(p *recommendation.Parser) Option {
	return func(s *Service) {
		if p != nil {
			s.parser = p
		}
	}
}

// WithTracer sets the tracer for consultation spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// NewService creates a Service.
func NewService(a agent.Agent, store *session.Store, opts ...Option) *Service {
	s := &Service{
		agent:  a,
		store:  store,
		parser: recommendation.NewParser(),
		tracer: otel.Tracer(instrumentationName),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ValidateQuery trims query and checks its length. The returned error wraps
// ErrInvalidQuery.
func ValidateQuery(query string) (string, error) {
	trimmed := strings.TrimSpace(query)
	n := utf8.RuneCountInString(trimmed)
	switch {
	case n == 0:
		return "", fmt.Errorf("%w: query cannot be empty", ErrInvalidQuery)
	case n < MinQueryLength:
		return "", fmt.Errorf("%w: query must be at least %d characters", ErrInvalidQuery, MinQueryLength)
	case n > MaxQueryLength:
		return "", fmt.Errorf("%w: query must be at most %d characters", ErrInvalidQuery, MaxQueryLength)
	}
	return trimmed, nil
}

// Consult answers req.
//
// The query is recorded in the session named by the request, or in a new
// session when that one is unknown or expired. Once the session holds
// clarifications the agent receives the whole conversation followed by the
// current query. When the agent asks for clarification and the request
// carried an answer, the pair is stored for the next turn.
func (s *Service) Consult(ctx context.Context, req Request) (Result, error) {
	query, err := ValidateQuery(req.Query)
	if err != nil {
		return Result{}, err
	}

	ctx, span := s.tracer.Start(ctx, "consult.Consult")
	defer span.End()

	sess := s.store.GetOrCreate(req.sessionID())
	ctx = logging.WithSessionID(ctx, sess.ID())
	span.SetAttributes(
		attribute.String("session.id", sess.ID()),
		attribute.Bool("session.resumed", sess.ID() == req.sessionID()),
		attribute.Int("query.length", utf8.RuneCountInString(query)),
	)

	sess.AddQuery(query)

	prompt := query
	if sess.HasClarifications() {
		prompt = sess.FullContext() + "\n\nCurrent Query: " + query
	}

	s.logger.Info(ctx, "consulting agent",
		zap.String("agent", s.agent.Name()),
		zap.Int("prompt_length", len(prompt)),
	)

	start := time.Now()
	raw, err := s.agent.Consult(ctx, prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "agent failed")
		s.logger.Error(ctx, "agent execution failed", zap.Error(err))
		return Result{}, fmt.Errorf("%w: %w", ErrAgentFailed, err)
	}

	resp := s.parser.Parse(raw)
	if resp.NeedsClarification {
		if answer, ok := req.clarificationAnswer(); ok {
			sess.AddClarification(resp.Question(), answer)
		}
	}

	span.SetAttributes(
		attribute.Bool("response.needs_clarification", resp.NeedsClarification),
		attribute.Int("response.conflicts", len(resp.Conflicts)),
	)
	s.logger.Info(ctx, "consultation completed",
		zap.Duration("duration", time.Since(start)),
		zap.Int("response_length", len(raw)),
		zap.Bool("needs_clarification", resp.NeedsClarification),
	)

	return Result{Response: resp, SessionID: sess.ID()}, nil
}

// ActiveSessions evicts expired sessions and returns how many remain.
func (s *Service) ActiveSessions() int {
	s.store.CleanupExpired()
	return s.store.Count()
}

// Session returns a snapshot of a live session.
func (s *Service) Session(id string) (session.Snapshot, bool) {
	sess, ok := s.store.Get(id)
	if !ok {
		return session.Snapshot{}, false
	}
	return sess.Snapshot(), true
}
