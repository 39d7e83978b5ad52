package recommendation

import (
	"strings"

	"go.uber.org/zap"
)

// Parser turns raw coordinator replies into Responses. Parse never fails: any
// internal error is converted into the degraded Response.
//
// A Parser is safe for concurrent use.
type Parser struct {
	logger  *zap.Logger
	metrics *Metrics

	// extraction steps, replaceable in tests
	section   func(text, name string) (string, bool)
	items     func(text, name string) []string
	conflicts func(text string) []Conflict
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithLogger sets the logger used to report parse outcomes.
func WithLogger(logger *zap.Logger) ParserOption {
	return func(p *Parser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMetrics records parse outcomes in m.
func WithMetrics(m *Metrics) ParserOption {
	return func(p *Parser) {
		p.metrics = m
	}
}

// NewParser creates a Parser.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{
		logger:    zap.NewNop(),
		section:   ExtractSection,
		items:     ExtractItems,
		conflicts: ExtractConflicts,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var defaultParser = NewParser()

// Parse converts raw into a Response using a parser without logging or
// metrics.
func Parse(raw string) Response {
	return defaultParser.Parse(raw)
}

// Parse converts raw into a Response.
func (p *Parser) Parse(raw string) (resp Response) {
	outcome := OutcomeDegraded
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("failed to parse agent response",
				zap.Any("panic", r),
				zap.Int("response_length", len(raw)),
			)
			resp = degradedResponse()
			outcome = OutcomeDegraded
		}
		p.metrics.observe(outcome)
		p.logger.Debug("parsed agent response",
			zap.String("outcome", string(outcome)),
			zap.Bool("needs_clarification", resp.NeedsClarification),
			zap.Int("conflicts", len(resp.Conflicts)),
		)
	}()

	resp, outcome = p.parse(raw)
	return resp
}

func (p *Parser) parse(raw string) (Response, Outcome) {
	if question, ok := clarificationQuestion(raw); ok {
		return clarificationResponse(question), OutcomeClarification
	}

	outcome := OutcomeStructured

	// A heading with no body counts as missing; the field is never blank.
	structure, ok := p.section(raw, SectionStructure)
	if !ok || structure == "" {
		structure = StructureUndetermined
		outcome = OutcomeFallback
	}

	benefits := p.items(raw, SectionBenefits)
	if len(benefits) == 0 {
		benefits = fallbackBenefits()
		outcome = OutcomeFallback
	}
	tradeOffs := p.items(raw, SectionTradeOffs)
	if len(tradeOffs) == 0 {
		tradeOffs = fallbackTradeOffs()
		outcome = OutcomeFallback
	}
	nextSteps := p.items(raw, SectionNextSteps)
	if len(nextSteps) == 0 {
		nextSteps = fallbackNextSteps()
		outcome = OutcomeFallback
	}

	// An empty conflicts list means "no conflicts" and is never defaulted.
	conflicts := p.conflicts(raw)
	if conflicts == nil {
		conflicts = []Conflict{}
	}

	return Response{
		RecommendedStructure: structure,
		KeyBenefits:          benefits,
		TradeOffs:            tradeOffs,
		NextSteps:            nextSteps,
		Conflicts:            conflicts,
	}, outcome
}

// clarificationQuestion detects a follow-up question from the agent: the reply
// mentions "clarification" and the first line holding a '?' is the question.
//
// Any '?' triggers this, including one inside an otherwise complete
// recommendation that happens to mention clarification. The behaviour is kept
// for compatibility with existing clients.
func clarificationQuestion(raw string) (string, bool) {
	if !strings.Contains(strings.ToLower(raw), "clarification") || !strings.Contains(raw, "?") {
		return "", false
	}
	for _, line := range splitLines(strings.TrimSpace(raw)) {
		if strings.Contains(line, "?") {
			return strings.TrimSpace(line), true
		}
	}
	return "", false
}
