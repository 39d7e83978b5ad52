// Package recommendation converts the coordinator agent's markdown reply into
// a structured Response.
package recommendation

// Section headings the coordinator is instructed to emit. Changing any of
// these breaks the contract with the coordinator prompt.
const (
	SectionStructure = "RECOMMENDED STRUCTURE"
	SectionBenefits  = "KEY BENEFITS"
	SectionTradeOffs = "TRADE-OFFS"
	SectionNextSteps = "NEXT STEPS"
	SectionConflicts = "CONFLICTS IDENTIFIED"
)

// Sentinel structure labels.
const (
	StructureUndetermined = "Unable to determine"
	StructureUnparsable   = "Unable to parse recommendation"
)

// noConflictsMarker is matched against the lowercased conflicts body.
const noConflictsMarker = "no significant conflicts"

const analysisInProgress = "Analysis in progress - please review full response"

// Placeholder lists substituted when a section yields no items.
func fallbackBenefits() []string  { return []string{analysisInProgress} }
func fallbackTradeOffs() []string { return []string{analysisInProgress} }
func fallbackNextSteps() []string {
	return []string{
		"Consult with professional advisors",
		"Review full analysis",
		"Make informed decision",
	}
}

// Conflict is a disagreement between specialist perspectives and how the
// recommendation resolves it.
type Conflict struct {
	Area        string `json:"area"`
	Description string `json:"description"`
	Resolution  string `json:"resolution"`
}

// Response is the structured form of a coordinator reply.
//
// When NeedsClarification is true the content lists are empty and
// ClarificationQuestion is set. Otherwise KeyBenefits, TradeOffs and NextSteps
// are never empty; Conflicts may be.
type Response struct {
	RecommendedStructure  string     `json:"recommendedStructure"`
	KeyBenefits           []string   `json:"keyBenefits"`
	TradeOffs             []string   `json:"tradeOffs"`
	NextSteps             []string   `json:"nextSteps"`
	Conflicts             []Conflict `json:"conflicts"`
	NeedsClarification    bool       `json:"needsClarification"`
	ClarificationQuestion *string    `json:"clarificationQuestion"`
}

// Question returns the clarification question, or "" when none was asked.
func (r Response) Question() string {
	if r.ClarificationQuestion == nil {
		return ""
	}
	return *r.ClarificationQuestion
}

// Outcome classifies how a reply was parsed.
type Outcome string

const (
	// OutcomeClarification means the agent asked a follow-up question.
	OutcomeClarification Outcome = "clarification"
	// OutcomeStructured means every content section was recovered.
	OutcomeStructured Outcome = "structured"
	// OutcomeFallback means at least one placeholder was substituted.
	OutcomeFallback Outcome = "fallback"
	// OutcomeDegraded means parsing failed and the fixed error response was returned.
	OutcomeDegraded Outcome = "degraded"
)

func clarificationResponse(question string) Response {
	return Response{
		KeyBenefits:           []string{},
		TradeOffs:             []string{},
		NextSteps:             []string{},
		Conflicts:             []Conflict{},
		NeedsClarification:    true,
		ClarificationQuestion: &question,
	}
}

func degradedResponse() Response {
	return Response{
		RecommendedStructure: StructureUnparsable,
		KeyBenefits:          []string{"Please review the full response for details"},
		TradeOffs:            []string{"Parsing error occurred"},
		NextSteps:            []string{"Contact support if this issue persists"},
		Conflicts:            []Conflict{},
	}
}
