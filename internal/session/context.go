package session

import (
	"strings"
	"sync"
	"time"
)

// Context is the conversation state of one session: every query the user
// submitted and the answers they gave to clarification questions.
//
// Contexts are owned by a Store. Callers may use one for the duration of a
// request but must not hold on to it afterwards; the Store may evict it once
// it has been idle longer than the timeout.
type Context struct {
	id  string
	now func() time.Time

	mu          sync.RWMutex
	queries     []string
	questions   []string // clarification questions in first-asked order
	answers     map[string]string
	createdAt   time.Time
	lastUpdated time.Time
}

// Clarification is a question asked by the agent and the user's answer.
type Clarification struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

func newContext(id string, now func() time.Time) *Context {
	t := now()
	return &Context{
		id:          id,
		now:         now,
		answers:     make(map[string]string),
		createdAt:   t,
		lastUpdated: t,
	}
}

// ID returns the session identifier.
func (c *Context) ID() string {
	return c.id
}

// AddQuery appends query to the history and marks the session active.
func (c *Context) AddQuery(query string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queries = append(c.queries, query)
	c.touch()
}

// AddClarification records answer for question. Answering the same question
// again replaces the earlier answer but keeps its position.
func (c *Context) AddClarification(question, answer string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.answers[question]; !exists {
		c.questions = append(c.questions, question)
	}
	c.answers[question] = answer
	c.touch()
}

// touch must be called with mu held.
func (c *Context) touch() {
	t := c.now()
	if t.Before(c.createdAt) {
		t = c.createdAt
	}
	c.lastUpdated = t
}

// QueryHistory returns a copy of the submitted queries, oldest first.
func (c *Context) QueryHistory() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.queries...)
}

// Clarifications returns the recorded clarifications in the order the
// questions were first answered.
func (c *Context) Clarifications() []Clarification {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Clarification, 0, len(c.questions))
	for _, q := range c.questions {
		out = append(out, Clarification{Question: q, Answer: c.answers[q]})
	}
	return out
}

// HasClarifications reports whether any clarification has been recorded.
func (c *Context) HasClarifications() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.questions) > 0
}

// CreatedAt returns when the session was created.
func (c *Context) CreatedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.createdAt
}

// LastUpdated returns when the session was last modified.
func (c *Context) LastUpdated() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastUpdated
}

// FullContext renders the first query and every clarification for inclusion
// in a follow-up query:
//
//	Original Query: <first query>
//
//	Clarifications:
//	Q: <question>
//	A: <answer>
func (c *Context) FullContext() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var parts []string
	if len(c.queries) > 0 {
		parts = append(parts, "Original Query: "+c.queries[0])
	}
	if len(c.questions) > 0 {
		parts = append(parts, "\nClarifications:")
		for _, q := range c.questions {
			parts = append(parts, "Q: "+q, "A: "+c.answers[q])
		}
	}
	return strings.Join(parts, "\n")
}

// Snapshot is the diagnostic export of a session.
type Snapshot struct {
	SessionID      string            `json:"sessionId"`
	QueryHistory   []string          `json:"queryHistory"`
	Clarifications map[string]string `json:"clarifications"`
	CreatedAt      string            `json:"createdAt"`
	LastUpdated    string            `json:"lastUpdated"`
}

// Snapshot returns a copy of the session state with RFC 3339 timestamps.
func (c *Context) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	clarifications := make(map[string]string, len(c.answers))
	for q, a := range c.answers {
		clarifications[q] = a
	}
	queries := append([]string{}, c.queries...)

	return Snapshot{
		SessionID:      c.id,
		QueryHistory:   queries,
		Clarifications: clarifications,
		CreatedAt:      c.createdAt.UTC().Format(time.RFC3339Nano),
		LastUpdated:    c.lastUpdated.UTC().Format(time.RFC3339Nano),
	}
}
