// Package testdata provides utilities for generating sample metrics data
// to test Grafana dashboards without using real production data.
//
// Session and parse metrics come from a real session store and parser fed
// with synthetic traffic; agent metrics are recorded directly since no model
// backend is called.
package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fyrsmithlabs/advisord/internal/agent"
	"github.com/fyrsmithlabs/advisord/internal/recommendation"
	"github.com/fyrsmithlabs/advisord/internal/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Sample agent replies, one per parse outcome.
var replies = []string{
	"## RECOMMENDED STRUCTURE\nS-Corp\n\n## KEY BENEFITS\n- Lower self-employment tax\n\n## TRADE-OFFS\n- Payroll required\n\n## CONFLICTS IDENTIFIED\nNo significant conflicts identified between tax, legal, and strategic perspectives.\n\n## NEXT STEPS\n1. File Form 2553",
	"## RECOMMENDED STRUCTURE\nSingle-member LLC\n\n## KEY BENEFITS\n- Liability protection",
	"I need clarification first.\nWill you take outside investment?",
	"Consider an LLC for now.",
}

var providers = []string{"gemini", "openai"}

// simClock lets the generator age sessions past the idle timeout.
type simClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *simClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *simClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type generator struct {
	clock   *simClock
	store   *session.Store
	parser  *recommendation.Parser
	agent   *agent.Metrics
	live    []string
	timeout time.Duration
}

func newGenerator(reg prometheus.Registerer) *generator {
	clock := &simClock{now: time.Now()}
	timeout := 30 * time.Minute
	return &generator{
		clock:   clock,
		store:   session.NewStore(timeout, session.WithClock(clock.Now), session.WithMetrics(session.NewMetrics(reg))),
		parser:  recommendation.NewParser(recommendation.WithMetrics(recommendation.NewMetrics(reg))),
		agent:   agent.NewMetrics(reg),
		timeout: timeout,
	}
}

// consultation simulates one request: resume or create a session, call the
// agent and parse its reply.
func (g *generator) consultation() {
	var id string
	if len(g.live) > 0 && rand.Float64() > 0.4 {
		id = g.live[rand.Intn(len(g.live))]
	}
	sess := g.store.GetOrCreate(id)
	if sess.ID() != id {
		g.live = append(g.live, sess.ID())
	}
	sess.AddQuery("What structure should my consulting business use?")

	provider := randomChoice(providers)
	outcome := "success"
	if rand.Float64() < 0.05 {
		outcome = "error"
	}
	attempts := 1
	if rand.Float64() < 0.15 {
		attempts += rand.Intn(3) + 1
		g.agent.Retries.WithLabelValues(provider).Add(float64(attempts - 1))
	}
	g.agent.Requests.WithLabelValues(provider, outcome).Inc()
	g.agent.Duration.WithLabelValues(provider).Observe(float64(attempts) * (2 + rand.Float64()*18))

	if outcome == "success" {
		g.parser.Parse(randomChoice(replies))
	}
}

// idle moves the clock forward and evicts sessions that aged out.
func (g *generator) idle(d time.Duration) {
	g.clock.Advance(d)
	if g.store.CleanupExpired() > 0 {
		g.live = g.live[:0]
	}
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "9090"
	}

	reg := prometheus.NewRegistry()
	gen := newGenerator(reg)

	// Generate initial sample data
	for i := 0; i < 200; i++ {
		gen.consultation()
		if i%50 == 49 {
			gen.idle(gen.timeout + time.Minute)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	var mu sync.Mutex
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				mu.Lock()
				for n := rand.Intn(5); n > 0; n-- {
					gen.consultation()
				}
				gen.idle(time.Duration(rand.Intn(10)) * time.Minute)
				mu.Unlock()
			}
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		cancel()
		_ = server.Shutdown(context.Background())
	}()

	fmt.Printf("Sample metrics server running on http://localhost:%s/metrics\n", port)
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println("\nTo use with Prometheus, add this to prometheus.yml:")
	fmt.Printf("  - job_name: 'advisord-test'\n    static_configs:\n      - targets: ['localhost:%s']\n", port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal(err)
	}
}

func randomChoice(choices []string) string {
	return choices[rand.Intn(len(choices))]
}
