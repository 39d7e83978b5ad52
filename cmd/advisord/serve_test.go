package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fyrsmithlabs/advisord/internal/config"
	"github.com/fyrsmithlabs/advisord/internal/consult"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeChatCompletions serves the OpenAI chat completions API with a fixed reply.
func fakeChatCompletions(t *testing.T, reply string, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		calls.Add(1)

		var req struct {
			Messages []json.RawMessage `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) != 2 {
			http.Error(w, "expected system and user messages", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"created": time.Now().Unix(),
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": reply},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 20, "total_tokens": 30},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func TestRun_EndToEnd(t *testing.T) {
	var calls atomic.Int32
	model := fakeChatCompletions(t, sampleReply, &calls)

	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = freePort(t)
	cfg.Server.ShutdownTimeout = 2 * time.Second
	cfg.Agent.Provider = config.ProviderOpenAI
	cfg.Agent.Model = "gpt-4o-mini"
	cfg.Agent.BaseURL = model.URL
	cfg.Agent.MaxRetries = 0
	cfg.Agent.RateLimit = 100
	cfg.Security.HealthRate = 600
	cfg.Logging.Level = "error"
	require.NoError(t, cfg.Validate())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg) }()

	base := fmt.Sprintf("http://%s", cfg.Server.Addr())
	client := &http.Client{Timeout: 5 * time.Second}

	require.Eventually(t, func() bool {
		resp, err := client.Get(base + "/api/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond, "server did not become healthy")

	body, err := json.Marshal(consult.Request{Query: "We are two founders raising a seed round next quarter."})
	require.NoError(t, err)
	resp, err := client.Post(base+"/api/consult", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	var result consult.Result
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.Equal(t, "C-Corp, because you plan to raise venture capital.", result.RecommendedStructure)
	assert.Len(t, result.KeyBenefits, 2)
	assert.Empty(t, result.Conflicts)
	assert.NotEmpty(t, result.SessionID)
	assert.Equal(t, int32(1), calls.Load())

	resp, err = client.Get(base + "/api/health")
	require.NoError(t, err)
	var health struct {
		Status         string   `json:"status"`
		Agents         []string `json:"agents"`
		ActiveSessions int      `json:"active_sessions"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, 1, health.ActiveSessions)

	resp, err = client.Get(base + "/metrics")
	require.NoError(t, err)
	metrics, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `advisord_agent_requests_total{outcome="success",provider="openai"} 1`)
	assert.Contains(t, string(metrics), `advisord_parse_outcomes_total{outcome="structured"} 1`)
	assert.Contains(t, string(metrics), "advisord_sessions_created_total 1")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRun_InvalidAgent(t *testing.T) {
	cfg := config.Default()
	cfg.Agent.Provider = config.ProviderGemini
	cfg.Agent.APIKey = ""
	cfg.Logging.Level = "error"

	err := run(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize agent")
}
