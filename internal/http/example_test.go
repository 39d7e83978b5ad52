package http_test

import (
	"context"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/advisord/internal/agent"
	"github.com/fyrsmithlabs/advisord/internal/config"
	"github.com/fyrsmithlabs/advisord/internal/consult"
	httpserver "github.com/fyrsmithlabs/advisord/internal/http"
	"github.com/fyrsmithlabs/advisord/internal/session"
	"go.uber.org/zap"
)

// ExampleServer demonstrates how to create and start the HTTP server.
func ExampleServer() {
	cfg := config.Default()
	cfg.Agent.APIKey = "example-key"

	logger := zap.NewNop()

	a, err := agent.New(context.Background(), cfg.Agent, agent.WithLogger(logger))
	if err != nil {
		panic(err)
	}
	svc := consult.NewService(a, session.NewStore(cfg.Session.Timeout))

	srvCfg := httpserver.ConfigFrom(cfg)
	srvCfg.Host = "127.0.0.1"
	srvCfg.Port = 0

	server, err := httpserver.NewServer(svc, logger, srvCfg)
	if err != nil {
		panic(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Start(ctx) }()

	// Give server time to start
	time.Sleep(100 * time.Millisecond)
	cancel()
	<-done

	fmt.Println("Server started and stopped successfully")
	// Output: Server started and stopped successfully
}
