// Package cmd wires the application layers together and runs the agent: the
// check scheduler plus the HTTP surface.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	httpserver "github.com/lagscout/lagscout/internal/adapters/http"
	"github.com/lagscout/lagscout/internal/application"
	"github.com/lagscout/lagscout/internal/domain"
	"github.com/lagscout/lagscout/internal/infrastructure/sink"
	"github.com/lagscout/lagscout/internal/utils"
)

// StartAgent runs the scheduler and HTTP server using an already-initialized
// repository and factory. Blocks until SIGINT/SIGTERM.
func StartAgent(repo domain.InstanceRepository, factory domain.ClientFactory) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	promSink := sink.NewPrometheusSink()
	checkSink := sink.NewMultiSink(sink.NewLogSink(), promSink)

	store := application.NewStatusStore()
	hub := httpserver.NewHub()

	checks := application.NewCheckService(repo, factory, checkSink)
	runner := application.NewRunner(repo, checks, store, hub.Broadcast)

	server := httpserver.New(repo, store, promSink.Registry(), hub)
	port := os.Getenv("LAGSCOUT_HTTP_PORT")
	if port == "" {
		port = "8080"
	}
	go func() {
		utils.Logger.Info("HTTP API starting", "port", port)
		if err := server.Run(":" + port); err != nil {
			utils.Logger.Fatal("HTTP API terminated", "err", err)
		}
	}()

	utils.Logger.Info("check runner starting", "interval", repo.InitConfig().CheckIntervalDuration().String())
	runner.Run(ctx)
	utils.Logger.Info("shutting down")
}
