// Package app provides the advisor server application.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kart-io/sentinel-advisor/cmd/advisor/app/options"
	advisorsvc "github.com/kart-io/sentinel-advisor/internal/advisor"
	"github.com/kart-io/sentinel-advisor/pkg/infra/app"
)

// commandDesc is the description of the command.
const commandDesc = `Investment advisor service

Scores a risk questionnaire, ingests PDFs and web pages into a vector
index, and answers investment questions grounded in the ingested sources.

Endpoints:
  POST /profile          score the questionnaire
  POST /ingest-sources   replace the knowledge base (multipart pdfs, urls)
  POST /recommend        ask a question with a risk profile`

// NewApp creates and returns a new App object with default parameters.
func NewApp() *app.App {
	opts := options.NewServerOptions()
	return app.NewApp(
		app.WithName(advisorsvc.Name),
		app.WithShortDescription("Investment advisor RAG service"),
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithRunFunc(run(opts)),
	)
}

// run contains the main logic for initializing and running the server.
func run(opts *options.ServerOptions) app.RunFunc {
	return func() error {
		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		ctx := setupSignalContext()

		server, err := cfg.NewServer(ctx)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}
		return server.Run(ctx)
	}
}

// setupSignalContext returns a context that is cancelled on SIGINT or SIGTERM.
// A second signal exits immediately.
func setupSignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
		<-c
		os.Exit(1)
	}()
	return ctx
}
