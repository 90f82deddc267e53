package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JaimeStill/tally/internal/api"
	"github.com/JaimeStill/tally/internal/config"
	"github.com/JaimeStill/tally/internal/infrastructure"
	"github.com/JaimeStill/tally/pkg/module"
)

// Server owns the infrastructure, the workflow domain and the HTTP listener.
type Server struct {
	infra  *infrastructure.Infrastructure
	domain *api.Domain
	http   *httpServer
	logger *slog.Logger
}

func NewServer(cfg *config.Config) (*Server, error) {
	infra, err := infrastructure.New(cfg)
	if err != nil {
		return nil, err
	}

	apiModule, domain, err := api.NewModule(cfg, infra)
	if err != nil {
		return nil, err
	}

	router := module.NewRouter()
	if err := router.Mount(apiModule); err != nil {
		return nil, err
	}
	newHealth(infra.Lifecycle, infra.Database).register(router)

	infra.Logger.Info(
		"server initialized",
		"version", cfg.Version,
		"env", cfg.Env(),
		"addr", cfg.Server.Addr(),
		"modules", router.Prefixes(),
		"state_file", cfg.Workflow.StateFile,
	)

	return &Server{
		infra:  infra,
		domain: domain,
		http:   newHTTPServer(&cfg.Server, router, infra.Logger),
		logger: infra.Logger,
	}, nil
}

// Run starts every subsystem and blocks until ctx is cancelled, then shuts
// down within timeout. A failed start still shuts down what had started,
// so the queue drains and the pool closes.
func (s *Server) Run(ctx context.Context, timeout time.Duration) error {
	if err := s.start(); err != nil {
		return errors.Join(err, s.shutdown(timeout))
	}

	<-ctx.Done()
	return s.shutdown(timeout)
}

func (s *Server) start() error {
	lc := s.infra.Lifecycle
	steps := []struct {
		name  string
		start func() error
	}{
		{"infrastructure", s.infra.Start},
		{"workflow", func() error { return s.domain.Start(lc) }},
		{"http", func() error { return s.http.Start(lc) }},
	}

	for _, step := range steps {
		if err := step.start(); err != nil {
			return fmt.Errorf("start %s: %w", step.name, err)
		}
	}

	go func() {
		lc.WaitForStartup()
		s.logger.Info("all subsystems ready")
	}()
	return nil
}

func (s *Server) shutdown(timeout time.Duration) error {
	s.logger.Info("initiating shutdown", "timeout", timeout)
	if err := s.infra.Lifecycle.Shutdown(timeout); err != nil {
		s.logger.Error("shutdown incomplete", "error", err)
		return err
	}
	s.logger.Info("tally stopped")
	return nil
}
