// Package httpd implements the HTTP server command, exposing health
// and read-only audit endpoints.
package httpd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	cmdcommon "github.com/counselrank/audit-service/cmd/common"
	"github.com/counselrank/audit-service/internal/analyzer"
	"github.com/counselrank/audit-service/internal/database"
	"github.com/counselrank/audit-service/internal/logger"
	"github.com/counselrank/audit-service/internal/scorer"
)

const shutdownTimeout = 30 * time.Second

// Command returns the httpd command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "httpd",
		Short: "Serve the audit HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := cmdcommon.NewCommandDeps()
			if err != nil {
				return err
			}

			pipeline, err := cmdcommon.NewPipeline(deps)
			if err != nil {
				return err
			}
			defer pipeline.Close()

			analyzerSvc, err := cmdcommon.NewAnalyzerService(deps, pipeline)
			if err != nil {
				return err
			}
			scorerSvc, err := cmdcommon.NewScorerService(deps, pipeline)
			if err != nil {
				return err
			}

			srv := &server{
				deps:     deps,
				pipeline: pipeline,
				analyzer: analyzerSvc,
				scorer:   scorerSvc,
				log:      deps.Logger.WithComponent("httpd"),
			}
			return srv.run(cmd.Context())
		},
	}
}

// server holds the HTTP handlers' dependencies.
type server struct {
	deps     *cmdcommon.CommandDeps
	pipeline *cmdcommon.Pipeline
	analyzer *analyzer.Service
	scorer   *scorer.Service
	log      logger.Interface
}

// run serves until interrupted, then shuts down gracefully.
func (s *server) run(ctx context.Context) error {
	if s.deps.Config.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	serverCfg := s.deps.Config.Server
	httpServer := &http.Server{
		Addr:         serverCfg.Address,
		Handler:      s.router(),
		ReadTimeout:  serverCfg.ReadTimeout,
		WriteTimeout: serverCfg.WriteTimeout,
		IdleTimeout:  serverCfg.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "address", serverCfg.Address)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// router builds the gin engine with all routes registered.
func (s *server) router() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/healthz", s.handleHealth)

	v1 := engine.Group("/api/v1")
	v1.GET("/checks", s.handleListChecks)
	v1.GET("/runs/:id/scorecard", s.handleScorecard)

	return engine
}

// handleHealth reports service and database health.
func (s *server) handleHealth(c *gin.Context) {
	if err := s.pipeline.DB.PingContext(c.Request.Context()); err != nil {
		s.log.WithError(err).Error("health check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  "database unreachable",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleListChecks returns the metadata of every registered check.
func (s *server) handleListChecks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"checks": s.analyzer.AvailableChecks()})
}

// handleScorecard computes and returns the scorecard for a run.
func (s *server) handleScorecard(c *gin.Context) {
	runID := c.Param("id")

	card, err := s.scorer.Score(c.Request.Context(), runID)
	if err != nil {
		if errors.Is(err, database.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
			return
		}
		s.log.WithError(err).Error("failed to score run", "run_id", runID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to score run"})
		return
	}

	c.JSON(http.StatusOK, card)
}
