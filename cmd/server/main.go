// Package main provides the entry point for the lakedict backend server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lakedict/lakedict/pkg/cache"
	"github.com/lakedict/lakedict/pkg/config"
	"github.com/lakedict/lakedict/pkg/discovery"
	"github.com/lakedict/lakedict/pkg/history"
	"github.com/lakedict/lakedict/pkg/query"
	"github.com/lakedict/lakedict/pkg/session"
	"github.com/lakedict/lakedict/pkg/suggest"
	"github.com/lakedict/lakedict/server/handlers"
)

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("loading configuration")
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hist, err := history.Open(cfg.History.Path, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.History.Path).Msg("opening history store")
	}
	defer func() {
		if err := hist.Close(); err != nil {
			logger.Warn().Err(err).Msg("closing history store")
		}
	}()

	tableCache := cache.NewTTL[[]discovery.TableInfo](cfg.Cache.TableTTL, cfg.Cache.MaxEntries)
	disc := discovery.New(tableCache, cfg.Cache.MetadataTimeout, logger)
	schemaCache := suggest.NewSchemaCache(suggest.DefaultSchemaTTL, cfg.Cache.MaxEntries)

	querySvc := query.NewService(cfg.Query.ResultCapacity, cfg.Query.RowLimit, cfg.Query.DefaultTimeout, disc, logger)

	sessionMgr := session.NewManager(cfg.Session.IdleTimeout, cfg.Session.ProbeTimeout, logger)
	sessionMgr.OnRemove(querySvc.DropSession)
	sessionMgr.Start(ctx, cfg.Session.SweepInterval)

	connHandler := handlers.NewConnectionHandler(sessionMgr, querySvc, cfg.Snowflake, cfg.Session.ProbeTimeout, logger)
	queryHandler := handlers.NewQueryHandler(sessionMgr, querySvc, disc, schemaCache, hist, logger)
	metaHandler := handlers.NewMetadataHandler(sessionMgr, disc, logger)
	healthHandler := handlers.NewHealthHandler(uuid.NewString(), time.Now())

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", handlers.SessionHeader},
		AllowCredentials: true,
	}))

	r.Get("/", healthHandler.Root)
	r.Get("/health", healthHandler.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/connect", connHandler.Connect)
		r.Get("/session/status", connHandler.SessionStatus)
		r.Post("/disconnect", connHandler.Disconnect)
		r.Get("/sessions", connHandler.Sessions)

		r.Route("/metadata", func(r chi.Router) {
			r.Get("/databases", metaHandler.Databases)
			r.Get("/schemas", metaHandler.Schemas)
			r.Get("/tables", metaHandler.Tables)
			r.Get("/columns", metaHandler.Columns)
		})

		r.Route("/query", func(r chi.Router) {
			r.Post("/execute", queryHandler.Execute)
			r.Get("/{queryID}/status", queryHandler.QueryStatus)
			r.Get("/{queryID}/results", queryHandler.QueryResults)
			r.Post("/{queryID}/cancel", queryHandler.CancelQuery)
			r.Post("/preflight", queryHandler.Preflight)
			r.Post("/validate-batch", queryHandler.ValidateBatch)
			r.Post("/explain", queryHandler.Explain)
			r.Post("/suggest", queryHandler.Suggest)
			r.Get("/history", queryHandler.History)
			r.Delete("/history", queryHandler.ClearHistory)
		})
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: query.MaxTimeout + time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server failed")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("graceful shutdown incomplete")
	}
}
