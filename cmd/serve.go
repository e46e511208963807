package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/gap-analysis/internal/model"
	"github.com/sells-group/gap-analysis/internal/monitoring"
	"github.com/sells-group/gap-analysis/internal/store"
)

var servePort int

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for analysis requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		api := newAPI(ctx, env.Pipeline, env.Store)

		if cfg.Monitoring.Enabled {
			checker := monitoring.NewChecker(
				monitoring.NewCollector(env.Store),
				monitoring.NewAlerter(cfg.Monitoring),
				cfg.Monitoring,
			)
			go checker.Run(ctx)
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           api.routes(cfg.Server.CORSOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		api.wait()
		return nil
	},
}

// analysisRunner starts analyses. *pipeline.Pipeline satisfies it.
type analysisRunner interface {
	Resolve(ctx context.Context, siteID string) (model.AnalysisContext, error)
	RunWithID(ctx context.Context, runID, siteID string) (*model.AnalysisResult, error)
}

// runReader is the read side of the store exposed over HTTP.
type runReader interface {
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
	ListPhases(ctx context.Context, runID string) ([]model.RunPhase, error)
	ListEvents(ctx context.Context, runID string, afterSeq int) ([]model.ProgressEvent, error)
}

type api struct {
	baseCtx context.Context
	runner  analysisRunner
	runs    runReader
	newID   func() string
	wg      sync.WaitGroup
}

func newAPI(baseCtx context.Context, runner analysisRunner, runs runReader) *api {
	return &api{baseCtx: baseCtx, runner: runner, runs: runs, newID: uuid.NewString}
}

// wait blocks until every accepted analysis has returned.
func (a *api) wait() { a.wg.Wait() }

func (a *api) routes(origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/analyses", a.createAnalysis)
		r.Get("/runs", a.listRuns)
		r.Get("/runs/{id}", a.getRun)
		r.Get("/runs/{id}/events", a.listEvents)
	})
	return r
}

func (a *api) createAnalysis(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SiteID string `json:"site_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SiteID == "" {
		writeError(w, http.StatusBadRequest, "site_id is required")
		return
	}

	// Fail fast on a strategy that can never run.
	if _, err := a.runner.Resolve(r.Context(), req.SiteID); err != nil {
		if model.KindOf(err) == model.KindConfigurationIncomplete {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		zap.L().Error("resolve strategy failed", zap.String("site_id", req.SiteID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not read strategy")
		return
	}

	runID := a.newID()
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		result, err := a.runner.RunWithID(a.baseCtx, runID, req.SiteID)
		if err != nil {
			zap.L().Error("analysis failed",
				zap.String("site_id", req.SiteID),
				zap.String("run_id", runID),
				zap.Error(err),
			)
			return
		}
		zap.L().Info("analysis complete",
			zap.String("site_id", req.SiteID),
			zap.String("run_id", runID),
			zap.Int("recommendations", len(result.Recommendations)),
		)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":  "accepted",
		"run_id":  runID,
		"site_id": req.SiteID,
	})
}

func (a *api) listRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.RunFilter{
		Status: model.RunStatus(q.Get("status")),
		SiteID: q.Get("site_id"),
	}
	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid offset")
		return
	}

	runs, err := a.runs.ListRuns(r.Context(), filter)
	if err != nil {
		zap.L().Error("list runs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not list runs")
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (a *api) getRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := a.runs.GetRun(r.Context(), id)
	if err != nil {
		a.storeError(w, err, id)
		return
	}
	phases, err := a.runs.ListPhases(r.Context(), id)
	if err != nil {
		a.storeError(w, err, id)
		return
	}
	writeJSON(w, http.StatusOK, runDetail{Run: run, Phases: phases})
}

func (a *api) listEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	after, err := intParam(r.URL.Query().Get("after"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid after")
		return
	}
	if _, err := a.runs.GetRun(r.Context(), id); err != nil {
		a.storeError(w, err, id)
		return
	}
	events, err := a.runs.ListEvents(r.Context(), id, after)
	if err != nil {
		a.storeError(w, err, id)
		return
	}
	if events == nil {
		events = []model.ProgressEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (a *api) storeError(w http.ResponseWriter, err error, runID string) {
	if eris.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	zap.L().Error("store read failed", zap.String("run_id", runID), zap.Error(err))
	writeError(w, http.StatusInternalServerError, "store error")
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, eris.Errorf("invalid integer %q", s)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
