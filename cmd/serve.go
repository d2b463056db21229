package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/review-insights/internal/fetcher"
	"github.com/sells-group/review-insights/internal/index"
	"github.com/sells-group/review-insights/internal/pipeline"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for analysis and venue Q&A",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initAnalysis(cfg)
		if err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(env, cfg.Index.TopN, cfg.Source.TargetReviews),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// newRouter builds the HTTP API over a shared analysis environment.
func newRouter(env *analysisEnv, defaultTopN, defaultTarget int) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/venues", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string][]string{"venues": env.Index.Venues()})
	})

	r.Post("/venues/analyze", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			URL        string `json:"url"`
			Venue      string `json:"venue"`
			MaxReviews int    `json:"max_reviews"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if body.URL == "" || body.Venue == "" {
			writeError(w, http.StatusBadRequest, "url and venue are required")
			return
		}
		target := body.MaxReviews
		if target <= 0 {
			target = defaultTarget
		}

		report, err := env.Pipeline.Analyze(req.Context(), body.Venue, body.URL, target)
		if err != nil {
			status := http.StatusBadGateway
			switch {
			case errors.Is(err, fetcher.ErrInvalidSource):
				status = http.StatusBadRequest
			case errors.Is(err, fetcher.ErrSourceUnavailable),
				errors.Is(err, pipeline.ErrNoReviews):
				status = http.StatusNotFound
			}
			zap.L().Error("analysis request failed",
				zap.String("venue", body.Venue),
				zap.Error(err),
			)
			writeError(w, status, eris.ToString(err, false))
			return
		}
		writeJSON(w, http.StatusOK, report)
	})

	r.Get("/venues/{key}/query", func(w http.ResponseWriter, req *http.Request) {
		question := req.URL.Query().Get("q")
		if question == "" {
			writeError(w, http.StatusBadRequest, "query parameter q is required")
			return
		}
		topN := defaultTopN
		if n := req.URL.Query().Get("n"); n != "" {
			v, err := strconv.Atoi(n)
			if err != nil || v <= 0 {
				writeError(w, http.StatusBadRequest, "query parameter n must be a positive integer")
				return
			}
			topN = v
		}

		venue := chi.URLParam(req, "key")
		hits, err := env.Index.Query(venue, question, topN)
		if err != nil {
			if index.IsNotIndexed(err) {
				writeError(w, http.StatusNotFound, fmt.Sprintf("venue %q is not indexed", venue))
				return
			}
			writeError(w, http.StatusInternalServerError, "query failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"venue":    venue,
			"question": question,
			"matches":  hits,
		})
	})

	return r
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
