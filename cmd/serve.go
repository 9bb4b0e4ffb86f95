package main

import (
	"encoding/json"
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

	"github.com/sells-group/edgar-enrich/internal/edgar"
	"github.com/sells-group/edgar-enrich/internal/model"
	"github.com/sells-group/edgar-enrich/internal/resilience"
	"github.com/sells-group/edgar-enrich/internal/scorer"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP enrichment API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		client, store, err := newClient(ctx)
		if err != nil {
			return err
		}
		defer store.Close()
		defer client.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      newRouter(client, scorer.New(cfg.Scorer)),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func newRouter(client *edgar.Client, engine *scorer.Engine) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/resolve", handleResolve(client))
		r.Get("/search", handleSearch(client))
		r.Post("/enrich", handleEnrich(client, engine))
		r.Get("/stats", handleStats(client))
	})

	return r
}

func handleResolve(client *edgar.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		if q == "" {
			writeError(w, http.StatusBadRequest, "q parameter is required")
			return
		}

		match, err := client.Resolver().Resolve(r.Context(), q)
		if err != nil {
			if resilience.IsNotFound(err) {
				writeError(w, http.StatusNotFound, err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, match)
	}
}

func handleSearch(client *edgar.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		if prefix == "" {
			writeError(w, http.StatusBadRequest, "prefix parameter is required")
			return
		}
		limit := 10
		if s := r.URL.Query().Get("limit"); s != "" {
			if n, err := strconv.Atoi(s); err == nil && n > 0 {
				limit = n
			}
		}

		matches, err := client.Resolver().SearchByPrefix(r.Context(), prefix, limit)
		if err != nil && !resilience.IsNotFound(err) {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"matches": matches})
	}
}

// enrichRequest optionally carries website-scan findings; when present the
// profile is rescored with the technology stack included.
type enrichRequest struct {
	Kind         string             `json:"kind"`
	Identifier   string             `json:"identifier"`
	Domain       string             `json:"domain,omitempty"`
	Technologies []model.Technology `json:"technologies,omitempty"`
}

func handleEnrich(client *edgar.Client, engine *scorer.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req enrichRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Identifier == "" {
			writeError(w, http.StatusBadRequest, "identifier is required")
			return
		}

		res := client.Enrich(r.Context(), req.Kind, req.Identifier)
		if res.Success && (req.Domain != "" || len(req.Technologies) > 0) {
			res.Profile.Domain = req.Domain
			res.Profile.Technologies = req.Technologies
			engine.BuildProfile(res.Profile, len(req.Technologies) > 0)
		}

		status := http.StatusOK
		if !res.Success {
			status = statusForError(res.Error)
		}
		writeJSON(w, status, res)
	}
}

func handleStats(client *edgar.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := client.Stats(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func statusForError(apiErr *model.APIError) int {
	switch apiErr.Type {
	case "not_found":
		return http.StatusNotFound
	case "validation_error", "low_confidence":
		return http.StatusUnprocessableEntity
	case "rate_limit":
		return http.StatusTooManyRequests
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
