package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Sternrassler/arxiv-client/pkg/client"
	"github.com/Sternrassler/arxiv-client/pkg/feed"
	"github.com/Sternrassler/arxiv-client/pkg/metrics"
)

// Search requests without max_results get this many results; larger caps
// are clamped to maxServeResults.
const (
	defaultServeResults = 10
	maxServeResults     = 1000
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve searches over HTTP",
	Long: `Serve exposes /search, /health, /ready and /metrics. All requests share
one client, so concurrent searches respect a single rate limit.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default from serve.addr)")
	if err := viper.BindPFlag("serve.addr", serveCmd.Flags().Lookup("addr")); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}
	defer c.Close()

	if rdb := c.Config().Redis; rdb != nil {
		defer rdb.Close()
		if err := rdb.Ping(cmd.Context()).Err(); err != nil {
			return err
		}
		log.Info().Str("redis", rdb.Options().Addr).Msg("Connected to Redis")
	}

	srv := &http.Server{
		Addr:              cfg.Serve.Addr,
		Handler:           newRouter(c),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("client", c.String()).Msg("Starting server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-cmd.Context().Done():
	}

	log.Info().Msg("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Serve.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}

func newRouter(c *client.Client) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/health", healthHandler(c))
	r.Get("/ready", readyHandler(c))
	r.Get("/search", searchHandler(c))
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status_code", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("Handled request")
	})
}

// healthCounters are reported by /health alongside the limiter state.
var healthCounters = []string{
	"arxiv_requests_total",
	"arxiv_retries_total",
	"arxiv_pages_fetched_total",
	"arxiv_results_yielded_total",
	"arxiv_downloads_total",
}

type healthResponse struct {
	Status      string             `json:"status"`
	Interval    string             `json:"interval"`
	Shared      bool               `json:"shared"`
	Requests    int64              `json:"requests"`
	LastRequest *time.Time         `json:"last_request,omitempty"`
	NextIn      time.Duration      `json:"next_in_ns"`
	Counters    map[string]float64 `json:"counters,omitempty"`
}

func healthHandler(c *client.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := c.Limiter().State()
		resp := healthResponse{
			Status:   "ok",
			Interval: state.Interval.String(),
			Shared:   state.Shared,
			Requests: state.Acquisitions,
			NextIn:   state.TimeUntilNext(),
		}
		if !state.LastAcquire.IsZero() {
			last := state.LastAcquire.UTC()
			resp.LastRequest = &last
		}
		counters, err := metrics.Totals(healthCounters...)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to gather counters")
		}
		resp.Counters = counters
		writeJSON(w, http.StatusOK, resp)
	}
}

func readyHandler(c *client.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if rdb := c.Config().Redis; rdb != nil {
			if err := rdb.Ping(r.Context()).Err(); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}
}

type searchResponse struct {
	Query   string         `json:"query,omitempty"`
	IDs     []string       `json:"ids,omitempty"`
	Start   int            `json:"start"`
	Count   int            `json:"count"`
	Results []*feed.Result `json:"results"`
	Error   string         `json:"error,omitempty"`
}

func searchHandler(c *client.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		s := client.Search{
			Query:     q.Get("q"),
			SortBy:    client.SortCriterion(q.Get("sort_by")),
			SortOrder: client.SortOrder(q.Get("sort_order")),
		}
		if ids := q.Get("id"); ids != "" {
			s.IDList = strings.Split(ids, ",")
		}
		if s.Query == "" && len(s.IDList) == 0 {
			writeJSON(w, http.StatusBadRequest, searchResponse{Error: "q or id is required"})
			return
		}

		maxResults, err := intParam(q.Get("max_results"), defaultServeResults)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, searchResponse{Error: "invalid max_results"})
			return
		}
		if maxResults > maxServeResults {
			maxResults = maxServeResults
		}
		start, err := intParam(q.Get("start"), 0)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, searchResponse{Error: "invalid start"})
			return
		}
		if maxResults < 0 {
			writeJSON(w, http.StatusBadRequest, searchResponse{Error: "max_results must not be negative"})
			return
		}
		// The client cap is absolute; max_results counts from start.
		s = s.WithMaxResults(start + maxResults)

		results, err := c.Collect(r.Context(), s, start)
		resp := searchResponse{
			Query:   s.Query,
			IDs:     s.IDList,
			Start:   start,
			Count:   len(results),
			Results: results,
		}
		if resp.Results == nil {
			resp.Results = []*feed.Result{}
		}
		if err != nil {
			resp.Error = err.Error()
			var cfgErr *client.ConfigurationError
			if errors.As(err, &cfgErr) {
				writeJSON(w, http.StatusBadRequest, resp)
				return
			}
			log.Warn().Err(err).Str("query", s.Query).Int("start", start).Msg("Search failed")
			writeJSON(w, http.StatusBadGateway, resp)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to write response")
	}
}
