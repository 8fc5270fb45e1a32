// Package api implements the /home endpoint handler.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/0xkofi/bundlebear-api/internal/cache/keys"
	"github.com/0xkofi/bundlebear-api/internal/cache/memo"
	"github.com/0xkofi/bundlebear-api/internal/observability"
	"github.com/0xkofi/bundlebear-api/internal/warehouse"
)

// HomeService computes the full /home response body.
type HomeService interface {
	Home(ctx context.Context) ([]byte, error)
}

// Memoizer is the get-or-compute cache in front of the service.
type Memoizer interface {
	GetOrCompute(ctx context.Context, key string, compute func(context.Context) ([]byte, error)) ([]byte, memo.Outcome, error)
}

type Handler struct {
	logger *slog.Logger
	memo   Memoizer
	svc    HomeService
}

func NewHandler(logger *slog.Logger, m Memoizer, svc HomeService) *Handler {
	return &Handler{logger: logger, memo: m, svc: svc}
}

// timeframe is accepted for forward compatibility but does not alter the
// query yet; it still participates in the cache key.
var timeframePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,32}$`)

func validateParams(params url.Values) error {
	for name, vals := range params {
		if name != "timeframe" {
			return fmt.Errorf("unexpected parameter %q", name)
		}
		for _, v := range vals {
			if !timeframePattern.MatchString(v) {
				return fmt.Errorf("invalid timeframe value")
			}
		}
	}
	return nil
}

func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
	defer func() {
		observability.ObserveHTTP(r.Method, "/home", sw.code, time.Since(start).Seconds())
	}()

	params := r.URL.Query()
	if err := validateParams(params); err != nil {
		writeError(sw, http.StatusBadRequest, err.Error())
		return
	}

	key := keys.ForRequest(r.URL.Path, params)
	body, outcome, err := h.memo.GetOrCompute(r.Context(), key, func(ctx context.Context) ([]byte, error) {
		return h.svc.Home(ctx)
	})
	if err != nil {
		var execErr *warehouse.ExecutionError
		if errors.As(err, &execErr) {
			// query text already logged by the executor, never echoed here
			writeError(sw, http.StatusInternalServerError, "leaderboard temporarily unavailable")
			return
		}
		h.logger.ErrorContext(r.Context(), "home request failed", "err", err)
		writeError(sw, http.StatusInternalServerError, "internal server error")
		return
	}

	sw.Header().Set("Content-Type", "application/json")
	sw.Header().Set("X-Cache", string(outcome))
	_, _ = sw.Write(body)
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
