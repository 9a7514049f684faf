package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/logger"
)

// Check reports whether a dependency is usable.
type Check func(context.Context) error

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LivenessHandler always answers 200 while the process serves HTTP.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeHealth(w, http.StatusOK, healthResponse{Status: "ok"})
	}
}

// ReadinessHandler runs every check concurrently with timeout and answers
// 200 when all pass or 503 with the failing names otherwise.
func ReadinessHandler(log *slog.Logger, timeout time.Duration, checks map[string]Check) http.HandlerFunc {
	if log == nil {
		log = logger.Discard()
	}
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		results := make(map[string]string, len(names))
		var (
			mu sync.Mutex
			wg sync.WaitGroup
		)
		for _, name := range names {
			wg.Add(1)
			go func(name string, check Check) {
				defer wg.Done()
				status := "ok"
				if err := check(ctx); err != nil {
					log.WarnContext(ctx, "readiness check failed", slog.String("check", name), logger.Error(err))
					status = "unavailable"
				}
				mu.Lock()
				results[name] = status
				mu.Unlock()
			}(name, checks[name])
		}
		wg.Wait()

		resp := healthResponse{Status: "ok", Checks: results}
		code := http.StatusOK
		for _, status := range results {
			if status != "ok" {
				resp.Status = "unavailable"
				code = http.StatusServiceUnavailable
				break
			}
		}
		writeHealth(w, code, resp)
	}
}

func writeHealth(w http.ResponseWriter, code int, resp healthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
