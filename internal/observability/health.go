package observability

import (
	"context"
	"encoding/json"
	"net/http"
)

// ReadyCheck probes one subsystem (database ping, redis ping) and
// returns nil when it can serve traffic.
type ReadyCheck func(ctx context.Context) error

// HealthHandler serves liveness at /healthz: always 200, the process is
// up if it can answer at all.
func HealthHandler() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		writeStatus(rw, http.StatusOK, "ok")
	})
}

// ReadyHandler serves readiness at /readyz: 503 as soon as any check
// fails, 200 when every check (or none) passes.
func ReadyHandler(checks ...ReadyCheck) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, hr *http.Request) {
		for _, check := range checks {
			if err := check(hr.Context()); err != nil {
				writeStatus(rw, http.StatusServiceUnavailable, "unavailable")
				return
			}
		}
		writeStatus(rw, http.StatusOK, "ok")
	})
}

func writeStatus(rw http.ResponseWriter, code int, status string) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(code)
	_ = json.NewEncoder(rw).Encode(map[string]string{"status": status})
}
