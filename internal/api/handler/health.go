package handler

import (
	"context"
	"net/http"
	"time"
)

type HealthResponse struct {
	Status string `json:"status"`
}

// Health reports process liveness.
func Health(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
	})
}

// Ready reports whether the worker's dependencies are reachable. ping is
// typically the object-storage health check.
func Ready(ping func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := ping(ctx); err != nil {
			JSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable"})
			return
		}
		JSON(w, http.StatusOK, HealthResponse{Status: "ok"})
	}
}
