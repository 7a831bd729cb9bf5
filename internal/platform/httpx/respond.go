// Package httpx provides HTTP response utilities following RFC7807 problem details.
package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// ProblemDetail represents RFC7807 problem details.
type ProblemDetail struct {
	Type   string `json:"type,omitempty"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Problem sends an RFC7807 problem details response.
func Problem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ProblemDetail{
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

// Check is a named dependency probe used by Health.
type Check struct {
	Name  string
	Probe func(context.Context) error
}

const probeTimeout = 2 * time.Second

// Health reports ok when every probe passes, otherwise a 503 problem
// naming the first failing dependency.
func Health(checks ...Check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		defer cancel()
		for _, c := range checks {
			if c.Probe == nil {
				continue
			}
			if err := c.Probe(ctx); err != nil {
				Problem(w, http.StatusServiceUnavailable, "Service Unavailable", c.Name+": "+err.Error())
				return
			}
		}
		JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
