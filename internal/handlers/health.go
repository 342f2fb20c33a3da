package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger reports whether a backing service answers.
type Pinger func(ctx context.Context) error

// Health pings every dependency with a short timeout and answers 503 when
// any of them fails.
func Health(checks map[string]Pinger) gin.HandlerFunc {
	startedAt := time.Now().UTC()

	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status, code := "ok", http.StatusOK
		results := make(gin.H, len(checks))
		for name, ping := range checks {
			if err := ping(ctx); err != nil {
				_ = c.Error(err)
				results[name] = err.Error()
				status, code = "unavailable", http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		c.JSON(code, gin.H{"status": status, "startedAt": startedAt, "checks": results})
	}
}
