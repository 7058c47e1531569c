package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/maillage/cache"
	"github.com/use-agent/maillage/models"
)

// maxQueuedRuns is the number of pending runs above which the service
// reports itself degraded.
const maxQueuedRuns = 10

// Health returns a handler for GET /api/v1/health.
func Health(pages *cache.Pages, store *RunStore, version string, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		active := store.Active()

		status := "healthy"
		if active > maxQueuedRuns {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:      status,
			Uptime:      time.Since(startTime).Round(time.Second).String(),
			Version:     version,
			CachedPages: pages.Len(),
			ActiveRuns:  active,
		})
	}
}
