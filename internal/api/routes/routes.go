package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/hirelens/hirelens/internal/api/handlers"
)

type Deps struct {
	Screening *handlers.ScreeningHandler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Health-ish
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	v1 := r.Group("/api/v1")

	v1.POST("/screenings", d.Screening.Trigger)
	v1.POST("/screenings/bulk", d.Screening.TriggerBulk)
	v1.GET("/screenings/:id", d.Screening.Get)
	v1.POST("/screenings/:id/retry", d.Screening.Retry)
	v1.POST("/screenings/:id/cancel", d.Screening.Cancel)

	v1.GET("/applications/:application_id/screening", d.Screening.GetByApplication)
	v1.GET("/applications/:application_id/postings/:job_posting_id/chunks", d.Screening.BestMatchingChunks)

	v1.GET("/postings/:job_posting_id/screenings", d.Screening.ListByJobPosting)
	v1.POST("/postings/:job_posting_id/reprocess", d.Screening.ReprocessJobPosting)

	v1.GET("/queues/status", d.Screening.QueueStatus)
	v1.POST("/skills/cache/refresh", d.Screening.RefreshSkillCache)
}
