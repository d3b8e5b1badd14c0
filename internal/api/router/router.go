package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jschwabe/autoenroll/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint, reports database reachability
	r.GET("/health", func(c *gin.Context) {
		if err := deps.DBClient.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "enrollment-api-service",
		})
	})

	enrollmentHandler := handler.NewEnrollmentHandler(deps)

	v1 := r.Group("/api/v1")
	{
		enrollments := v1.Group("/enrollments")
		{
			// POST /api/v1/enrollments - Submit a new enrollment job
			enrollments.POST("", enrollmentHandler.CreateEnrollment)

			// GET /api/v1/enrollments - List jobs with filtering and pagination
			enrollments.GET("", enrollmentHandler.ListEnrollments)

			// GET /api/v1/enrollments/:job_id - Get job details
			enrollments.GET("/:job_id", enrollmentHandler.GetEnrollment)
		}
	}

	return r
}
