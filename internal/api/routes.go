package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chainswarm/chainswarm-go/internal/api/handlers"
	"github.com/chainswarm/chainswarm-go/internal/database"
)

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Services  Services  `json:"services"`
}

type Services struct {
	Database string `json:"database"`
	Redis    string `json:"redis"`
}

// SetupRoutes wires the REST surface. Everything here is a thin wrapper over
// the scanner, coordinator, and ledger.
func SetupRoutes(router *gin.Engine, db *database.PostgresDB, redis *database.RedisClient,
	opportunities *handlers.OpportunityHandler, transactions *handlers.TransactionHandler, swarmStatus *handlers.SwarmHandler) {

	router.GET("/health", healthCheck(db, redis))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/opportunities", opportunities.GetOpportunities)
		v1.GET("/chains", opportunities.GetChains)

		v1.POST("/transactions", transactions.RecordTransaction)
		v1.GET("/transactions", transactions.ListTransactions)

		v1.GET("/swarm/status", swarmStatus.GetStatus)
	}
}

func healthCheck(db *database.PostgresDB, redis *database.RedisClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		response := HealthResponse{
			Status:    "ok",
			Timestamp: time.Now(),
			Version:   "1.0.0",
			Services: Services{
				Database: "ok",
				Redis:    "ok",
			},
		}

		if db != nil {
			if err := db.HealthCheck(c.Request.Context()); err != nil {
				response.Services.Database = "error"
				response.Status = "degraded"
			}
		}
		if redis != nil {
			if err := redis.HealthCheck(c.Request.Context()); err != nil {
				response.Services.Redis = "error"
				response.Status = "degraded"
			}
		}

		statusCode := http.StatusOK
		if response.Status == "degraded" {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, response)
	}
}
