package routes

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"escrow-backend/controllers"
	"escrow-backend/middleware"
)

func parseCorsOrigins() []string {
	raw := strings.TrimSpace(os.Getenv("CORS_ORIGINS"))
	if raw == "" {
		return []string{"*"}
	}

	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

// SetupRouter wires the controllers onto the HTTP surface. The CORS
// middleware answers OPTIONS pre-flight probes with an empty acknowledgement.
func SetupRouter(
	ec *controllers.EscrowController,
	dc *controllers.DisputeController,
	pc *controllers.PayoutController,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())

	origins := parseCorsOrigins()
	allowCredentials := true
	for _, origin := range origins {
		if origin == "*" {
			allowCredentials = false
			break
		}
	}

	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: allowCredentials,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		escrows := api.Group("/escrows")
		{
			escrows.POST("/trigger-release", ec.TriggerRelease)
			escrows.POST("/:id/release", ec.ReleaseEscrow)
			escrows.GET("/booking/:bookingId", ec.GetEscrowByBooking)
		}

		disputes := api.Group("/disputes")
		{
			disputes.POST("", dc.FileDispute)
		}

		payouts := api.Group("/payouts")
		{
			payouts.GET("", pc.ListPayouts)
			payouts.POST("/run", pc.RunScheduledPayouts)
			payouts.POST("/:id/process", pc.ProcessPayout)
		}
	}

	return r
}
