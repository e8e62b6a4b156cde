package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dmarcwatch/reportstack/config"
)

// HealthCheck provides a simple health check endpoint
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Status reports which pipeline pieces are configured on this instance
func Status(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"mail_configured": cfg.IMAPConfig.Configured(),
			"storage_backend": cfg.StorageConfig.Backend,
			"events_enabled":  cfg.AppConfig.RabbitMQURL != "",
		})
	}
}
