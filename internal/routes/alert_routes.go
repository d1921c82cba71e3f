package routes

import (
	"safedrive/internal/controllers"

	"github.com/gin-gonic/gin"
)

func AlertRoutes(r *gin.Engine) {
	// Deliberately unauthenticated so a token problem cannot block the
	// fan-out during an emergency.
	r.POST("/api/v1/accident-alert", controllers.SendAccidentAlert)
}
