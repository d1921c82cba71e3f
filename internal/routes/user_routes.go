package routes

import (
	"safedrive/internal/controllers"
	"safedrive/internal/middleware"

	"github.com/gin-gonic/gin"
)

func UserRoutes(r *gin.Engine) {
	me := r.Group("/api/v1/users/me")
	me.Use(middleware.RequireAuth())
	{
		me.GET("", controllers.GetProfile)
		me.GET("/emergency-contacts", controllers.GetEmergencyContacts)
		me.PUT("/emergency-contacts", controllers.UpdateEmergencyContacts)
	}
}
