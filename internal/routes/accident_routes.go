package routes

import (
	"safedrive/internal/controllers"
	"safedrive/internal/middleware"

	"github.com/gin-gonic/gin"
)

func AccidentRoutes(r *gin.Engine) {
	accidents := r.Group("/api/v1/accidents")
	accidents.Use(middleware.RequireAuth())
	{
		accidents.POST("", controllers.CreateAccident)
		accidents.DELETE("/:id", controllers.DeleteAccident)
		accidents.GET("/nearby", controllers.NearbyAccidents)
	}

	// Full listing is for the ops dashboard only
	admin := r.Group("/api/v1/admin")
	admin.Use(middleware.RequireAuthWithRole("admin"))
	{
		admin.GET("/accidents", controllers.ListAccidents)
	}
}
