package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"safedrive/internal/config"
	"safedrive/internal/middleware"
	"safedrive/internal/models"
)

// GetEmergencyContacts returns the authenticated user's contact list. The
// agent fetches this fresh for every incident rather than caching it.
func GetEmergencyContacts(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "user not resolved from token"})
		return
	}

	var user models.User
	if err := config.DB.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "user not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "database error: " + err.Error()})
		}
		return
	}

	contacts := []string(user.EmergencyContacts)
	if contacts == nil {
		contacts = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "emergency contacts", "data": contacts})
}

// UpdateEmergencyContacts replaces the authenticated user's contact list.
func UpdateEmergencyContacts(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "user not resolved from token"})
		return
	}

	var body struct {
		EmergencyContacts []string `json:"emergency_contacts" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	if err := config.DB.Model(&models.User{}).Where("id = ?", userID).
		Update("emergency_contacts", pq.StringArray(body.EmergencyContacts)).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "could not update contacts: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "emergency contacts updated", "data": body.EmergencyContacts})
}

// GetProfile returns the authenticated user's profile.
func GetProfile(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "user not resolved from token"})
		return
	}

	var user models.User
	if err := config.DB.First(&user, userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "user not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "profile", "data": user})
}
