package models

import (
	"github.com/lib/pq"
	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	FullName string `json:"full_name"`
	Email    string `json:"email" gorm:"unique"`
	Password string `json:"-"`
	Phone    string `json:"phone"`
	Role     string `json:"role"` // "driver", "admin"

	// Driver profile
	VehicleType     string `json:"vehicle_type"`
	VehicleModel    string `json:"vehicle_model"`
	VehicleNumber   string `json:"vehicle_number"`
	LicenseNumber   string `json:"license_number"`
	ServiceProvider string `json:"service_provider"`

	// Phone numbers notified on a confirmed or unresolved incident
	EmergencyContacts pq.StringArray `json:"emergency_contacts" gorm:"type:text[]"`
}
