package models

import (
	"gorm.io/gorm"
)

// AccidentReport is one persisted incident snapshot submitted by the agent.
// Latitude/Longitude carry the resolved incident location; Geometry holds the
// same point as WKB so PostGIS can index it.
type AccidentReport struct {
	gorm.Model
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Geometry   []byte  `json:"-" gorm:"type:geometry(Point,4326)"`
	Speed      float64 `json:"speed"` // km/h at the moment of the jerk
	IsDrowsy   bool    `json:"is_drowsy"`
	IsOversped bool    `json:"is_oversped"`
	VictimID   uint    `json:"victim_id" gorm:"index"`
	Victim     User    `json:"victim,omitempty" gorm:"foreignKey:VictimID"`
}
