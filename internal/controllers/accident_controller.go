package controllers

import (
	"encoding/binary"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/twpayne/go-geom"
	gjson "github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/encoding/wkb"

	"safedrive/internal/config"
	"safedrive/internal/middleware"
	"safedrive/internal/models"
	"safedrive/internal/stream"
)

type accidentInput struct {
	// A (0,0) location is accepted: a report with no fix is still a report.
	Location   [2]float64 `json:"location"` // [lat, lng]
	Speed      float64    `json:"speed"`
	IsDrowsy   bool       `json:"isDrowsy"`
	IsOversped bool       `json:"isOversped"`
	VictimID   string     `json:"victimId"`
}

// AccidentResponse mirrors models.AccidentReport but carries the geometry as
// a GeoJSON string for API output
type AccidentResponse struct {
	models.AccidentReport
	Geometry string `json:"geometry,omitempty"`
}

// pointToWKB encodes a lat/lng pair as an SRID 4326 point. PostGIS expects
// (lng, lat) axis order.
func pointToWKB(lat, lng float64) ([]byte, error) {
	p := geom.NewPointFlat(geom.XY, []float64{lng, lat})
	p.SetSRID(4326)
	return wkb.Marshal(p, binary.LittleEndian)
}

// convertWKBToGeoJSON converts WKB bytes into a GeoJSON string
func convertWKBToGeoJSON(wkbBytes []byte) (string, error) {
	if len(wkbBytes) == 0 {
		return "", nil
	}
	g, err := wkb.Unmarshal(wkbBytes)
	if err != nil {
		return "", err
	}
	b, err := gjson.Marshal(g)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CreateAccident persists an incident snapshot submitted by an agent. The
// record is created even when the location is the (0,0) sentinel; a report
// with no fix is still a report.
func CreateAccident(c *gin.Context) {
	var input accidentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	victimID, ok := middleware.UserID(c)
	if !ok {
		// Fall back to the payload id for agents registered out of band.
		if parsed, err := strconv.ParseUint(input.VictimID, 10, 32); err == nil {
			victimID = uint(parsed)
		}
	}
	if victimID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "victim could not be resolved"})
		return
	}

	lat, lng := input.Location[0], input.Location[1]
	wkbGeom, err := pointToWKB(lat, lng)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid location: " + err.Error()})
		return
	}

	report := models.AccidentReport{
		Latitude:   lat,
		Longitude:  lng,
		Geometry:   wkbGeom,
		Speed:      input.Speed,
		IsDrowsy:   input.IsDrowsy,
		IsOversped: input.IsOversped,
		VictimID:   victimID,
	}
	if err := config.DB.Create(&report).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "could not create accident report: " + err.Error()})
		return
	}

	logrus.WithFields(logrus.Fields{
		"report_id": report.ID,
		"victim_id": victimID,
		"latitude":  lat,
		"longitude": lng,
	}).Info("accident report created")

	stream.PublishAccident(stream.AccidentEvent{
		ReportID:   report.ID,
		VictimID:   victimID,
		Latitude:   lat,
		Longitude:  lng,
		Speed:      input.Speed,
		IsDrowsy:   input.IsDrowsy,
		IsOversped: input.IsOversped,
	})

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "accident report created",
		"data":    report,
	})
}

// DeleteAccident voids a report after the driver confirms a false alarm.
// Only the victim themselves or an admin may delete.
func DeleteAccident(c *gin.Context) {
	id := c.Param("id")

	var report models.AccidentReport
	if err := config.DB.First(&report, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "accident report not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "database error: " + err.Error()})
		}
		return
	}

	userID, _ := middleware.UserID(c)
	role, _ := c.Get("role")
	if report.VictimID != userID && role != "admin" {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "not allowed to delete this report"})
		return
	}

	if err := config.DB.Delete(&report).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "could not delete report: " + err.Error()})
		return
	}

	logrus.WithField("report_id", report.ID).Info("accident report dismissed as false alarm")

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "accident report deleted",
		"data":    gin.H{"ID": report.ID},
	})
}

// ListAccidents returns all reports with victim details, newest first.
// Admin only.
func ListAccidents(c *gin.Context) {
	var reports []models.AccidentReport
	if err := config.DB.Preload("Victim").Order("created_at DESC").Find(&reports).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Error listing accidents: " + err.Error()})
		return
	}

	out := make([]AccidentResponse, 0, len(reports))
	for _, r := range reports {
		geo, err := convertWKBToGeoJSON(r.Geometry)
		if err != nil {
			logrus.WithError(err).WithField("report_id", r.ID).Warn("could not encode report geometry")
		}
		r.Geometry = nil
		out = append(out, AccidentResponse{AccidentReport: r, Geometry: geo})
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "accidents listed", "data": out})
}

// NearbyAccidents returns reports within radius_km of lat/lng, for dispatch
// tooling. Distance is computed in SQL with a haversine expression so the
// table is filtered server-side.
func NearbyAccidents(c *gin.Context) {
	lat, err1 := strconv.ParseFloat(c.Query("lat"), 64)
	lng, err2 := strconv.ParseFloat(c.Query("lng"), 64)
	if err1 != nil || err2 != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "lat and lng query parameters are required"})
		return
	}
	radiusKm, err := strconv.ParseFloat(c.DefaultQuery("radius_km", "5"), 64)
	if err != nil || radiusKm <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid radius_km"})
		return
	}

	const haversine = `6371 * acos(
		cos(radians(?)) * cos(radians(latitude)) * cos(radians(longitude) - radians(?)) +
		sin(radians(?)) * sin(radians(latitude)))`

	var reports []models.AccidentReport
	if err := config.DB.Preload("Victim").
		Where(haversine+" <= ?", lat, lng, lat, radiusKm).
		Order("created_at DESC").
		Find(&reports).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Error querying nearby accidents: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "nearby accidents", "data": reports})
}
