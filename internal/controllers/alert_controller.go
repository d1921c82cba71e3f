package controllers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Messenger delivers one emergency message to one phone number. The default
// logs the message; a real SMS provider is wired in deployment.
type Messenger interface {
	Send(phone, message string) error
}

// LogMessenger writes each alert to the structured log. Useful in
// development and as the fallback when no SMS provider is configured.
type LogMessenger struct{}

func (LogMessenger) Send(phone, message string) error {
	logrus.WithFields(logrus.Fields{
		"phone":   phone,
		"message": message,
	}).Info("emergency alert dispatched")
	return nil
}

var alertMessenger Messenger = LogMessenger{}

// SetMessenger swaps the delivery backend.
func SetMessenger(m Messenger) {
	if m != nil {
		alertMessenger = m
	}
}

type alertInput struct {
	Location          [2]float64 `json:"location"`
	Speed             float64    `json:"speed"`
	IsDrowsy          bool       `json:"isDrowsy"`
	IsOversped        bool       `json:"isOversped"`
	VictimDetails     string     `json:"victimDetails"`
	EmergencyContacts []string   `json:"emergencyContacts"`
}

// SendAccidentAlert fans an accident notification out to the supplied
// contact list and reports how many messages went through. Unauthenticated:
// the agent calls this in the same breath as the report create and must not
// be blocked by a token problem at the worst possible moment.
func SendAccidentAlert(c *gin.Context) {
	var input alertInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	message := fmt.Sprintf(
		"EMERGENCY: possible accident involving %s at https://maps.google.com/?q=%f,%f (speed %.0f km/h)",
		input.VictimDetails, input.Location[0], input.Location[1], input.Speed,
	)
	if input.IsDrowsy {
		message += " Driver drowsiness was detected."
	}

	sent := 0
	for _, phone := range input.EmergencyContacts {
		if phone == "" {
			continue
		}
		if err := alertMessenger.Send(phone, message); err != nil {
			logrus.WithError(err).WithField("phone", phone).Warn("alert delivery failed")
			continue
		}
		sent++
	}

	logrus.WithFields(logrus.Fields{
		"contacts":  len(input.EmergencyContacts),
		"sent":      sent,
		"is_drowsy": input.IsDrowsy,
	}).Info("accident alert fan-out complete")

	c.JSON(http.StatusOK, gin.H{"sent_count": sent})
}
