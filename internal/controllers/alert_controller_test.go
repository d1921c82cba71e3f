package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

type fakeMessenger struct {
	sent    []string
	failFor string
}

func (m *fakeMessenger) Send(phone, message string) error {
	if phone == m.failFor {
		return errors.New("provider rejected number")
	}
	m.sent = append(m.sent, phone)
	return nil
}

func alertRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/v1/accident-alert", SendAccidentAlert)
	return r
}

func TestSendAccidentAlertCountsDeliveries(t *testing.T) {
	m := &fakeMessenger{}
	SetMessenger(m)
	defer SetMessenger(LogMessenger{})

	body := `{
		"location": [-1.28, 36.82],
		"speed": 72,
		"isDrowsy": true,
		"isOversped": false,
		"victimDetails": "Jane Driver",
		"emergencyContacts": ["+254700000001", "", "+254700000002"]
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/accident-alert", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	alertRouter().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp struct {
		SentCount int `json:"sent_count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	// Empty contact entries are skipped, not counted as failures.
	if resp.SentCount != 2 {
		t.Fatalf("sent_count = %d, want 2", resp.SentCount)
	}
	if len(m.sent) != 2 {
		t.Fatalf("messenger sent to %v", m.sent)
	}
}

func TestSendAccidentAlertSkipsFailedDeliveries(t *testing.T) {
	m := &fakeMessenger{failFor: "+254700000001"}
	SetMessenger(m)
	defer SetMessenger(LogMessenger{})

	body := `{
		"victimDetails": "Jane Driver",
		"emergencyContacts": ["+254700000001", "+254700000002"]
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/accident-alert", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	alertRouter().ServeHTTP(w, req)

	var resp struct {
		SentCount int `json:"sent_count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.SentCount != 1 {
		t.Fatalf("sent_count = %d, want 1", resp.SentCount)
	}
}

func TestSendAccidentAlertRejectsBadPayload(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/accident-alert", strings.NewReader("not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	alertRouter().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}
