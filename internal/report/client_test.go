package report

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCreateSubmitsIncidentAndReturnsID(t *testing.T) {
	var gotAuth string
	var gotBody Incident
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/accidents" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"message": "accident report created",
			"data":    map[string]interface{}{"ID": 41},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "token-123")
	id, err := c.Create(context.Background(), Incident{
		Location:   [2]float64{-1.28, 36.82},
		Speed:      72,
		IsDrowsy:   true,
		IsOversped: false,
		VictimID:   "7",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id != "41" {
		t.Fatalf("id = %q, want 41", id)
	}
	if gotAuth != "Bearer token-123" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotBody.Location != [2]float64{-1.28, 36.82} || !gotBody.IsDrowsy {
		t.Errorf("body = %+v", gotBody)
	}
}

func TestCreateSurfacesServerRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"message": "victim could not be resolved",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "token")
	if _, err := c.Create(context.Background(), Incident{}); err == nil {
		t.Fatal("expected error from rejected create")
	}
}

func TestDeleteTargetsCreatedRecord(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s", r.Method)
		}
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "message": "deleted"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "token")
	if err := c.Delete(context.Background(), "41"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if gotPath != "/api/v1/accidents/41" {
		t.Fatalf("path = %q", gotPath)
	}
}

func TestContactsDecodesList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/users/me/emergency-contacts" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"message": "emergency contacts",
			"data":    []string{"+254700000001", "+254700000002"},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "token")
	contacts, err := c.Contacts(context.Background())
	if err != nil {
		t.Fatalf("Contacts: %v", err)
	}
	if len(contacts) != 2 || contacts[0] != "+254700000001" {
		t.Fatalf("contacts = %v", contacts)
	}
}

func TestNotifyReturnsSentCount(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/accident-alert" {
			t.Errorf("path = %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]int{"sent_count": 2})
	}))
	defer srv.Close()

	c := NewClient("http://unused", srv.URL, "token")
	sent, err := c.Notify(context.Background(), Alert{
		EmergencyContacts: []string{"+254700000001", "+254700000002"},
	})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if sent != 2 {
		t.Fatalf("sent = %d, want 2", sent)
	}
	// The fan-out endpoint is unauthenticated on purpose.
	if gotAuth != "" {
		t.Errorf("Notify sent Authorization = %q", gotAuth)
	}
}
