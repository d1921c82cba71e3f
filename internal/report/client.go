// Package report is the agent's HTTP client for the report server: incident
// create/delete, the notification fan-out, and the victim's emergency-contact
// list.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Incident is the snapshot submitted when a major jerk is classified.
type Incident struct {
	Location   [2]float64 `json:"location"` // [lat, lng]
	Speed      float64    `json:"speed"`
	IsDrowsy   bool       `json:"isDrowsy"`
	IsOversped bool       `json:"isOversped"`
	VictimID   string     `json:"victimId"`
}

// Alert is the best-effort notification fan-out payload.
type Alert struct {
	Location          [2]float64 `json:"location"`
	Speed             float64    `json:"speed"`
	IsDrowsy          bool       `json:"isDrowsy"`
	IsOversped        bool       `json:"isOversped"`
	VictimDetails     string     `json:"victimDetails"`
	EmergencyContacts []string   `json:"emergencyContacts"`
}

// Client talks to the report server with bearer-token auth.
type Client struct {
	baseURL  string
	alertURL string
	token    string
	http     *http.Client
}

// NewClient builds a gateway client. alertURL may equal baseURL when the
// fan-out endpoint is hosted by the same server.
func NewClient(baseURL, alertURL, token string) *Client {
	if alertURL == "" {
		alertURL = baseURL
	}
	return &Client{
		baseURL:  baseURL,
		alertURL: alertURL,
		token:    token,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Create persists an incident record and returns the server-assigned id.
func (c *Client) Create(ctx context.Context, incident Incident) (string, error) {
	env, err := c.do(ctx, http.MethodPost, c.baseURL+"/api/v1/accidents", incident)
	if err != nil {
		return "", err
	}
	var created struct {
		ID uint `json:"ID"`
	}
	if err := json.Unmarshal(env.Data, &created); err != nil {
		return "", fmt.Errorf("report: decoding created record: %w", err)
	}
	return fmt.Sprintf("%d", created.ID), nil
}

// Delete voids a previously created incident record.
func (c *Client) Delete(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, c.baseURL+"/api/v1/accidents/"+id, nil)
	return err
}

// Contacts fetches the victim's emergency-contact list. It is fetched fresh
// for every incident, never cached.
func (c *Client) Contacts(ctx context.Context) ([]string, error) {
	env, err := c.do(ctx, http.MethodGet, c.baseURL+"/api/v1/users/me/emergency-contacts", nil)
	if err != nil {
		return nil, err
	}
	var contacts []string
	if err := json.Unmarshal(env.Data, &contacts); err != nil {
		return nil, fmt.Errorf("report: decoding contacts: %w", err)
	}
	return contacts, nil
}

// Notify triggers the notification fan-out and returns how many contacts
// were messaged. Independent of the incident create/delete outcome.
func (c *Client) Notify(ctx context.Context, a Alert) (int, error) {
	body, err := json.Marshal(a)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.alertURL+"/api/v1/accident-alert", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("report: alert fan-out returned %d", resp.StatusCode)
	}
	var out struct {
		SentCount int `json:"sent_count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("report: decoding fan-out response: %w", err)
	}
	return out.SentCount, nil
}

func (c *Client) do(ctx context.Context, method, url string, payload interface{}) (*envelope, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("report: decoding response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !env.Success {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		logrus.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"url":    url,
		}).Warn("report: request rejected")
		return nil, fmt.Errorf("report: %s %s: %s", method, url, msg)
	}
	return &env, nil
}
