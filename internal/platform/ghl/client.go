// Package ghl is the client for the downstream CRM: contact creation and
// calendar-event create/update/delete, behind a bearer credential with
// transparent refresh and a sliding-window rate limiter.
package ghl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// apiVersion is the protocol-version header the CRM requires on every call.
const apiVersion = "2021-07-28"

// Client calls the downstream CRM for one location.
type Client struct {
	baseURL    string
	locationID string
	tokens     *TokenSource
	limiter    *RateLimiter
	http       *http.Client
	logger     zerolog.Logger
}

// NewClient builds a CRM client.
func NewClient(baseURL, locationID string, tokens *TokenSource, limiter *RateLimiter, logger zerolog.Logger) *Client {
	for len(baseURL) > 0 && baseURL[len(baseURL)-1] == '/' {
		baseURL = baseURL[:len(baseURL)-1]
	}
	return &Client{
		baseURL:    baseURL,
		locationID: locationID,
		tokens:     tokens,
		limiter:    limiter,
		http:       &http.Client{Timeout: 30 * time.Second},
		logger:     logger.With().Str("component", "ghl").Logger(),
	}
}

// LocationID returns the CRM location this client writes to.
func (c *Client) LocationID() string { return c.locationID }

// do performs one rate-limited, authenticated request. A 401 forces a
// credential refresh and retries the request exactly once.
func (c *Client) do(ctx context.Context, method, url string, payload interface{}) (*http.Response, error) {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	c.limiter.Acquire()
	resp, err := c.send(ctx, method, url, body, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		c.logger.Info().Msg("credential rejected, refreshing and retrying once")
		token, err = c.tokens.ForceRefresh(ctx)
		if err != nil {
			return nil, err
		}
		c.limiter.Acquire()
		resp, err = c.send(ctx, method, url, body, token)
		if err != nil {
			return nil, err
		}
	}
	return resp, nil
}

func (c *Client) send(ctx context.Context, method, url string, body []byte, token string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Version", apiVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	return resp, nil
}

func (c *Client) decode(resp *http.Response, out interface{}) error {
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("%s: status %d: %s", resp.Request.URL.Path, resp.StatusCode, body)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// CustomField is an additional contact attribute keyed by field id.
type CustomField struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

// Contact is the payload for contact creation. Empty optional fields are
// omitted so the CRM does not store blank values.
type Contact struct {
	LocationID   string        `json:"locationId"`
	FirstName    string        `json:"firstName"`
	LastName     string        `json:"lastName"`
	Email        string        `json:"email,omitempty"`
	Phone        string        `json:"phone,omitempty"`
	DateOfBirth  string        `json:"dateOfBirth,omitempty"`
	Address1     string        `json:"address1,omitempty"`
	City         string        `json:"city,omitempty"`
	PostalCode   string        `json:"postalCode,omitempty"`
	State        string        `json:"state,omitempty"`
	CustomFields []CustomField `json:"customFields,omitempty"`
}

// CreateContact creates a contact and returns its CRM id. Idempotence is
// enforced by the caller via stored remote ids, not by the CRM.
func (c *Client) CreateContact(ctx context.Context, contact Contact) (string, error) {
	resp, err := c.do(ctx, http.MethodPost, c.baseURL+"/contacts", contact)
	if err != nil {
		return "", err
	}
	var out struct {
		Contact struct {
			ID string `json:"id"`
		} `json:"contact"`
	}
	if err := c.decode(resp, &out); err != nil {
		return "", err
	}
	if out.Contact.ID == "" {
		return "", fmt.Errorf("create contact: no contact id in response")
	}
	return out.Contact.ID, nil
}

// Event is the payload for calendar-event creation and update.
type Event struct {
	CalendarID               string `json:"calendarId"`
	ContactID                string `json:"contactId"`
	LocationID               string `json:"locationId"`
	StartTime                string `json:"startTime"`
	EndTime                  string `json:"endTime"`
	Title                    string `json:"title"`
	AppointmentStatus        string `json:"appointmentStatus"`
	AssignedUserID           string `json:"assignedUserId"`
	IgnoreDateRange          bool   `json:"ignoreDateRange"`
	ToNotify                 bool   `json:"toNotify"`
	IgnoreFreeSlotValidation bool   `json:"ignoreFreeSlotValidation"`
}

type eventResponse struct {
	ID string `json:"id"`
}

// CreateEvent creates a calendar event and returns its CRM id.
func (c *Client) CreateEvent(ctx context.Context, event Event) (string, error) {
	resp, err := c.do(ctx, http.MethodPost, c.baseURL+"/calendars/events/appointments", event)
	if err != nil {
		return "", err
	}
	var out eventResponse
	if err := c.decode(resp, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// UpdateEvent updates an existing calendar event by its CRM id and returns
// the id echoed by the CRM.
func (c *Client) UpdateEvent(ctx context.Context, remoteID string, event Event) (string, error) {
	resp, err := c.do(ctx, http.MethodPut, c.baseURL+"/calendars/events/appointments/"+remoteID, event)
	if err != nil {
		return "", err
	}
	var out eventResponse
	if err := c.decode(resp, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		out.ID = remoteID
	}
	return out.ID, nil
}

// DeleteEvent deletes a calendar event by its CRM id.
func (c *Client) DeleteEvent(ctx context.Context, remoteID string) error {
	resp, err := c.do(ctx, http.MethodDelete, c.baseURL+"/calendars/events/"+remoteID, nil)
	if err != nil {
		return err
	}
	return c.decode(resp, nil)
}
