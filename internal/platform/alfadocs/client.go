// Package alfadocs is the client for the upstream practice-management API.
// It is read-only from the sync core's perspective: paged patient listing,
// 30-day-chunked appointment range listing and fetch-by-id for patients,
// appointments and care plans.
package alfadocs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// ChunkDays is the widest date range the upstream appointment listing
// accepts per request.
const ChunkDays = 30

var (
	// ErrNotFound signals an upstream 404; absence, not failure.
	ErrNotFound = errors.New("alfadocs: resource not found")
	// ErrNotAccessible signals an upstream 403; the record exists but this
	// archive may not read it. Treated like absence by callers.
	ErrNotAccessible = errors.New("alfadocs: resource not accessible")
)

// Client calls the upstream API for one practice archive.
type Client struct {
	baseURL    string
	apiKey     string
	practiceID string
	archiveID  string
	http       *http.Client
	logger     zerolog.Logger
}

// NewClient builds an upstream client. baseURL must not end with a slash;
// a trailing slash is stripped defensively since the value comes from
// operator-supplied configuration.
func NewClient(baseURL, apiKey, practiceID, archiveID string, logger zerolog.Logger) *Client {
	for len(baseURL) > 0 && baseURL[len(baseURL)-1] == '/' {
		baseURL = baseURL[:len(baseURL)-1]
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		practiceID: practiceID,
		archiveID:  archiveID,
		http:       &http.Client{Timeout: 30 * time.Second},
		logger:     logger.With().Str("component", "alfadocs").Logger(),
	}
}

func (c *Client) archivePath(suffix string) string {
	return fmt.Sprintf("%s/v1/practices/%s/archives/%s%s", c.baseURL, c.practiceID, c.archiveID, suffix)
}

func (c *Client) get(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusForbidden:
		return ErrNotAccessible
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("GET %s: status %d: %s", url, resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

type dataEnvelope struct {
	Data json.RawMessage `json:"data"`
}

func (c *Client) getData(ctx context.Context, url string, out interface{}) error {
	var env dataEnvelope
	if err := c.get(ctx, url, &env); err != nil {
		return err
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return ErrNotFound
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data from %s: %w", url, err)
	}
	return nil
}

// GetPatient fetches a single patient by its upstream id.
func (c *Client) GetPatient(ctx context.Context, id int64) (*Patient, error) {
	var p Patient
	if err := c.getData(ctx, c.archivePath(fmt.Sprintf("/patients/%d", id)), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetAppointment fetches a single appointment by its upstream id.
func (c *Client) GetAppointment(ctx context.Context, id int64) (*Appointment, error) {
	var a Appointment
	if err := c.getData(ctx, c.archivePath(fmt.Sprintf("/appointments/%d", id)), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetCarePlan fetches a care plan by id. 403 and 404 map to the package
// sentinels; both are non-fatal for appointment ingestion.
func (c *Client) GetCarePlan(ctx context.Context, id int64) (*CarePlan, error) {
	var cp CarePlan
	if err := c.getData(ctx, c.archivePath(fmt.Sprintf("/care-plans/%d", id)), &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

// GetCarePlanSignatureStatus fetches the signature status of a care plan.
func (c *Client) GetCarePlanSignatureStatus(ctx context.Context, id int64) (*SignatureStatus, error) {
	var s SignatureStatus
	if err := c.getData(ctx, c.archivePath(fmt.Sprintf("/care-plans/%d/signature-status", id)), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

type patientPage struct {
	Results []Patient `json:"results"`
	Links   struct {
		Next  string `json:"next"`
		Pages int    `json:"pages"`
	} `json:"links"`
}

// ListPatients walks the paged patient listing, invoking fn once per page.
// An empty first page is an error (the practice always has patients); an
// empty later page ends the walk. A non-nil error from fn aborts the walk.
func (c *Client) ListPatients(ctx context.Context, fn func(page, totalPages int, patients []Patient) error) error {
	url := c.archivePath("/patients")
	for page := 1; ; page++ {
		var pp patientPage
		if err := c.get(ctx, url, &pp); err != nil {
			return fmt.Errorf("list patients page %d: %w", page, err)
		}
		if len(pp.Results) == 0 {
			if page == 1 {
				return fmt.Errorf("list patients: upstream returned no patients")
			}
			return nil
		}
		if err := fn(page, pp.Links.Pages, pp.Results); err != nil {
			return err
		}
		if pp.Links.Next == "" {
			return nil
		}
		url = pp.Links.Next
	}
}

type appointmentPage struct {
	Data []Appointment `json:"data"`
}

// ListAppointmentsRange fetches appointments between start and end in
// strictly ordered chunks of at most ChunkDays days, invoking fn once per
// chunk. A failed chunk is logged and skipped; the range walk continues,
// mirroring the deferred-retry posture of the rest of the pipeline. A
// non-nil error from fn aborts the walk.
func (c *Client) ListAppointmentsRange(ctx context.Context, start, end time.Time, fn func(chunkStart, chunkEnd time.Time, appts []Appointment) error) error {
	for cur := start; cur.Before(end); {
		chunkEnd := cur.AddDate(0, 0, ChunkDays-1)
		if chunkEnd.After(end) {
			chunkEnd = end
		}

		url := fmt.Sprintf("%s?dateStart=%s&dateEnd=%s",
			c.archivePath("/appointments"),
			cur.Format("2006-01-02"), chunkEnd.Format("2006-01-02"))

		var page appointmentPage
		if err := c.get(ctx, url, &page); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error().Err(err).
				Str("date_start", cur.Format("2006-01-02")).
				Str("date_end", chunkEnd.Format("2006-01-02")).
				Msg("appointment chunk fetch failed, skipping")
		} else if err := fn(cur, chunkEnd, page.Data); err != nil {
			return err
		}

		cur = chunkEnd.AddDate(0, 0, 1)
	}
	return nil
}
