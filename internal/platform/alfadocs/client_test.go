package alfadocs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "key", "100", "200", zerolog.Nop())
}

func TestGetPatient(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/practices/100/archives/200/patients/7" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("X-Api-Key") != "key" {
			t.Error("missing api key header")
		}
		fmt.Fprint(w, `{"data":{"id":7,"firstName":"Anna","lastName":"Rossi"}}`)
	}))

	p, err := c.GetPatient(context.Background(), 7)
	if err != nil { t.Fatalf("unexpected error: %v", err) }
	if p.FirstName != "Anna" { t.Errorf("got %q", p.FirstName) }
}

func TestGetCarePlan_Forbidden(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	if _, err := c.GetCarePlan(context.Background(), 1); !errors.Is(err, ErrNotAccessible) {
		t.Errorf("expected ErrNotAccessible, got %v", err)
	}
}

func TestGetCarePlan_NotFound(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	if _, err := c.GetCarePlan(context.Background(), 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGetCarePlanSignatureStatus(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/practices/100/archives/200/care-plans/5/signature-status" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"data":{"signed":true,"signedAt":"2025-02-01","method":"otp"}}`)
	}))

	s, err := c.GetCarePlanSignatureStatus(context.Background(), 5)
	if err != nil { t.Fatalf("unexpected error: %v", err) }
	if !s.Signed || s.Method != "otp" { t.Errorf("got %+v", s) }
}

func TestGetPatient_NullData(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":null}`)
	}))
	if _, err := c.GetPatient(context.Background(), 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for null data, got %v", err)
	}
}

func TestListPatients_FollowsNextLinks(t *testing.T) {
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/practices/100/archives/200/patients", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"results":[{"id":1}],"links":{"next":"%s/page2","pages":2}}`, srv.URL)
	})
	mux.HandleFunc("/page2", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results":[{"id":2}],"links":{"pages":2}}`)
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()
	c := NewClient(srv.URL, "key", "100", "200", zerolog.Nop())

	var ids []int64
	err := c.ListPatients(context.Background(), func(page, total int, patients []Patient) error {
		for _, p := range patients {
			ids = append(ids, p.ID)
		}
		return nil
	})
	if err != nil { t.Fatalf("unexpected error: %v", err) }
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Errorf("got ids %v", ids)
	}
}

func TestListPatients_EmptyFirstPageIsError(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results":[],"links":{}}`)
	}))
	err := c.ListPatients(context.Background(), func(page, total int, patients []Patient) error { return nil })
	if err == nil { t.Fatal("expected error for empty first page") }
}

func TestListAppointmentsRange_Chunks(t *testing.T) {
	var ranges []string
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ranges = append(ranges, r.URL.Query().Get("dateStart")+".."+r.URL.Query().Get("dateEnd"))
		fmt.Fprint(w, `{"data":[{"id":1}]}`)
	}))

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	var chunks int
	err := c.ListAppointmentsRange(context.Background(), start, end, func(cs, ce time.Time, appts []Appointment) error {
		chunks++
		return nil
	})
	if err != nil { t.Fatalf("unexpected error: %v", err) }
	if chunks != 3 { t.Errorf("expected 3 chunks over 60 days, got %d", chunks) }
	if ranges[0] != "2025-01-01..2025-01-30" {
		t.Errorf("first chunk range %q, want 30-day window", ranges[0])
	}
	if ranges[1] != "2025-01-31..2025-03-01" && ranges[1] != "2025-01-31..2025-02-28" {
		// Second chunk starts the day after the first ends.
		t.Errorf("second chunk range %q", ranges[1])
	}
}

func TestListAppointmentsRange_FailedChunkContinues(t *testing.T) {
	var calls int
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"data":[{"id":9}]}`)
	}))

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC)
	var got []int64
	err := c.ListAppointmentsRange(context.Background(), start, end, func(cs, ce time.Time, appts []Appointment) error {
		for _, a := range appts {
			got = append(got, a.ID)
		}
		return nil
	})
	if err != nil { t.Fatalf("unexpected error: %v", err) }
	if len(got) != 1 || got[0] != 9 {
		t.Errorf("expected the second chunk to be delivered after a failed first chunk, got %v", got)
	}
}
