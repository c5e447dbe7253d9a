package ghl

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	api := httptest.NewServer(handler)
	t.Cleanup(api.Close)
	auth, _ := newTokenServer(t, "tok-1", "tok-2")
	ts := NewTokenSource(auth.URL, "loc-1", zerolog.Nop())
	limiter := testLimiter(newFakeClock())
	return NewClient(api.URL, "loc-1", ts, limiter, zerolog.Nop())
}

func TestCreateContact(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/contacts" || r.Method != http.MethodPost {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			t.Errorf("bad auth header %q", r.Header.Get("Authorization"))
		}
		if r.Header.Get("Version") != apiVersion {
			t.Errorf("bad version header %q", r.Header.Get("Version"))
		}
		var body Contact
		json.NewDecoder(r.Body).Decode(&body)
		if body.LocationID != "loc-1" { t.Errorf("locationId %q", body.LocationID) }
		fmt.Fprint(w, `{"contact":{"id":"contact-9"}}`)
	}))

	id, err := c.CreateContact(context.Background(), Contact{LocationID: "loc-1", FirstName: "Anna", LastName: "Rossi"})
	if err != nil { t.Fatalf("unexpected error: %v", err) }
	if id != "contact-9" { t.Errorf("got %q", id) }
}

func TestCreateContact_NoID(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"contact":{}}`)
	}))
	if _, err := c.CreateContact(context.Background(), Contact{}); err == nil {
		t.Fatal("expected error for missing contact id")
	}
}

func TestDo_RefreshesOnceOn401(t *testing.T) {
	var auths []string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auths = append(auths, r.Header.Get("Authorization"))
		if len(auths) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"id":"evt-1"}`)
	}))

	id, err := c.CreateEvent(context.Background(), Event{CalendarID: "cal"})
	if err != nil { t.Fatalf("unexpected error: %v", err) }
	if id != "evt-1" { t.Errorf("got %q", id) }
	if len(auths) != 2 || auths[0] != "Bearer tok-1" || auths[1] != "Bearer tok-2" {
		t.Errorf("expected single retry with refreshed token, got %v", auths)
	}
}

func TestDo_SecondRejectionSurfaces(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	if _, err := c.CreateEvent(context.Background(), Event{}); err == nil {
		t.Fatal("expected error when retry is also rejected")
	}
}

func TestUpdateEvent(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/calendars/events/appointments/evt-5" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		fmt.Fprint(w, `{}`)
	}))
	id, err := c.UpdateEvent(context.Background(), "evt-5", Event{})
	if err != nil { t.Fatalf("unexpected error: %v", err) }
	if id != "evt-5" { t.Errorf("update must echo remote id when response omits it, got %q", id) }
}

func TestDeleteEvent(t *testing.T) {
	var path string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.Method + " " + r.URL.Path
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"succeeded":true}`)
	}))
	if err := c.DeleteEvent(context.Background(), "evt-7"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "DELETE /calendars/events/evt-7" { t.Errorf("got %q", path) }
}

func TestDeleteEvent_Failure(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	if err := c.DeleteEvent(context.Background(), "evt-7"); err == nil {
		t.Fatal("expected error")
	}
}
