package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicsync/clinicsync/internal/domain/appointment"
	"github.com/clinicsync/clinicsync/internal/domain/sync"
)

type fakeReporter struct {
	running bool
	last    *sync.Stats
}

func (f *fakeReporter) Running() bool        { return f.running }
func (f *fakeReporter) LastRun() *sync.Stats { return f.last }

func TestStatus_NoRunYet(t *testing.T) {
	s := NewServer(nil, &fakeReporter{}, zerolog.Nop())

	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var body map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(body["running"]) != "false" {
		t.Errorf("running = %s", body["running"])
	}
	if _, ok := body["last_run"]; ok {
		t.Error("last_run must be absent before the first run")
	}
}

func TestStatus_ReportsLastRun(t *testing.T) {
	id := uuid.New()
	reporter := &fakeReporter{
		running: true,
		last: &sync.Stats{
			RunID:    id,
			Patients: sync.Counters{Processed: 12, Created: 3, Errored: 1},
			Events:   appointment.PushStats{Pushed: 7},
		},
	}
	s := NewServer(nil, reporter, zerolog.Nop())

	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	var body struct {
		Running bool    `json:"running"`
		LastRun runView `json:"last_run"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Running {
		t.Error("running flag lost")
	}
	if body.LastRun.RunID != id.String() {
		t.Errorf("run id %q", body.LastRun.RunID)
	}
	if body.LastRun.Patients.Processed != 12 || body.LastRun.Patients.Errored != 1 {
		t.Errorf("patients %+v", body.LastRun.Patients)
	}
	if body.LastRun.EventsPushed != 7 {
		t.Errorf("events pushed %d", body.LastRun.EventsPushed)
	}
}
