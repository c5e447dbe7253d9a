package schedule

import (
	"context"
	stdsync "sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	syncrun "github.com/clinicsync/clinicsync/internal/domain/sync"
)

func TestTrigger_RecordsLastRun(t *testing.T) {
	id := uuid.New()
	s, err := New(context.Background(), "* * * * *", func(context.Context) (*syncrun.Stats, error) {
		return &syncrun.Stats{RunID: id}, nil
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s.LastRun() != nil {
		t.Fatal("no run should be recorded yet")
	}
	s.Trigger()
	if last := s.LastRun(); last == nil || last.RunID != id {
		t.Errorf("last run %+v", last)
	}
	if s.Running() {
		t.Error("run must be marked finished")
	}
}

func TestTrigger_SkipsOverlappingRun(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	runs := 0
	var mu stdsync.Mutex

	s, err := New(context.Background(), "* * * * *", func(context.Context) (*syncrun.Stats, error) {
		mu.Lock()
		runs++
		mu.Unlock()
		close(started)
		<-release
		return &syncrun.Stats{}, nil
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	done := make(chan struct{})
	go func() { s.Trigger(); close(done) }()
	<-started

	if !s.Running() {
		t.Error("run must be marked in progress")
	}
	s.Trigger() // must be a no-op while the first run holds the slot
	close(release)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("first run did not finish")
	}

	mu.Lock()
	defer mu.Unlock()
	if runs != 1 {
		t.Errorf("runs = %d, want 1", runs)
	}
}

func TestNew_RejectsBadSpec(t *testing.T) {
	_, err := New(context.Background(), "not a cron spec", func(context.Context) (*syncrun.Stats, error) {
		return nil, nil
	}, zerolog.Nop())
	if err == nil {
		t.Fatal("expected error for an invalid cron expression")
	}
}
