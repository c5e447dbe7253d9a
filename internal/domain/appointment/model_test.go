package appointment

import (
	"testing"
	"time"
)

func TestEventWindow(t *testing.T) {
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	d := 45
	a := &Appointment{Date: start, Duration: &d}
	s, e := a.EventWindow()
	if !s.Equal(start) || !e.Equal(start.Add(45*time.Minute)) {
		t.Errorf("explicit duration: %v..%v", s, e)
	}

	a = &Appointment{Date: start}
	if _, e := a.EventWindow(); !e.Equal(start.Add(30 * time.Minute)) {
		t.Errorf("default duration: end %v", e)
	}

	zero := 0
	a = &Appointment{Date: start, Duration: &zero}
	if _, e := a.EventWindow(); !e.Equal(start.Add(30 * time.Minute)) {
		t.Errorf("zero duration must fall back to default: end %v", e)
	}
}

func TestEventTitle(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Controllo annuale", "Controllo annuale"},
		{"Igiene\nrichiamo", "Igiene | richiamo"},
		{"Prima visita\r\nurgente", "Prima visita | urgente"},
		{"  ", "Appuntamento"},
		{"", "Appuntamento"},
	}
	for _, c := range cases {
		a := &Appointment{Description: c.in}
		if got := a.EventTitle(); got != c.want {
			t.Errorf("EventTitle(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
