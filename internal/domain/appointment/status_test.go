package appointment

import "testing"

func TestTranslateStatus(t *testing.T) {
	cases := []struct{ state, want string }{
		{"waiting", "new"},
		{"", "confirmed"},
		{"confirmed", "confirmed"},
		{"cancelled", "cancelled"},
		{"in_care", "confirmed"},
		{"done", "showed"},
		{"absent", "noshow"},
		{"mystery", StatusInvalid},
		{"WAITING", StatusInvalid}, // states are case-sensitive upstream
	}
	for _, c := range cases {
		if got := TranslateStatus(c.state); got != c.want {
			t.Errorf("TranslateStatus(%q) = %q, want %q", c.state, got, c.want)
		}
	}
}
