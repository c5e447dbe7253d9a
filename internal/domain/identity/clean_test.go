package identity

import "testing"

func TestCleanEmail(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Anna.Rossi@Example.COM", "anna.rossi@example.com"},
		{"  spaced@example.com  ", "spaced@example.com"},
		{"", ""},
		{"not-an-email", ""},
		{"missing@tld", ""},
		{"two@@example.com", ""},
	}
	for _, c := range cases {
		if got := CleanEmail(c.in); got != c.want {
			t.Errorf("CleanEmail(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestCleanPhone(t *testing.T) {
	cases := []struct{ in, want string }{
		{"3331112222", "+393331112222"},
		{"+39 333 111 2222", "+393331112222"},
		{"+39+393331112222", "+393331112222"},
		{"333-111.2222", "+393331112222"},
		{"", ""},
		{"123", ""},                  // too short after prefixing
		{"+3933311122223333", ""},    // too long
	}
	for _, c := range cases {
		if got := CleanPhone(c.in); got != c.want {
			t.Errorf("CleanPhone(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestFormatName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"anna", "Anna"},
		{"  maria grazia  ", "Maria Grazia"},
		{"ROSSI", "Rossi"},
		{"", ""},
	}
	for _, c := range cases {
		if got := FormatName(c.in); got != c.want {
			t.Errorf("FormatName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
