package identity

import (
	"regexp"
	"strings"
	"unicode"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// CleanEmail lowercases and validates an email address. Returns "" when the
// address is empty or malformed.
func CleanEmail(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !emailPattern.MatchString(email) {
		return ""
	}
	return email
}

// CleanPhone normalizes a phone number to a single leading +39 country code
// and validates its length. Returns "" when the number is empty or invalid.
func CleanPhone(phone string) string {
	if phone == "" {
		return ""
	}
	var b strings.Builder
	for _, r := range phone {
		if unicode.IsDigit(r) || r == '+' {
			b.WriteRune(r)
		}
	}
	nums := b.String()
	switch {
	case strings.HasPrefix(nums, "+39+39"):
		nums = "+39" + nums[6:]
	case !strings.HasPrefix(nums, "+"):
		nums = "+39" + nums
	}
	if len(nums) < 10 || len(nums) > 13 {
		return ""
	}
	return nums
}

// FormatName trims a name and capitalizes the first letter of each word.
func FormatName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	words := strings.Fields(name)
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
