// Package age derives the next-birthday age used as the key into every rate table.
package age

import (
	"strconv"
	"strings"
	"time"
)

const (
	MinQuoteAge = 1
	MaxQuoteAge = 70
)

// NextBirthday returns the age the person turns on their next birthday,
// relative to now. dob is DD/MM/YYYY or YYYY-MM-DD. Zero means the date
// could not be parsed.
func NextBirthday(dob string, now time.Time) int {
	birth, ok := ParseDOB(dob)
	if !ok {
		return 0
	}

	age := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		age--
	}
	return age + 1
}

// Valid reports whether a next-birthday age can be quoted
func Valid(n int) bool {
	return n >= MinQuoteAge && n <= MaxQuoteAge
}

// ParseDOB reads a birth date. Out-of-range day or month values roll over
// into the following month or year, so 31/02/2000 is 2 March 2000. A DD/MM
// year below 100 is read as 19YY.
func ParseDOB(dob string) (time.Time, bool) {
	dob = strings.TrimSpace(dob)
	if dob == "" {
		return time.Time{}, false
	}

	if strings.Contains(dob, "/") {
		parts := strings.Split(dob, "/")
		if len(parts) != 3 {
			return time.Time{}, false
		}
		day, err1 := leadingInt(parts[0])
		month, err2 := leadingInt(parts[1])
		year, err3 := leadingInt(parts[2])
		if err1 != nil || err2 != nil || err3 != nil {
			return time.Time{}, false
		}
		if year >= 0 && year < 100 {
			year += 1900
		}
		return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), true
	}

	t, err := time.Parse("2006-01-02", dob)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FormatDOB turns free digit entry into DD/MM/YYYY, dropping anything past eight digits
func FormatDOB(value string) string {
	var digits strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	in := digits.String()
	if len(in) > 8 {
		in = in[:8]
	}

	switch {
	case len(in) > 4:
		return in[:2] + "/" + in[2:4] + "/" + in[4:]
	case len(in) > 2:
		return in[:2] + "/" + in[2:]
	}
	return in
}

// leadingInt parses the leading digits of s, ignoring trailing junk
func leadingInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	return strconv.Atoi(s[:end])
}
