package core

// normalize.go cleans raw feed values before any matching happens.
//
// Feeds are produced by several upstream systems, so the same column shows
// up in different shapes:
//   - phone numbers with and without the trunk prefix
//   - birth dates in US, EU and ISO layouts
//   - names carrying punctuation the storefront rejects
//   - missing b2b flags

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// PhonePlaceholder replaces a phone number given as "0".
const PhonePlaceholder = "TBD"

// DateLayout is the canonical date-of-birth layout.
const DateLayout = "2006-01-02"

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would land more than this many years in the future
// are assumed to be in the previous century.
var TwoDigitYearPivot = 20

var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02",
		"2006-01-02 15:04:05", "2006-01-02T15:04:05Z07:00",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"Jan 2, 2006", "2 Jan 2006",
		"20060102",
	}
)

// Normalizer applies the per-row cleanup rules. It is safe for concurrent use.
type Normalizer struct {
	strip *regexp.Regexp
	now   func() time.Time
}

// NewNormalizer compiles the name stripping pattern. The pattern may be a
// plain RE2 expression or a delimited one such as "/[^a-z ]/i".
// An empty pattern disables stripping.
func NewNormalizer(pattern string) (*Normalizer, error) {
	n := &Normalizer{now: time.Now}
	if strings.TrimSpace(pattern) == "" {
		return n, nil
	}
	re, err := CompileStripPattern(pattern)
	if err != nil {
		return nil, err
	}
	n.strip = re
	return n, nil
}

// Normalize returns a cleaned copy of the record.
func (n *Normalizer) Normalize(r OutletRecord) OutletRecord {
	r.Telephone = FeedValue(NormalizePhone(r.Telephone.String()))
	r.DOB = FeedValue(n.normalizeDate(r.DOB.String()))
	r.FirstName = FeedValue(n.StripName(r.FirstName.String()))
	r.LastName = FeedValue(n.StripName(r.LastName.String()))
	if r.B2BCustomer.String() == "" || strings.EqualFold(r.B2BCustomer.String(), "null") {
		r.B2BCustomer = "0"
	}
	return r
}

// StripName removes every match of the stripping pattern.
func (n *Normalizer) StripName(s string) string {
	if n.strip == nil {
		return s
	}
	return n.strip.ReplaceAllString(s, "")
}

// NormalizePhone applies the trunk prefix rule: "0" becomes the placeholder,
// any other number not starting with '0' gets one prepended.
func NormalizePhone(s string) string {
	switch {
	case s == "0":
		return PhonePlaceholder
	case s == "" || s == PhonePlaceholder:
		return s
	case s[0] != '0':
		return "0" + s
	default:
		return s
	}
}

// NormalizeDate reformats a date into YYYY-MM-DD. Unparseable input
// yields an empty string.
func NormalizeDate(s string) string {
	return normalizeDate(s, time.Now())
}

func (n *Normalizer) normalizeDate(s string) string {
	return normalizeDate(s, n.now())
}

func normalizeDate(s string, now time.Time) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	// Try 4-digit year layouts first (unambiguous)
	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(DateLayout)
		}
	}

	pivotYear := now.Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t.Format(DateLayout)
		}
	}

	return ""
}

// CompileStripPattern compiles a name stripping pattern. Delimited patterns
// ("/expr/flags", "#expr#i") are unwrapped and the i, m and s flags are
// translated; other flags are ignored.
func CompileStripPattern(pattern string) (*regexp.Regexp, error) {
	expr := pattern
	if len(pattern) >= 2 && isDelimiter(pattern[0]) {
		delim := pattern[0]
		if end := strings.LastIndexByte(pattern, delim); end > 0 {
			expr = pattern[1:end]
			var flags strings.Builder
			for _, f := range pattern[end+1:] {
				switch f {
				case 'i', 'm', 's':
					flags.WriteRune(f)
				}
			}
			if flags.Len() > 0 {
				expr = "(?" + flags.String() + ")" + expr
			}
		}
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile strip pattern %q: %w", pattern, err)
	}
	return re, nil
}

func isDelimiter(b byte) bool {
	switch b {
	case '/', '#', '~', '@', '%', '!', '|':
		return true
	}
	return false
}
