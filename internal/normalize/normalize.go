package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

var (
	unsafeRe     = regexp.MustCompile(`[\s/\\?#%"']+`)
	legacyDateRe = regexp.MustCompile(`^/Date\((-?\d+)\)/$`)
)

// KeySafe converts a product title into a string usable as an object key
// segment. Whitespace and characters with URL or path meaning collapse to a
// single underscore. Anything else, including non-ASCII, passes through;
// the object store accepts Unicode keys.
func KeySafe(title string) string {
	s := unsafeRe.ReplaceAllString(strings.TrimSpace(title), "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "product"
	}
	return s
}

// LegacyDate maps the old list system's "/Date(<unix millis>)/" encoding to
// RFC 3339. Any other string is returned verbatim; records written through
// this service keep whatever the caller sent.
func LegacyDate(s string) string {
	m := legacyDateRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return s
	}
	ms, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return s
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

// Date normalizes a date string of any supported encoding to RFC 3339:
// the legacy "/Date(ms)/" form, or a free-form date string. Strings that
// parse as neither come back unchanged; bulk imports must not fail on one
// odd cell.
func Date(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	if out := LegacyDate(s); out != s {
		return out
	}
	if t, err := dateparse.ParseAny(s); err == nil {
		return t.UTC().Format(time.RFC3339)
	}
	return s
}
