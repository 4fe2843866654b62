package normalize

import "testing"

func TestKeySafe(t *testing.T) {
	cases := map[string]string{
		"Desk":             "Desk",
		"  Office Desk  ":  "Office_Desk",
		"a/b\\c":           "a_b_c",
		"what?#now":        "what_now",
		"オフィス用机":           "オフィス用机",
		"50% off \"deal\"": "50_off_deal",
		"":                 "product",
		" / ":              "product",
	}
	for in, want := range cases {
		if got := KeySafe(in); got != want {
			t.Fatalf("KeySafe(%q)=%q; want %q", in, got, want)
		}
	}
}

func TestLegacyDate(t *testing.T) {
	if got := LegacyDate("/Date(1600000000000)/"); got != "2020-09-13T12:26:40Z" {
		t.Fatalf("LegacyDate=%q; want 2020-09-13T12:26:40Z", got)
	}
	// Non-legacy strings pass through untouched, byte for byte.
	for _, s := range []string{"2024-04-01", "April 1, 2024", "", "tomorrow-ish", "/Date(x)/"} {
		if got := LegacyDate(s); got != s {
			t.Fatalf("LegacyDate(%q)=%q; want verbatim", s, got)
		}
	}
}

func TestDate(t *testing.T) {
	cases := map[string]string{
		"/Date(1600000000000)/": "2020-09-13T12:26:40Z",
		"2024-04-01T00:00:00Z":  "2024-04-01T00:00:00Z",
		"not a date at all":     "not a date at all",
		"":                      "",
	}
	for in, want := range cases {
		if got := Date(in); got != want {
			t.Fatalf("Date(%q)=%q; want %q", in, got, want)
		}
	}
}
