package zfs

import (
	"regexp"
	"time"
)

// namePattern pairs a regexp that finds a timestamp-shaped substring
// anywhere in a snapshot name with the time.Parse layout for that substring.
type namePattern struct {
	re     *regexp.Regexp
	layout string
}

// patterns is tried in order; the first match wins. More specific patterns
// (carrying seconds) are listed before less specific ones so that, e.g.,
// "backup-2025-11-09_14-30-45" is parsed to the second, not truncated to
// the minute by the "YYYY-MM-DD_HH-MM" pattern matching its own prefix.
var patterns = []namePattern{
	{regexp.MustCompile(`\d{4}-\d{2}-\d{2}_\d{2}-\d{2}-\d{2}`), "2006-01-02_15-04-05"},
	{regexp.MustCompile(`\d{8}_\d{6}`), "20060102_150405"},
	{regexp.MustCompile(`\d{4}-\d{2}-\d{2}_\d{2}-\d{2}`), "2006-01-02_15-04"},
	{regexp.MustCompile(`\d{4}-\d{2}-\d{2}`), "2006-01-02"},
}

// parseTimestamp extracts a timestamp from a snapshot name using the
// ordered pattern list above. Parse is done against a layout with no zone
// indicator, which time.Parse interprets as UTC.
func parseTimestamp(name string) (int64, bool) {
	for _, p := range patterns {
		m := p.re.FindString(name)
		if m == "" {
			continue
		}
		t, err := time.Parse(p.layout, m)
		if err != nil {
			continue
		}
		return t.Unix(), true
	}
	return 0, false
}
