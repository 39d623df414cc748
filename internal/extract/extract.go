// Package extract parses the structured reply the backend is asked to
// produce for time-sensitive queries: a labeled main response followed by a
// labeled ISO-8601 expiry instant.
package extract

import (
	"strings"
	"time"
)

// Labels the generation backend is instructed to use.
const (
	MainResponseLabel = "MAIN_RESPONSE:"
	ExpiryLabel       = "EXPIRY:"
)

// DefaultExpiryWindow is applied whenever the reply carries no parsable
// expiry instant.
const DefaultExpiryWindow = 5 * time.Minute

// expiryLayouts accepted for the expiry instant. Backends frequently emit
// bare ISO-8601 timestamps without a zone; those are taken as local time.
var expiryLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Extract splits a generated answer into its main response and expiry
// instant. The grammar is deliberately lenient, with three tiers:
//
//  1. Both labels present: text between them is the main response, text
//     after the expiry label is parsed as the expiry instant.
//  2. Main-response label absent: the whole answer (with any expiry label
//     and trailing text stripped) is the main response, expiry defaults.
//  3. Expiry absent or unparsable: expiry defaults to now plus five minutes.
//
// Extract never fails; a malformed reply degrades to the default expiry.
func Extract(answer string, now time.Time) (string, time.Time) {
	fallback := now.Add(DefaultExpiryWindow)

	parts := strings.SplitN(answer, MainResponseLabel, 2)
	if len(parts) < 2 {
		main := strings.TrimSpace(strings.SplitN(answer, ExpiryLabel, 2)[0])
		return main, fallback
	}

	sub := strings.SplitN(parts[1], ExpiryLabel, 2)
	main := strings.TrimSpace(sub[0])
	if len(sub) < 2 {
		return main, fallback
	}

	expiry, ok := parseExpiry(strings.TrimSpace(sub[1]))
	if !ok {
		return main, fallback
	}
	return main, expiry
}

func parseExpiry(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range expiryLayouts {
		if strings.Contains(layout, "Z07:00") {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts, true
			}
			continue
		}
		if ts, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
