// Package classifier decides whether a query's answer is perishable.
// Time-sensitive queries get a stricter similarity threshold and a TTL on
// their cached answers; evergreen queries are cached indefinitely.
package classifier

import "regexp"

// QueryType is the classification of a query. Exactly two values exist.
type QueryType string

const (
	// QueryTypeTimeSensitive marks queries whose answers decay over time
	QueryTypeTimeSensitive QueryType = "timesensitive"

	// QueryTypeEvergreen marks queries whose answers are stable indefinitely
	QueryTypeEvergreen QueryType = "evergreen"
)

// Valid reports whether qt is one of the two known query types.
func (qt QueryType) Valid() bool {
	return qt == QueryTypeTimeSensitive || qt == QueryTypeEvergreen
}

// timeSensitivePatterns enumerates vocabulary associated with perishable
// information. Patterns use \b word boundaries so that, for example,
// "newsletter" does not match the "news" pattern.
var timeSensitivePatterns = []*regexp.Regexp{
	// Weather and environment
	regexp.MustCompile(`(?i)\bweather\b`),
	regexp.MustCompile(`(?i)\btemperature\b`),
	regexp.MustCompile(`(?i)\bforecast\b`),

	// Time-based references
	regexp.MustCompile(`(?i)\btoday\b`),
	regexp.MustCompile(`(?i)\btomorrow\b`),
	regexp.MustCompile(`(?i)\byesterday\b`),
	regexp.MustCompile(`(?i)\b(this|next|last) (week|month|year|weekend)\b`),
	regexp.MustCompile(`(?i)\bcurrent\b`),
	regexp.MustCompile(`(?i)\bnow\b`),

	// News and events
	regexp.MustCompile(`(?i)\bnews\b`),
	regexp.MustCompile(`(?i)\bbreaking\b`),
	regexp.MustCompile(`(?i)\blatest\b`),
	regexp.MustCompile(`(?i)\btrending\b`),
	regexp.MustCompile(`(?i)\bviral\b`),

	// Markets and prices
	regexp.MustCompile(`(?i)\bprice\b`),
	regexp.MustCompile(`(?i)\bstock(s)?\b`),
	regexp.MustCompile(`(?i)\bmarket\b`),
	regexp.MustCompile(`(?i)\bcrypto\b`),
	regexp.MustCompile(`(?i)\bexchange rate\b`),

	// Sports and entertainment
	regexp.MustCompile(`(?i)\bsports?\b`),
	regexp.MustCompile(`(?i)\bscore(s)?\b`),
	regexp.MustCompile(`(?i)\blineup\b`),
	regexp.MustCompile(`(?i)\bTV guide\b`),
	regexp.MustCompile(`(?i)\bnew (movies?|shows?|episodes?|games?)\b`),

	// Events and schedules
	regexp.MustCompile(`(?i)\bconcerts?\b`),
	regexp.MustCompile(`(?i)\bevents?\b`),
	regexp.MustCompile(`(?i)\bschedule\b`),

	// Sales and deals
	regexp.MustCompile(`(?i)\bsale\b`),
	regexp.MustCompile(`(?i)\bdiscount\b`),
	regexp.MustCompile(`(?i)\bdeals?\b`),
	regexp.MustCompile(`(?i)\bBlack Friday\b`),
	regexp.MustCompile(`(?i)\bCyber Monday\b`),
}

// Classify returns the query type for the given query text. It is pure and
// deterministic: a query matching any time-sensitive pattern is classified
// as time-sensitive, everything else as evergreen.
func Classify(query string) QueryType {
	for _, pattern := range timeSensitivePatterns {
		if pattern.MatchString(query) {
			return QueryTypeTimeSensitive
		}
	}
	return QueryTypeEvergreen
}
