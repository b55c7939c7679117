package types

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Number is a float64 decoded tolerantly from host attributes. JSON numbers,
// numeric strings ("12.5"), null and unparseable strings ("unknown",
// "unavailable") are all accepted; anything that isn't a finite number decodes
// to NaN so callers can drop it point-by-point.
type Number float64

// NaN returns a Number holding NaN.
func NaN() Number {
	return Number(math.NaN())
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*n = NaN()
		return nil
	}
	s := string(b)
	if b[0] == '"' {
		unquoted, err := strconv.Unquote(s)
		if err != nil {
			*n = NaN()
			return nil
		}
		s = strings.TrimSpace(unquoted)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*n = NaN()
		return nil
	}
	*n = Number(f)
	return nil
}

// MarshalJSON implements json.Marshaler. Non-finite values are written as null.
func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid() {
		return []byte("null"), nil
	}
	return json.Marshal(float64(n))
}

// Valid returns true if the number is finite.
func (n Number) Valid() bool {
	return IsFinite(float64(n))
}

// Or returns the value or def if the value isn't finite.
func (n Number) Or(def float64) float64 {
	if !n.Valid() {
		return def
	}
	return float64(n)
}

// Opt returns the value behind n or def if n is nil or not finite.
func Opt(n *Number, def float64) float64 {
	if n == nil {
		return def
	}
	return n.Or(def)
}

// IsFinite returns false for NaN and ±Inf.
func IsFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// timestamp layouts accepted from the host, most specific first
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// Timestamp is an ISO-8601 instant decoded tolerantly. Invalid or missing
// timestamps decode to the zero time.
type Timestamp struct {
	time.Time
}

// ParseTimestamp parses s with the accepted layouts. Timestamps without an
// offset are treated as UTC.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		t.Time = time.Time{}
		return nil
	}
	parsed, _ := ParseTimestamp(s)
	t.Time = parsed
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}
