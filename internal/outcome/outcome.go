// Package outcome defines the per-request record produced for every executed
// or skipped work item.
package outcome

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxResponseRunes bounds the response excerpt kept on each outcome.
const MaxResponseRunes = 100

// Status is an HTTP status code or one of the negative sentinels below.
type Status int

const (
	// StatusSkipped marks an item whose required identifier pool was empty.
	StatusSkipped Status = -1
	// StatusError marks a transport, timeout or build failure.
	StatusError Status = -2
)

const (
	skippedLabel = "SKIPPED"
	errorLabel   = "ERROR"
)

func (s Status) String() string {
	switch s {
	case StatusSkipped:
		return skippedLabel
	case StatusError:
		return errorLabel
	default:
		return strconv.Itoa(int(s))
	}
}

// IsHTTP reports whether the status carries a real HTTP code.
func (s Status) IsHTTP() bool {
	return s > 0
}

// Success reports whether the status is in the 2xx range.
func (s Status) Success() bool {
	return s >= 200 && s < 300
}

// ParseStatus inverts Status.String.
func ParseStatus(raw string) (Status, error) {
	raw = strings.TrimSpace(raw)
	switch strings.ToUpper(raw) {
	case skippedLabel:
		return StatusSkipped, nil
	case errorLabel:
		return StatusError, nil
	}
	code, err := strconv.Atoi(raw)
	if err != nil || code <= 0 {
		return 0, fmt.Errorf("invalid status %q", raw)
	}
	return Status(code), nil
}

// Outcome is the recorded result of one work item.
type Outcome struct {
	Timestamp time.Time
	RequestID string
	Operation string
	Method    string
	Endpoint  string
	Payload   string
	Status    Status
	Latency   time.Duration
	Response  string
}

// LatencyMs returns the latency in fractional milliseconds.
func (o Outcome) LatencyMs() float64 {
	return float64(o.Latency) / float64(time.Millisecond)
}

// Truncate returns the longest prefix of s holding at most MaxResponseRunes
// runes. Invalid UTF-8 bytes count as one rune each and are kept as is, so the
// result is always a byte prefix of s no longer than 4*MaxResponseRunes.
func Truncate(s string) string {
	if len(s) <= MaxResponseRunes {
		return s
	}
	i := 0
	for n := 0; n < MaxResponseRunes && i < len(s); n++ {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return s[:i]
}
