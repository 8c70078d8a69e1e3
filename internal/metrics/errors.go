package metrics

import "strings"

// errorKinds maps fragments of transport error text to report labels.
// Order matters: the first match wins.
var errorKinds = []struct {
	fragment string
	label    string
}{
	{"panic:", "Worker panic"},
	{"build payload", "Payload build error"},
	{"build request", "Request build error"},
	{"read body", "Response read error"},
	{"Client.Timeout", "Request timeout"},
	{"deadline exceeded", "Request timeout"},
	{"i/o timeout", "Request timeout"},
	{"context canceled", "Cancelled"},
	{"connection refused", "Connection refused"},
	{"connection reset", "Connection reset"},
	{"no such host", "DNS lookup failed"},
	{"tls:", "TLS error"},
	{"x509:", "TLS error"},
	{"EOF", "Connection closed"},
}

// ClassifyError returns a human-friendly label for an ERROR outcome's text.
func ClassifyError(text string) string {
	cleaned := strings.TrimSpace(text)
	if cleaned == "" {
		return "Unknown error"
	}
	for _, kind := range errorKinds {
		if strings.Contains(cleaned, kind.fragment) {
			return kind.label
		}
	}
	return "Other error"
}
