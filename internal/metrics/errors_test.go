package metrics

import "testing"

func TestClassifyError(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"", "Unknown error"},
		{`Post "http://x/api/users": context deadline exceeded (Client.Timeout exceeded while awaiting headers)`, "Request timeout"},
		{`Get "http://127.0.0.1:1/api/users/search?name=User": dial tcp 127.0.0.1:1: connect: connection refused`, "Connection refused"},
		{"read body: unexpected EOF", "Response read error"},
		{`Post "http://x/api/logs": EOF`, "Connection closed"},
		{"panic: boom", "Worker panic"},
		{"dial tcp: lookup nowhere.invalid: no such host", "DNS lookup failed"},
		{"something unexpected", "Other error"},
	}
	for _, tt := range tests {
		if got := ClassifyError(tt.text); got != tt.want {
			t.Errorf("ClassifyError(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}
