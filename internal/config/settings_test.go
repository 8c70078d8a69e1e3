package config

import (
	"testing"
	"time"
)

func TestLookupSettingIgnoresSeparators(t *testing.T) {
	settings := map[string]interface{}{
		"write-mix":   "create_user",
		"samplerate":  0.5,
		"Log_Format":  "json",
		"concurrency": 3,
	}
	for _, key := range []string{"write_mix", "sample_rate", "log_format", "concurrency"} {
		if _, ok := lookupSetting(settings, key); !ok {
			t.Errorf("lookupSetting(%q) not found", key)
		}
	}
	if _, ok := lookupSetting(settings, "reads"); ok {
		t.Error("lookupSetting(reads) should be absent")
	}
}

func TestAsInt(t *testing.T) {
	tests := []struct {
		input   interface{}
		want    int
		wantErr bool
	}{
		{input: 100, want: 100},
		{input: "50", want: 50},
		{input: float64(8), want: 8},
		{input: nil, want: 0},
		{input: 2.5, wantErr: true},
		{input: "many", wantErr: true},
	}

	for _, tt := range tests {
		got, err := asInt(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("asInt(%v) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("asInt(%v) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestAsInt64KeepsSeedBits(t *testing.T) {
	tests := []struct {
		input   interface{}
		want    int64
		wantErr bool
	}{
		{input: int64(9007199254740993), want: 9007199254740993},
		{input: " 9223372036854775807 ", want: 9223372036854775807},
		{input: 42, want: 42},
		{input: float64(1 << 40), want: 1 << 40},
		{input: float64(1 << 60), wantErr: true},
		{input: 0.5, wantErr: true},
	}

	for _, tt := range tests {
		got, err := asInt64(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("asInt64(%v) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("asInt64(%v) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestAsBool(t *testing.T) {
	tests := []struct {
		input interface{}
		want  bool
	}{
		{true, true},
		{" true ", true},
		{"1", true},
		{"false", false},
		{"", false},
		{nil, false},
	}

	for _, tt := range tests {
		got, err := asBool(tt.input)
		if err != nil {
			t.Errorf("asBool(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asBool(%v) = %v, want %v", tt.input, got, tt.want)
		}
	}

	if _, err := asBool("sometimes"); err == nil {
		t.Error("asBool(sometimes) should fail")
	}
}

func TestAsDurationTreatsNumbersAsSeconds(t *testing.T) {
	tests := []struct {
		input interface{}
		want  time.Duration
	}{
		{"750ms", 750 * time.Millisecond},
		{30, 30 * time.Second},
		{1.5, 1500 * time.Millisecond},
		{time.Minute, time.Minute},
		{"", 0},
		{nil, 0},
	}

	for _, tt := range tests {
		got, err := asDuration(tt.input)
		if err != nil {
			t.Errorf("asDuration(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asDuration(%v) = %v, want %v", tt.input, got, tt.want)
		}
	}

	if _, err := asDuration("soon"); err == nil {
		t.Error("asDuration(soon) should fail")
	}
}

func TestAsStringSliceSplitsCommaList(t *testing.T) {
	got, err := asStringSlice("create_user, create_log,,")
	if err != nil {
		t.Fatalf("asStringSlice() error = %v", err)
	}
	if len(got) != 2 || got[0] != "create_user" || got[1] != "create_log" {
		t.Errorf("asStringSlice() = %v", got)
	}

	got, err = asStringSlice([]interface{}{"search_users", "search_products"})
	if err != nil || len(got) != 2 {
		t.Errorf("asStringSlice(list) = %v, %v", got, err)
	}
}

func TestAsStringMapRejectsEmptyKey(t *testing.T) {
	if _, err := asStringMap(map[string]interface{}{" ": "x"}); err == nil {
		t.Error("expected error for empty header key")
	}
	m, err := asStringMap(map[interface{}]interface{}{"x-env": "load"})
	if err != nil || m["x-env"] != "load" {
		t.Errorf("asStringMap() = %v, %v", m, err)
	}
}
