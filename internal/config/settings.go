// Package config provides configuration loading and parsing for loadmix.
package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// settingKey folds "write_mix", "write-mix" and "WriteMix" to one form.
func settingKey(key string) string {
	return strings.NewReplacer("_", "", "-", "").Replace(strings.ToLower(strings.TrimSpace(key)))
}

// lookupSetting finds key in a decoded config file section, ignoring case
// and '_' or '-' separators.
func lookupSetting(settings map[string]interface{}, key string) (interface{}, bool) {
	if val, ok := settings[key]; ok {
		return val, true
	}
	want := settingKey(key)
	for k, val := range settings {
		if settingKey(k) == want {
			return val, true
		}
	}
	return nil, false
}

func asString(value interface{}) (string, error) {
	return cast.ToStringE(value)
}

// asInt accepts integers, integral floats (JSON numbers) and numeric strings.
func asInt(value interface{}) (int, error) {
	if err := rejectFraction(value); err != nil {
		return 0, err
	}
	return cast.ToIntE(value)
}

// asInt64 is asInt for values such as seeds that must keep all 64 bits.
func asInt64(value interface{}) (int64, error) {
	if err := rejectFraction(value); err != nil {
		return 0, err
	}
	if s, ok := value.(string); ok {
		value = strings.TrimSpace(s)
	}
	return cast.ToInt64E(value)
}

func rejectFraction(value interface{}) error {
	var f float64
	switch v := value.(type) {
	case float32:
		f = float64(v)
	case float64:
		f = v
	default:
		return nil
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return fmt.Errorf("%v is not a whole number", value)
	}
	if math.Abs(f) > 1<<53 {
		return fmt.Errorf("%v is too large to be exact, quote it as a string", value)
	}
	return nil
}

func asFloat64(value interface{}) (float64, error) {
	if s, ok := value.(string); ok {
		value = strings.TrimSpace(s)
	}
	return cast.ToFloat64E(value)
}

func asBool(value interface{}) (bool, error) {
	if s, ok := value.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			return false, nil
		}
		value = s
	}
	return cast.ToBoolE(value)
}

// asDuration parses Go duration strings; bare numbers are seconds.
func asDuration(value interface{}) (time.Duration, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case time.Duration:
		return v, nil
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return 0, nil
		}
		return time.ParseDuration(v)
	}
	secs, err := cast.ToFloat64E(value)
	if err != nil {
		return 0, fmt.Errorf("unsupported duration %v (%T)", value, value)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func asStringMap(value interface{}) (map[string]string, error) {
	if value == nil {
		return nil, nil
	}
	m, err := cast.ToStringMapStringE(value)
	if err != nil {
		return nil, err
	}
	for key := range m {
		if strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("header key cannot be empty")
		}
	}
	return m, nil
}

// asStringSlice accepts a list, or one string of comma-separated names.
func asStringSlice(value interface{}) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		var out []string
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, nil
	}
	return cast.ToStringSliceE(value)
}

func asSection(value interface{}) (map[string]interface{}, error) {
	return cast.ToStringMapE(value)
}
