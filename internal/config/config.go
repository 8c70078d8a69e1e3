package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/loadmix/loadmix/internal/catalog"
)

type Config struct {
	TargetURL   string            `mapstructure:"target"`
	Headers     map[string]string `mapstructure:"headers"`
	Concurrency int               `mapstructure:"concurrency"`
	Writes      int               `mapstructure:"writes"`
	Reads       int               `mapstructure:"reads"`
	WriteMix    []string          `mapstructure:"write_mix"`
	ReadMix     []string          `mapstructure:"read_mix"`
	Timeout     time.Duration     `mapstructure:"timeout"`
	Rate        int               `mapstructure:"rate"`
	Seed        *int64            `mapstructure:"seed"`
	OutputFile  string            `mapstructure:"output"`
	JSONOutput  bool              `mapstructure:"json_output"`
	YAMLOutput  bool              `mapstructure:"yaml_output"`
	LogErrors   bool              `mapstructure:"log_errors"`
	LogLevel    string            `mapstructure:"log_level"`
	LogFormat   string            `mapstructure:"log_format"`
	Progress    bool              `mapstructure:"progress"`
	Thresholds  []string          `mapstructure:"thresholds"`
	MetricsAddr string            `mapstructure:"metrics_addr"`
	Tracing     TracingConfig     `mapstructure:"tracing"`
	ConfigFile  string            `mapstructure:"-"`
}

// TracingConfig configures OpenTelemetry export of per-request spans.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"` // "grpc" or "http"
	ServiceName string  `mapstructure:"service_name"`
	Insecure    bool    `mapstructure:"insecure"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Propagate   bool    `mapstructure:"propagate"`
}

// Enabled reports whether spans should be created at all.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != "" || t.Propagate
}

// ShouldPropagate reports whether W3C trace headers are sent to the target.
func (t TracingConfig) ShouldPropagate() bool {
	return t.Propagate
}

// PlanSize returns the number of work items the configuration expands to.
func (c Config) PlanSize() int {
	size := 0
	if c.Writes > 0 {
		size += c.Writes * len(c.WriteMix)
	}
	if c.Reads > 0 {
		size += c.Reads * len(c.ReadMix)
	}
	return size
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string

	target := strings.TrimSpace(c.TargetURL)
	if target == "" {
		issues = append(issues, "target is required (use --help for usage information)")
	} else if u, err := url.Parse(target); err != nil || u.Scheme == "" || u.Host == "" {
		issues = append(issues, fmt.Sprintf("target %q must be an absolute URL", target))
	}

	if c.Concurrency > 1000 {
		fmt.Fprintf(os.Stderr, "WARNING: High concurrency configured (%d workers). Ensure you have authorization to test the target system.\n", c.Concurrency)
	}

	if c.Concurrency < 1 {
		issues = append(issues, "concurrency must be >= 1")
	}
	if c.Writes < 0 {
		issues = append(issues, "writes must be >= 0")
	}
	if c.Reads < 0 {
		issues = append(issues, "reads must be >= 0")
	}
	if c.Timeout <= 0 {
		issues = append(issues, "timeout must be > 0")
	}
	if c.Rate < 0 {
		issues = append(issues, "rate must be >= 0")
	}
	if c.JSONOutput && c.YAMLOutput {
		issues = append(issues, "json-output and yaml-output are mutually exclusive")
	}

	if _, err := catalog.Resolve(c.WriteMix); err != nil {
		issues = append(issues, fmt.Sprintf("write_mix: %v", err))
	}
	if _, err := catalog.Resolve(c.ReadMix); err != nil {
		issues = append(issues, fmt.Sprintf("read_mix: %v", err))
	}

	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		issues = append(issues, fmt.Sprintf("log level %q is not supported", c.LogLevel))
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "console", "json":
	default:
		issues = append(issues, fmt.Sprintf("log format %q is not supported (use console or json)", c.LogFormat))
	}

	issues = append(issues, validateTracingConfig(c.Tracing)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}

	return nil
}

func validateTracingConfig(t TracingConfig) []string {
	var issues []string
	switch strings.ToLower(t.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing: protocol must be 'grpc' or 'http', got %q", t.Protocol))
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, fmt.Sprintf("tracing: sample_rate must be between 0.0 and 1.0, got %g", t.SampleRate))
	}
	return issues
}
