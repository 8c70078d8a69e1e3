package config

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/loadmix/loadmix/internal/catalog"
)

// RegisterFlags registers all CLI flags to a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "loadmix",
		Short:         "Replay a shuffled mix of writes and searches against an HTTP service",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Target flags
	flags.String("target", "", "Base URL of the service under test (e.g. http://localhost:8080)")
	flags.StringSlice("header", nil, "Additional request header in key=value form")

	// Plan flags
	flags.IntP("concurrency", "c", defaultConcurrency, "Number of concurrent workers")
	flags.Int("writes", defaultWrites, "Repetitions of the write mix")
	flags.Int("reads", defaultReads, "Repetitions of the read mix")
	flags.StringSlice("write-mix", catalog.DefaultWriteMix(), "Operations in the write mix")
	flags.StringSlice("read-mix", catalog.DefaultReadMix(), "Operations in the read mix")
	flags.Int64("seed", 0, "Seed for plan order and payloads (unset means random)")

	// Execution flags
	flags.Duration("timeout", defaultTimeout, "Per-request timeout (must be > 0)")
	flags.IntP("rate", "r", 0, "Requests per second limit (0 means unlimited)")

	// Output flags
	flags.StringP("output", "o", "", "Write every request outcome to this CSV file")
	flags.Bool("json-output", false, "Emit JSON formatted summary")
	flags.Bool("yaml-output", false, "Emit YAML formatted summary")
	flags.Bool("progress", true, "Show live progress while the run executes")
	flags.Bool("log-errors", false, "Log each failed request")
	flags.String("log-level", "info", "Log level: debug, info, warn, error")
	flags.String("log-format", "console", "Log format: console or json")
	flags.StringSlice("threshold", nil, "Performance thresholds (repeatable, e.g., 'http_req_failed:rate < 0.01')")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address during the run (e.g. :9102)")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	// Tracing flags
	flags.String("tracing-endpoint", "", "OTLP endpoint for request spans")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: grpc or http")
	flags.String("tracing-service-name", "", "Service name reported on spans")
	flags.Bool("tracing-insecure", false, "Disable TLS for the OTLP exporter")
	flags.Float64("tracing-sample-rate", 1.0, "Fraction of requests to trace (0.0-1.0)")
	flags.Bool("tracing-propagate", false, "Send W3C trace headers to the target")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nOperations: %s\n\nFlags:\n", cmd.UseLine(), strings.Join(catalog.Names(), ", "))
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	stringFlags := []struct {
		name string
		dst  *string
	}{
		{"target", &cfg.TargetURL},
		{"output", &cfg.OutputFile},
		{"log-level", &cfg.LogLevel},
		{"log-format", &cfg.LogFormat},
		{"metrics-addr", &cfg.MetricsAddr},
		{"tracing-endpoint", &cfg.Tracing.Endpoint},
		{"tracing-protocol", &cfg.Tracing.Protocol},
		{"tracing-service-name", &cfg.Tracing.ServiceName},
	}
	for _, f := range stringFlags {
		if !fs.Changed(f.name) {
			continue
		}
		val, err := fs.GetString(f.name)
		if err != nil {
			return err
		}
		*f.dst = strings.TrimSpace(val)
	}

	intFlags := []struct {
		name string
		dst  *int
	}{
		{"concurrency", &cfg.Concurrency},
		{"writes", &cfg.Writes},
		{"reads", &cfg.Reads},
		{"rate", &cfg.Rate},
	}
	for _, f := range intFlags {
		if !fs.Changed(f.name) {
			continue
		}
		val, err := fs.GetInt(f.name)
		if err != nil {
			return err
		}
		*f.dst = val
	}

	boolFlags := []struct {
		name string
		dst  *bool
	}{
		{"json-output", &cfg.JSONOutput},
		{"yaml-output", &cfg.YAMLOutput},
		{"progress", &cfg.Progress},
		{"log-errors", &cfg.LogErrors},
		{"tracing-insecure", &cfg.Tracing.Insecure},
		{"tracing-propagate", &cfg.Tracing.Propagate},
	}
	for _, f := range boolFlags {
		if !fs.Changed(f.name) {
			continue
		}
		val, err := fs.GetBool(f.name)
		if err != nil {
			return err
		}
		*f.dst = val
	}

	if fs.Changed("timeout") {
		val, err := fs.GetDuration("timeout")
		if err != nil {
			return err
		}
		cfg.Timeout = val
	}
	if fs.Changed("seed") {
		val, err := fs.GetInt64("seed")
		if err != nil {
			return err
		}
		cfg.Seed = &val
	}
	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}
	if fs.Changed("write-mix") {
		val, err := fs.GetStringSlice("write-mix")
		if err != nil {
			return err
		}
		cfg.WriteMix = val
	}
	if fs.Changed("read-mix") {
		val, err := fs.GetStringSlice("read-mix")
		if err != nil {
			return err
		}
		cfg.ReadMix = val
	}
	if fs.Changed("threshold") {
		val, err := fs.GetStringSlice("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = val
	}

	vals, err := fs.GetStringSlice("header")
	if err != nil {
		return err
	}
	if len(vals) > 0 {
		if cfg.Headers == nil {
			cfg.Headers = map[string]string{}
		}
		for _, entry := range vals {
			parts := strings.SplitN(entry, "=", 2)
			if len(parts) != 2 {
				return fmt.Errorf("header must be in key=value format: %s", entry)
			}
			key := http.CanonicalHeaderKey(strings.TrimSpace(parts[0]))
			if key == "" {
				return fmt.Errorf("header key cannot be empty")
			}
			cfg.Headers[key] = strings.TrimSpace(parts[1])
		}
	}

	return nil
}
