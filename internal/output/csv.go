package output

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/loadmix/loadmix/internal/outcome"
)

// CSVHeader is the fixed column set of the per-request record file.
var CSVHeader = []string{"timestamp", "method", "endpoint", "payload", "status", "latency_ms", "response"}

// ErrOutputLocked is returned when another run holds the output file.
var ErrOutputLocked = errors.New("output file is locked by another run")

// CSVWriter writes one row per outcome. It holds an exclusive lock on
// "<path>.lock" from Create until Close. The lock file is left in place so
// every run locks the same inode.
type CSVWriter struct {
	path string
	file *os.File
	w    *csv.Writer
	lock *flock.Flock
	rows int
}

// CreateCSV truncates path, writes the header and returns the writer.
func CreateCSV(path string) (*CSVWriter, error) {
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%s: %w", path, ErrOutputLocked)
	}

	file, err := os.Create(path)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("create %s: %w", path, err)
	}

	cw := &CSVWriter{path: path, file: file, w: csv.NewWriter(file), lock: lock}
	if err := cw.w.Write(CSVHeader); err != nil {
		_ = cw.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}
	return cw, nil
}

// Write appends one outcome row.
func (c *CSVWriter) Write(o outcome.Outcome) error {
	if err := c.w.Write(csvRow(o)); err != nil {
		return fmt.Errorf("write row %d: %w", c.rows+1, err)
	}
	c.rows++
	return nil
}

// Rows returns the number of data rows written.
func (c *CSVWriter) Rows() int {
	return c.rows
}

// Close flushes buffered rows, closes the file and releases the lock.
func (c *CSVWriter) Close() error {
	c.w.Flush()
	flushErr := c.w.Error()
	closeErr := c.file.Close()
	unlockErr := c.lock.Unlock()

	switch {
	case flushErr != nil:
		return fmt.Errorf("flush %s: %w", c.path, flushErr)
	case closeErr != nil:
		return fmt.Errorf("close %s: %w", c.path, closeErr)
	case unlockErr != nil:
		return fmt.Errorf("unlock %s: %w", c.path, unlockErr)
	}
	return nil
}

// WriteCSVFile writes every outcome to path.
func WriteCSVFile(path string, outcomes []outcome.Outcome) error {
	cw, err := CreateCSV(path)
	if err != nil {
		return err
	}
	for _, o := range outcomes {
		if err := cw.Write(o); err != nil {
			_ = cw.Close()
			return err
		}
	}
	return cw.Close()
}

func csvRow(o outcome.Outcome) []string {
	return []string{
		o.Timestamp.Format(time.RFC3339Nano),
		o.Method,
		o.Endpoint,
		escapeField(o.Payload),
		o.Status.String(),
		strconv.FormatFloat(o.LatencyMs(), 'f', -1, 64),
		escapeField(o.Response),
	}
}

// encoding/csv folds CRLF inside quoted fields into LF on read, so free-text
// columns carry CR as the two bytes `\r` and a literal backslash as `\\`.
var fieldEscaper = strings.NewReplacer(`\`, `\\`, "\r", `\r`)

func escapeField(s string) string {
	return fieldEscaper.Replace(s)
}

func unescapeField(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case '\\':
				b.WriteByte('\\')
				i++
				continue
			case 'r':
				b.WriteByte('\r')
				i++
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// ReadCSV parses a file produced by CSVWriter back into outcomes. Operation
// and RequestID are not part of the record and stay empty.
func ReadCSV(r io.Reader) ([]outcome.Outcome, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(CSVHeader)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, name := range CSVHeader {
		if header[i] != name {
			return nil, fmt.Errorf("unexpected column %d: got %q, want %q", i+1, header[i], name)
		}
	}

	var outcomes []outcome.Outcome
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		o, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, nil
}

func parseRow(row []string) (outcome.Outcome, error) {
	ts, err := time.Parse(time.RFC3339Nano, row[0])
	if err != nil {
		return outcome.Outcome{}, fmt.Errorf("timestamp: %w", err)
	}
	status, err := outcome.ParseStatus(row[4])
	if err != nil {
		return outcome.Outcome{}, err
	}
	ms, err := strconv.ParseFloat(row[5], 64)
	if err != nil {
		return outcome.Outcome{}, fmt.Errorf("latency_ms: %w", err)
	}
	return outcome.Outcome{
		Timestamp: ts,
		Method:    row[1],
		Endpoint:  row[2],
		Payload:   unescapeField(row[3]),
		Status:    status,
		Latency:   time.Duration(math.Round(ms * float64(time.Millisecond))),
		Response:  unescapeField(row[6]),
	}, nil
}
