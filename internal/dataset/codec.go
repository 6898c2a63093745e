package dataset

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"vaultsphere/internal/schema"
	"vaultsphere/internal/tenant"
)

// TimeLayout is the timestamp format of the timestamp column, in UTC.
const TimeLayout = "2006-01-02 15:04:05"

// Header is the canonical column order. Every file starts with it.
var Header = []string{
	"timestamp",
	"tenant_id",
	"user_id",
	"resource_id",
	"event_type",
	"status",
	"ip_address",
	"anomaly_injected",
}

const (
	colTimestamp = iota
	colTenant
	colUser
	colResource
	colEventType
	colStatus
	colIP
	colLabel
)

// FormatRecord renders an event as a row in canonical column order.
func FormatRecord(e *schema.Event) []string {
	label := "0"
	if e.AnomalyInjected {
		label = "1"
	}
	return []string{
		e.Timestamp.UTC().Format(TimeLayout),
		strconv.Itoa(e.TenantID),
		e.UserID,
		e.ResourceID,
		e.EventType,
		string(e.Status),
		e.IPAddress,
		label,
	}
}

// ParseRecord parses one canonical row. line is used for error reporting.
func ParseRecord(line int, rec []string) (schema.Event, error) {
	var e schema.Event
	if len(rec) != len(Header) {
		return e, malformed(line, "", "", fmt.Errorf("%w: got %d, want %d", ErrFieldCount, len(rec), len(Header)))
	}

	ts, err := time.ParseInLocation(TimeLayout, rec[colTimestamp], time.UTC)
	if err != nil {
		return e, malformed(line, Header[colTimestamp], rec[colTimestamp], ErrInvalidTimestamp)
	}
	tenantID, err := strconv.Atoi(rec[colTenant])
	if err != nil || tenantID <= 0 {
		return e, malformed(line, Header[colTenant], rec[colTenant], ErrInvalidTenant)
	}
	if _, err := schema.ParseResourceID(rec[colResource]); err != nil {
		return e, malformed(line, Header[colResource], rec[colResource], ErrInvalidResource)
	}
	status := schema.Status(rec[colStatus])
	if !status.IsValid() {
		return e, malformed(line, Header[colStatus], rec[colStatus], ErrInvalidStatus)
	}
	var injected bool
	switch rec[colLabel] {
	case "0":
	case "1":
		injected = true
	default:
		return e, malformed(line, Header[colLabel], rec[colLabel], ErrInvalidLabel)
	}

	return schema.Event{
		Timestamp:       ts,
		TenantID:        tenantID,
		UserID:          rec[colUser],
		ResourceID:      rec[colResource],
		EventType:       rec[colEventType],
		Status:          status,
		IPAddress:       rec[colIP],
		AnomalyInjected: injected,
	}, nil
}

// Write writes the header followed by one row per event.
func Write(w io.Writer, events []schema.Event) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for i := range events {
		if err := cw.Write(FormatRecord(&events[i])); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes events to path, creating parent directories. Paths ending
// in .gz are gzip-compressed.
func WriteFile(path string, events []schema.Event) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create dataset file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	bw := bufio.NewWriter(f)
	var w io.Writer = bw
	var gz *gzip.Writer
	if IsCompressed(path) {
		gz = gzip.NewWriter(bw)
		w = gz
	}

	if err := Write(w, events); err != nil {
		return fmt.Errorf("failed to write dataset: %w", err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return fmt.Errorf("failed to finish gzip stream: %w", err)
		}
	}
	return bw.Flush()
}

// IsCompressed reports whether path names a gzip-compressed dataset.
func IsCompressed(path string) bool {
	return strings.HasSuffix(path, ".gz")
}

// ReadOptions controls row validation while reading.
type ReadOptions struct {
	// Validator applies the full record checks when set.
	Validator *schema.Validator
	// Catalog restricts tenants and event vocabularies when set.
	Catalog *tenant.Catalog
}

// Result holds the parsed events and every skipped row.
type Result struct {
	Events    []schema.Event
	Malformed []*MalformedRecordError
}

// Rows returns the number of data rows seen, parsed or not.
func (r *Result) Rows() int {
	return len(r.Events) + len(r.Malformed)
}

// Read parses a canonical dataset. Malformed rows are collected in the
// result; a bad header is returned as an error.
func Read(r io.Reader, opts ReadOptions) (*Result, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &MalformedRecordError{Line: 1, Err: fmt.Errorf("%w: empty input", ErrHeaderMismatch)}
		}
		return nil, &MalformedRecordError{Line: 1, Err: fmt.Errorf("%w: %v", ErrHeaderMismatch, err)}
	}
	if err := checkHeader(header); err != nil {
		return nil, &MalformedRecordError{Line: 1, Value: strings.Join(header, ","), Err: err}
	}

	res := &Result{}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				res.Malformed = append(res.Malformed, malformed(perr.StartLine, "", "", perr.Err))
				continue
			}
			return nil, fmt.Errorf("failed to read dataset: %w", err)
		}

		line, _ := cr.FieldPos(0)
		e, err := ParseRecord(line, rec)
		if err != nil {
			res.Malformed = append(res.Malformed, err.(*MalformedRecordError))
			continue
		}
		if opts.Validator != nil {
			if err := opts.Validator.Validate(&e); err != nil {
				res.Malformed = append(res.Malformed, malformed(line, "", "", fmt.Errorf("%w: %v", ErrInvalidRecord, err)))
				continue
			}
		}
		if opts.Catalog != nil {
			if err := opts.Catalog.CheckEvent(&e); err != nil {
				res.Malformed = append(res.Malformed, malformed(line, "", "", fmt.Errorf("%w: %v", ErrInvalidRecord, err)))
				continue
			}
		}
		res.Events = append(res.Events, e)
	}
	return res, nil
}

// ReadFile opens path and reads it with Read. A missing file yields a
// *MissingInputError.
func ReadFile(path string, opts ReadOptions) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &MissingInputError{Path: path, Err: err}
		}
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	var r io.Reader = bufio.NewReader(f)
	if IsCompressed(path) {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer gz.Close()
		r = gz
	}
	return Read(r, opts)
}

func checkHeader(header []string) error {
	if len(header) != len(Header) {
		return fmt.Errorf("%w: got %d columns, want %d", ErrHeaderMismatch, len(header), len(Header))
	}
	for i, col := range header {
		if strings.TrimSpace(col) != Header[i] {
			return fmt.Errorf("%w: column %d is %q, want %q", ErrHeaderMismatch, i+1, col, Header[i])
		}
	}
	return nil
}
