package storage

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"vaultsphere/internal/dataset"
	"vaultsphere/internal/detection"
)

const insertFindingsQuery = `INSERT INTO findings (
	finding_id, category, rule_name, severity, tenant_id, user_id, title,
	event_count, mitre_technique, source, risk_level, detail, detected_at
)`

const insertRejectedQuery = `INSERT INTO rejected_records (
	rejected_id, source, line, field, value, error
)`

// ReportWriter stores the results of one analysis run.
type ReportWriter struct {
	client *ClickHouseClient
}

// NewReportWriter creates a new ReportWriter.
func NewReportWriter(client *ClickHouseClient) *ReportWriter {
	return &ReportWriter{client: client}
}

// WriteFindings inserts every finding of r in a single batch.
func (w *ReportWriter) WriteFindings(ctx context.Context, r *detection.Report) (int, error) {
	findings := r.Findings()
	if len(findings) == 0 {
		return 0, nil
	}

	batch, err := w.client.PrepareBatch(ctx, insertFindingsQuery)
	if err != nil {
		return 0, WrapQueryError("WriteFindings", "findings", err)
	}
	for i := range findings {
		row, err := findingRow(&findings[i], r.Risk.Level)
		if err != nil {
			batch.Abort()
			return 0, err
		}
		if err := batch.Append(row...); err != nil {
			batch.Abort()
			return 0, WrapBatchError("findings", err, 0)
		}
	}
	if err := batch.Send(); err != nil {
		return 0, WrapBatchError("findings", err, 0)
	}
	return len(findings), nil
}

// findingRow orders a finding's columns as in insertFindingsQuery.
func findingRow(f *detection.Finding, level detection.RiskLevel) ([]any, error) {
	detail, err := json.Marshal(f.Detail)
	if err != nil {
		return nil, fmt.Errorf("encode finding %s: %w", f.ID, err)
	}
	technique := ""
	if f.MITRE != nil {
		technique = f.MITRE.TechniqueID
	}
	return []any{
		f.ID,
		string(f.Category),
		f.RuleName,
		string(f.Severity),
		uint8(f.TenantID),
		f.UserID,
		f.Title,
		uint32(f.EventCount),
		technique,
		f.Source,
		string(level),
		string(detail),
		f.DetectedAt.UTC(),
	}, nil
}

// WriteRejected records rows the dataset reader skipped.
func (w *ReportWriter) WriteRejected(ctx context.Context, source string, rejected []*dataset.MalformedRecordError) error {
	if len(rejected) == 0 {
		return nil
	}

	batch, err := w.client.PrepareBatch(ctx, insertRejectedQuery)
	if err != nil {
		return WrapQueryError("WriteRejected", "rejected_records", err)
	}
	for _, rec := range rejected {
		if err := batch.Append(rejectedRow(source, rec)...); err != nil {
			batch.Abort()
			return WrapBatchError("rejected_records", err, 0)
		}
	}
	if err := batch.Send(); err != nil {
		return WrapBatchError("rejected_records", err, 0)
	}
	return nil
}

// rejectedRow derives a stable ID from source and line.
func rejectedRow(source string, rec *dataset.MalformedRecordError) []any {
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s#%d", source, rec.Line)))
	msg := ""
	if rec.Err != nil {
		msg = rec.Err.Error()
	}
	return []any{
		id,
		source,
		uint32(rec.Line),
		rec.Field,
		rec.Value,
		msg,
	}
}
