// Package analyzer runs the detectors over a dataset file.
package analyzer

import (
	"context"
	"log/slog"
	"path/filepath"

	"vaultsphere/internal/cache"
	"vaultsphere/internal/dataset"
	"vaultsphere/internal/detection"
	"vaultsphere/internal/report"
	"vaultsphere/internal/schema"
	"vaultsphere/internal/tenant"
)

// maxLoggedRows caps the malformed rows logged individually.
const maxLoggedRows = 5

// Result is the outcome of analyzing one file.
type Result struct {
	Path        string
	Fingerprint string
	Report      *detection.Report
	// Profile and Malformed are nil when the report came from the cache.
	Profile   *dataset.Profile
	Malformed []*dataset.MalformedRecordError
	Cached    bool
}

// Document prepares the result for rendering.
func (r *Result) Document() *report.Document {
	return report.New(r.Report, r.Profile, r.Malformed)
}

// Analyzer reads dataset files and analyzes them.
type Analyzer struct {
	detector  *detection.Detector
	catalog   *tenant.Catalog
	validator *schema.Validator
	cache     *cache.ReportCache
	logger    *slog.Logger
}

// New creates an Analyzer. A nil catalog accepts any tenant.
func New(det *detection.Detector, catalog *tenant.Catalog, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		detector:  det,
		catalog:   catalog,
		validator: schema.NewValidator(),
		logger:    logger,
	}
}

// WithCache makes AnalyzeFile reuse reports of identical files.
func (a *Analyzer) WithCache(c *cache.ReportCache) *Analyzer {
	a.cache = c
	return a
}

// AnalyzeFile analyzes the dataset at path. A missing file yields a
// *dataset.MissingInputError. Cache failures are logged and skipped.
func (a *Analyzer) AnalyzeFile(ctx context.Context, path string) (*Result, error) {
	fp, err := dataset.Fingerprint(path)
	if err != nil {
		return nil, err
	}
	res := &Result{Path: path, Fingerprint: fp}

	var key string
	if a.cache != nil {
		key, err = a.cache.Key(fp, a.detector.Config(), a.catalog)
		if err != nil {
			return nil, err
		}
		r, ok, err := a.cache.Get(ctx, key)
		switch {
		case err != nil:
			a.logger.Warn("report cache unavailable", "error", err)
		case ok:
			a.logger.Info("reusing cached report", "file", path, "fingerprint", fp)
			res.Report = r
			res.Cached = true
			return res, nil
		}
	}

	data, err := dataset.ReadFile(path, dataset.ReadOptions{Validator: a.validator, Catalog: a.catalog})
	if err != nil {
		return nil, err
	}
	for i, m := range data.Malformed {
		if i == maxLoggedRows {
			a.logger.Warn("further malformed rows not logged", "remaining", len(data.Malformed)-maxLoggedRows)
			break
		}
		a.logger.Warn("skipping malformed row", "file", path, "line", m.Line, "field", m.Field, "error", m.Err)
	}

	r := a.detector.Analyze(data.Events)
	r.Source = filepath.Base(path)
	r.Malformed = len(data.Malformed)
	r.Evaluation = detection.Evaluate(r, data.Events)

	res.Report = r
	res.Profile = dataset.BuildProfile(data.Events, a.catalog)
	res.Malformed = data.Malformed

	if a.cache != nil {
		if err := a.cache.Put(ctx, key, r); err != nil {
			a.logger.Warn("failed to cache report", "error", err)
		}
	}
	return res, nil
}
