// Package report renders analysis results as a styled console report or as
// JSON.
package report

import (
	"fmt"
	"io"

	json "github.com/goccy/go-json"

	"vaultsphere/internal/dataset"
	"vaultsphere/internal/detection"
)

// Document is everything one analysis run reports.
type Document struct {
	Report          *detection.Report `json:"report"`
	Profile         *dataset.Profile  `json:"profile,omitempty"`
	Recommendations []string          `json:"recommendations"`
	// Rejected lists the first malformed rows, for display only.
	Rejected []string `json:"rejected,omitempty"`
}

// maxRejected caps the malformed rows carried into a Document.
const maxRejected = 10

// New assembles a Document. profile and rejected may be nil.
func New(r *detection.Report, profile *dataset.Profile, rejected []*dataset.MalformedRecordError) *Document {
	doc := &Document{
		Report:          r,
		Profile:         profile,
		Recommendations: r.Recommendations(),
	}
	if doc.Recommendations == nil {
		doc.Recommendations = []string{}
	}
	for i, m := range rejected {
		if i == maxRejected {
			doc.Rejected = append(doc.Rejected, fmt.Sprintf("... and %d more", len(rejected)-maxRejected))
			break
		}
		doc.Rejected = append(doc.Rejected, m.Error())
	}
	return doc
}

// WriteJSON writes doc as indented JSON.
func WriteJSON(w io.Writer, doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
