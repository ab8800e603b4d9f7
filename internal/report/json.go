package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/nao1215/pharmacrawl/internal/model"
)

// FailedURL is one failed target in the JSON summary.
type FailedURL struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

// Summary is the machine-readable run summary.
type Summary struct {
	State                 string      `json:"state"`
	Policy                string      `json:"policy"`
	TotalProcessed        int         `json:"total_processed"`
	SuccessfulExtractions int         `json:"successful_extractions"`
	FailedExtractions     int         `json:"failed_extractions"`
	NotAttempted          int         `json:"not_attempted"`
	FailedURLs            []FailedURL `json:"failed_urls"`
	Error                 string      `json:"error,omitempty"`
	ErrorKind             string      `json:"error_kind,omitempty"`
	Artifact              string      `json:"artifact,omitempty"`
	StartedAt             time.Time   `json:"started_at"`
	FinishedAt            time.Time   `json:"finished_at"`
	ElapsedMS             int64       `json:"elapsed_ms"`
	DiscoveryDigest       string      `json:"discovery_digest,omitempty"`
	ExtractionDigest      string      `json:"extraction_digest,omitempty"`

	// Records holds the extracted records when requested with WithRecords.
	Records []any `json:"records,omitempty"`
}

// NewSummary builds the summary of report.
func NewSummary(report *model.RunReport) *Summary {
	s := &Summary{
		State:                 report.State.String(),
		Policy:                report.Policy.String(),
		TotalProcessed:        len(report.Targets),
		SuccessfulExtractions: report.SucceededCount(),
		FailedExtractions:     report.FailedCount(),
		NotAttempted:          report.NotAttemptedCount(),
		FailedURLs:            []FailedURL{},
		Error:                 report.ErrorMessage,
		ErrorKind:             report.ErrorKind,
		Artifact:              report.Artifact,
		StartedAt:             report.StartedAt,
		FinishedAt:            report.FinishedAt,
		ElapsedMS:             report.Elapsed().Milliseconds(),
		DiscoveryDigest:       report.DiscoveryDigest,
		ExtractionDigest:      report.ExtractionDigest,
	}
	for _, o := range report.FailedOutcomes() {
		s.FailedURLs = append(s.FailedURLs, FailedURL{URL: o.URL, Error: o.Error})
	}
	return s
}

// JSONWriter outputs the run summary as JSON.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	indent bool

	// records includes the extracted records in the summary.
	records bool
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithPrettyPrint enables pretty-printed JSON with two-space indentation.
func WithPrettyPrint() JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
	}
}

// WithRecords includes the extracted records in the summary.
func WithRecords() JSONWriterOption {
	return func(w *JSONWriter) {
		w.records = true
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the summary of report.
func (w *JSONWriter) Write(report *model.RunReport) (int, error) {
	s := NewSummary(report)
	if w.records {
		s.Records = report.Results.Records()
	}

	var (
		data []byte
		err  error
	)
	if w.indent {
		data, err = json.MarshalIndent(s, "", "  ")
	} else {
		data, err = json.Marshal(s)
	}
	if err != nil {
		return 0, err
	}

	// Add trailing newline for better terminal output
	data = append(data, '\n')

	return w.output.Write(data)
}
