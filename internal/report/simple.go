package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/pharmacrawl/internal/model"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// SimpleWriter outputs a plain-text run summary for terminal display.
//
// The summary shows the final state, the failure policy, the counts of
// succeeded, failed and not attempted targets, and the failed URLs with
// their errors. With verbose output every target is listed with its status.
//
// Design decision: We list failures even in non-verbose mode because a
// skip-policy run exits successfully, and the summary is then the only
// place on the terminal where skipped targets show up.
type SimpleWriter struct {
	baseWriter

	// verbose lists every target, not only failures.
	verbose bool

	// title renders state and policy names for display.
	title cases.Caser
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose lists the outcome of every target.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		title:      cases.Title(language.English),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the summary of report.
func (w *SimpleWriter) Write(report *model.RunReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeCounts(&sb, report)
	w.writeTargets(&sb, report)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the run state and timing.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.RunReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                       PHARMACRAWL RUN SUMMARY\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "State:          %s\n", w.title.String(report.State.String()))
	fmt.Fprintf(sb, "Policy:         %s\n", w.title.String(report.Policy.String()))
	fmt.Fprintf(sb, "Started:        %s\n", formatTime(report.StartedAt))
	fmt.Fprintf(sb, "Elapsed:        %s\n", report.Elapsed().Round(time.Millisecond))

	if report.Artifact != "" {
		fmt.Fprintf(sb, "Artifact:       %s\n", report.Artifact)
	} else {
		sb.WriteString("Artifact:       none written\n")
	}

	if report.Err != nil || report.ErrorMessage != "" {
		fmt.Fprintf(sb, "Error:          [%s] %s\n", report.ErrorKind, report.ErrorMessage)
	}
	sb.WriteString("\n")
}

// writeCounts writes the per-status target counts.
func (w *SimpleWriter) writeCounts(sb *strings.Builder, report *model.RunReport) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("TARGETS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "  DISCOVERED:    %d\n", len(report.Targets))
	fmt.Fprintf(sb, "  SUCCEEDED:     %d\n", report.SucceededCount())
	fmt.Fprintf(sb, "  FAILED:        %d\n", report.FailedCount())
	fmt.Fprintf(sb, "  NOT ATTEMPTED: %d\n", report.NotAttemptedCount())
	sb.WriteString("\n")
}

// writeTargets lists failed targets, or every target in verbose mode.
func (w *SimpleWriter) writeTargets(sb *strings.Builder, report *model.RunReport) {
	outcomes := report.FailedOutcomes()
	heading := "FAILED TARGETS"
	if w.verbose {
		outcomes = report.Outcomes
		heading = "ALL TARGETS"
	}
	if len(outcomes) == 0 {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(heading + "\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	for _, o := range outcomes {
		fmt.Fprintf(sb, "  [%s] #%d %s\n", statusIndicator(o.Status), o.Index, o.URL)
		if o.Error != "" {
			fmt.Fprintf(sb, "        %s\n", o.Error)
		}
	}
	sb.WriteString("\n")
}

// statusIndicator returns a short marker for a target status.
func statusIndicator(status string) string {
	switch status {
	case model.TargetSucceeded:
		return "+"
	case model.TargetFailed:
		return "!"
	default:
		return " "
	}
}

// writeFooter writes the summary footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
