package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/pharmacrawl/internal/model"
)

// MarkdownWriter outputs the run summary in Markdown format.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the summary of report.
func (w *MarkdownWriter) Write(report *model.RunReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeCounts(md, report)
	w.writeFailures(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the run information table.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.RunReport) {
	md.H1("Pharmacrawl Run Summary")
	md.PlainText("")

	artifact := "-"
	if report.Artifact != "" {
		artifact = "`" + report.Artifact + "`"
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Status", statusText(report)},
			{"Policy", report.Policy.String()},
			{"Started", formatTime(report.StartedAt)},
			{"Elapsed", report.Elapsed().Round(time.Millisecond).String()},
			{"Artifact", artifact},
		},
	})
	md.PlainText("")
}

// statusText returns the status text based on the terminal state.
func statusText(report *model.RunReport) string {
	if report.Succeeded() {
		return "✅ Done"
	}
	if report.ErrorKind == "cancelled" {
		return "⚠️ Cancelled"
	}
	return "❌ Failed (" + report.ErrorKind + ")"
}

// writeCounts writes the target counts, a chart and an alert.
func (w *MarkdownWriter) writeCounts(md *markdown.Markdown, report *model.RunReport) {
	md.H2("Targets")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Count"},
		Rows: [][]string{
			{"Succeeded", strconv.Itoa(report.SucceededCount())},
			{"Failed", strconv.Itoa(report.FailedCount())},
			{"Not attempted", strconv.Itoa(report.NotAttemptedCount())},
			{"**Discovered**", "**" + strconv.Itoa(len(report.Targets)) + "**"},
		},
	})
	md.PlainText("")

	if len(report.Targets) > 0 {
		w.writePieChart(md, report)
	}

	w.writeAlert(md, report)
}

// writePieChart writes a mermaid pie chart of target outcomes.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, report *model.RunReport) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Target Outcomes"),
		piechart.WithShowData(true),
	)

	if n := report.SucceededCount(); n > 0 {
		chart.LabelAndIntValue("Succeeded", uint64(n))
	}
	if n := report.FailedCount(); n > 0 {
		chart.LabelAndIntValue("Failed", uint64(n))
	}
	if n := report.NotAttemptedCount(); n > 0 {
		chart.LabelAndIntValue("Not attempted", uint64(n))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert matching the run outcome.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.RunReport) {
	switch {
	case !report.Succeeded() && report.FailedURL != "":
		md.Cautionf("Run aborted on %s. No artifact was written.", report.FailedURL)
	case !report.Succeeded():
		md.Cautionf("Run failed: %s", report.ErrorMessage)
	case report.FailedCount() > 0:
		md.Warningf("%d target(s) failed and were skipped.", report.FailedCount())
	case len(report.Targets) == 0:
		md.Note("Discovery returned no targets. An empty artifact was written.")
	default:
		md.Tip("Every discovered target was extracted.")
	}
	md.PlainText("")
}

// writeFailures writes a table of failed targets.
func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, report *model.RunReport) {
	failed := report.FailedOutcomes()
	if len(failed) == 0 {
		return
	}

	md.H2("Failed Targets")
	md.PlainText("")

	rows := make([][]string, len(failed))
	for i, o := range failed {
		rows[i] = []string{
			strconv.Itoa(o.Index),
			o.URL,
			truncateString(o.Error, 80),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"#", "URL", "Error"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Generated by pharmacrawl*")
}
