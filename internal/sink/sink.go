package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nao1215/pharmacrawl/internal/model"
)

// Sink persists a finalized result set.
type Sink interface {
	// Write persists rs. Errors are *model.SinkError.
	Write(ctx context.Context, rs *model.ResultSet) error

	// Name identifies the destination in logs and run history.
	Name() string
}

// Encode renders the records of rs as the artifact bytes.
func Encode(rs *model.ResultSet) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rs.Records()); err != nil {
		return nil, fmt.Errorf("failed to encode result set: %w", err)
	}
	return buf.Bytes(), nil
}

// JSONFile writes the artifact to a file, replacing it atomically.
type JSONFile struct {
	Path string
}

// NewJSONFile creates a file sink for path.
func NewJSONFile(path string) *JSONFile {
	return &JSONFile{Path: path}
}

// Name returns the file path.
func (f *JSONFile) Name() string {
	return f.Path
}

// Write encodes rs to a temporary file in the target directory and renames
// it over Path, so readers never observe a partial artifact.
func (f *JSONFile) Write(ctx context.Context, rs *model.ResultSet) error {
	if err := f.write(ctx, rs); err != nil {
		return &model.SinkError{Sink: f.Name(), Err: err}
	}
	return nil
}

func (f *JSONFile) write(ctx context.Context, rs *model.ResultSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := Encode(rs)
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // Already renamed on success

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close() //nolint:errcheck // Write error takes precedence
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		_ = tmp.Close() //nolint:errcheck // Chmod error takes precedence
		return fmt.Errorf("failed to set output permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close output: %w", err)
	}
	if err := os.Rename(tmpName, f.Path); err != nil {
		return fmt.Errorf("failed to replace output: %w", err)
	}
	return nil
}

// Stream writes the artifact to an io.Writer such as stdout.
type Stream struct {
	name string
	w    io.Writer
}

// NewStream creates a sink writing to w. name is used in logs.
func NewStream(name string, w io.Writer) *Stream {
	return &Stream{name: name, w: w}
}

// Name returns the stream name.
func (s *Stream) Name() string {
	return s.name
}

// Write encodes rs to the underlying writer.
func (s *Stream) Write(ctx context.Context, rs *model.ResultSet) error {
	if err := ctx.Err(); err != nil {
		return &model.SinkError{Sink: s.name, Err: err}
	}
	data, err := Encode(rs)
	if err != nil {
		return &model.SinkError{Sink: s.name, Err: err}
	}
	if _, err := s.w.Write(data); err != nil {
		return &model.SinkError{Sink: s.name, Err: err}
	}
	return nil
}

// Multi writes to several sinks in order and stops at the first failure.
type Multi struct {
	sinks []Sink
}

// NewMulti combines sinks.
func NewMulti(sinks ...Sink) *Multi {
	return &Multi{sinks: sinks}
}

// Name joins the names of the combined sinks.
func (m *Multi) Name() string {
	var buf bytes.Buffer
	for i, s := range m.sinks {
		if i > 0 {
			buf.WriteString(",")
		}
		buf.WriteString(s.Name())
	}
	return buf.String()
}

// Write writes rs to each sink. A failing sink's error is returned as is.
func (m *Multi) Write(ctx context.Context, rs *model.ResultSet) error {
	for _, s := range m.sinks {
		if err := s.Write(ctx, rs); err != nil {
			return err
		}
	}
	return nil
}
