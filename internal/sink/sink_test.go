package sink

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/nao1215/pharmacrawl/internal/model"
)

func resultSet(records ...any) *model.ResultSet {
	rs := model.NewResultSet(len(records))
	for i, r := range records {
		rs.Append(model.ExtractionResult{Index: i, URL: "u", Data: r})
	}
	return rs
}

// TestEncode tests the artifact encoding.
func TestEncode(t *testing.T) {
	t.Parallel()

	t.Run("empty set is an empty array", func(t *testing.T) {
		t.Parallel()

		data, err := Encode(model.NewResultSet(0))
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "[]\n" {
			t.Errorf("expected %q, got %q", "[]\n", data)
		}
	})

	t.Run("records in order with two-space indent", func(t *testing.T) {
		t.Parallel()

		data, err := Encode(resultSet("A", map[string]any{"name": "B&C"}))
		if err != nil {
			t.Fatal(err)
		}
		want := "[\n  \"A\",\n  {\n    \"name\": \"B&C\"\n  }\n]\n"
		if string(data) != want {
			t.Errorf("expected %q, got %q", want, data)
		}
	})
}

// TestJSONFile tests the file sink.
func TestJSONFile(t *testing.T) {
	t.Parallel()

	t.Run("creates directories and writes the artifact", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "out", "pharmacies.json")
		s := NewJSONFile(path)

		if err := s.Write(context.Background(), resultSet("A", "B")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		data, err := os.ReadFile(path) //nolint:gosec // test path
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "[\n  \"A\",\n  \"B\"\n]\n" {
			t.Errorf("unexpected artifact %q", data)
		}

		if runtime.GOOS != "windows" {
			info, err := os.Stat(path)
			if err != nil {
				t.Fatal(err)
			}
			if perm := info.Mode().Perm(); perm != 0600 {
				t.Errorf("expected 0600, got %o", perm)
			}
		}

		entries, err := os.ReadDir(filepath.Dir(path))
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 1 {
			t.Errorf("expected only the artifact in the directory, got %d entries", len(entries))
		}
	})

	t.Run("replaces an existing artifact", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "pharmacies.json")
		if err := os.WriteFile(path, []byte("old"), 0600); err != nil {
			t.Fatal(err)
		}

		if err := NewJSONFile(path).Write(context.Background(), model.NewResultSet(0)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		data, err := os.ReadFile(path) //nolint:gosec // test path
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "[]\n" {
			t.Errorf("expected [], got %q", data)
		}
	})

	t.Run("unwritable destination is a sink failure", func(t *testing.T) {
		t.Parallel()

		// A regular file where a directory is expected.
		base := filepath.Join(t.TempDir(), "file")
		if err := os.WriteFile(base, nil, 0600); err != nil {
			t.Fatal(err)
		}

		err := NewJSONFile(filepath.Join(base, "out.json")).Write(context.Background(), model.NewResultSet(0))
		if !errors.Is(err, model.ErrSink) {
			t.Errorf("expected sink failure, got %v", err)
		}
		var se *model.SinkError
		if errors.As(err, &se) && se.Sink != filepath.Join(base, "out.json") {
			t.Errorf("unexpected sink name %q", se.Sink)
		}
	})

	t.Run("cancelled context writes nothing", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "out.json")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if err := NewJSONFile(path).Write(ctx, model.NewResultSet(0)); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("expected no artifact, got %v", err)
		}
	})
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("broken pipe")
}

// TestStream tests the writer sink.
func TestStream(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := NewStream("stdout", &buf).Write(context.Background(), resultSet("A")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.String() != "[\n  \"A\"\n]\n" {
		t.Errorf("unexpected output %q", buf.String())
	}

	err := NewStream("stdout", failingWriter{}).Write(context.Background(), resultSet("A"))
	if !errors.Is(err, model.ErrSink) {
		t.Errorf("expected sink failure, got %v", err)
	}
}

// TestMulti tests writing to several sinks.
func TestMulti(t *testing.T) {
	t.Parallel()

	var first, third bytes.Buffer
	m := NewMulti(
		NewStream("first", &first),
		NewStream("second", failingWriter{}),
		NewStream("third", &third),
	)

	if m.Name() != "first,second,third" {
		t.Errorf("unexpected name %q", m.Name())
	}

	err := m.Write(context.Background(), resultSet("A"))
	var se *model.SinkError
	if !errors.As(err, &se) || se.Sink != "second" {
		t.Fatalf("expected failure from second sink, got %v", err)
	}
	if first.Len() == 0 {
		t.Error("expected first sink to be written")
	}
	if third.Len() != 0 {
		t.Error("expected third sink to be skipped")
	}
}
