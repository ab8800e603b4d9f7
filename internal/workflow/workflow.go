// Package workflow loads the declarative workflow definitions that drive the
// extraction engine.
//
// A workflow definition is opaque to pharmacrawl: it is read as raw text and
// handed to the engine unmodified. Its format and schema belong to the engine.
package workflow

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/nao1215/pharmacrawl/internal/model"
	"golang.org/x/crypto/sha3"
)

// ErrEmptyDefinition is returned when a workflow has no content. Text made
// only of whitespace counts as empty; any other text is kept byte for byte,
// surrounding whitespace included.
var ErrEmptyDefinition = errors.New("workflow definition is empty")

// Definition is a loaded workflow definition. It is immutable once loaded.
type Definition struct {
	// Name identifies the workflow in logs ("discovery", "extraction").
	Name string

	// Path is where the text was loaded from; empty for inline definitions.
	Path string

	// Text is the raw definition, passed to the engine unmodified.
	Text string
}

// Digest returns the hex SHA3-256 of the definition text.
// Run history uses it to tell which workflow revision produced a run.
func (d Definition) Digest() string {
	sum := sha3.Sum256([]byte(d.Text))
	return hex.EncodeToString(sum[:])
}

// Source produces a workflow definition on demand.
// The orchestrator loads each phase's definition right before the phase starts.
type Source interface {
	Load() (Definition, error)
}

// File loads a workflow definition from a file path.
type File struct {
	Name string
	Path string
}

// NewFile creates a file-backed Source.
func NewFile(name, path string) File {
	return File{Name: name, Path: path}
}

// Load reads the file verbatim. Failures are reported as *model.ConfigLoadError.
func (f File) Load() (Definition, error) {
	data, err := os.ReadFile(f.Path) //nolint:gosec // Workflow path is user-provided by design
	if err != nil {
		return Definition{}, &model.ConfigLoadError{Path: f.Path, Err: err}
	}
	if strings.TrimSpace(string(data)) == "" {
		return Definition{}, &model.ConfigLoadError{Path: f.Path, Err: ErrEmptyDefinition}
	}
	return Definition{Name: f.Name, Path: f.Path, Text: string(data)}, nil
}

// Inline is a Source backed by an in-memory definition.
type Inline struct {
	Name string
	Text string
}

// Load returns the inline text. An empty or whitespace-only text is a load failure.
func (i Inline) Load() (Definition, error) {
	if strings.TrimSpace(i.Text) == "" {
		return Definition{}, &model.ConfigLoadError{Path: fmt.Sprintf("inline:%s", i.Name), Err: ErrEmptyDefinition}
	}
	return Definition{Name: i.Name, Text: i.Text}, nil
}
