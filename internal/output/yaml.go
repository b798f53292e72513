package output

import (
	"bufio"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/homescout/internal/search"
)

// YAMLWriter writes results as YAML.
type YAMLWriter struct {
	w       *bufio.Writer
	results []search.Result
}

// NewYAMLWriter creates a YAML writer.
func NewYAMLWriter(w io.Writer) *YAMLWriter {
	return &YAMLWriter{w: bufio.NewWriter(w)}
}

// Write buffers a result.
func (w *YAMLWriter) Write(r search.Result) error {
	w.results = append(w.results, r)
	return nil
}

// Flush writes the buffered results, a single one as a mapping.
func (w *YAMLWriter) Flush() error {
	if len(w.results) == 0 {
		return w.w.Flush()
	}

	encoder := yaml.NewEncoder(w.w)
	encoder.SetIndent(2)

	var err error
	if len(w.results) == 1 {
		err = encoder.Encode(w.results[0])
	} else {
		err = encoder.Encode(w.results)
	}
	if err != nil {
		return err
	}
	if err := encoder.Close(); err != nil {
		return err
	}
	w.results = w.results[:0]
	return w.w.Flush()
}
