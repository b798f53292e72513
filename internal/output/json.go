package output

import (
	"bufio"
	"encoding/json"
	"io"

	"github.com/jmylchreest/homescout/internal/listing"
	"github.com/jmylchreest/homescout/internal/search"
)

// JSONWriter writes results as one JSON document.
type JSONWriter struct {
	w       *bufio.Writer
	pretty  bool
	indent  string
	results []search.Result
}

// NewJSONWriter creates a JSON writer.
func NewJSONWriter(w io.Writer, pretty bool, indent string) *JSONWriter {
	return &JSONWriter{
		w:      bufio.NewWriter(w),
		pretty: pretty,
		indent: indent,
	}
}

// Write buffers a result.
func (w *JSONWriter) Write(r search.Result) error {
	w.results = append(w.results, r)
	return nil
}

// Flush writes the buffered results. A single result is written as an
// object, several as an array.
func (w *JSONWriter) Flush() error {
	if len(w.results) == 0 {
		return w.w.Flush()
	}

	var v any = w.results
	if len(w.results) == 1 {
		v = w.results[0]
	}

	var output []byte
	var err error
	if w.pretty {
		output, err = json.MarshalIndent(v, "", w.indent)
	} else {
		output, err = json.Marshal(v)
	}
	if err != nil {
		return err
	}
	w.results = w.results[:0]

	if _, err := w.w.Write(output); err != nil {
		return err
	}
	if _, err := w.w.WriteString("\n"); err != nil {
		return err
	}
	return w.w.Flush()
}

// listingLine is one JSONL row: a listing with the search it came from.
type listingLine struct {
	Location string `json:"location"`
	MinPrice int    `json:"min_price"`
	MaxPrice int    `json:"max_price"`
	listing.Record
}

// JSONLWriter writes one listing per line.
type JSONLWriter struct {
	w *bufio.Writer
}

// NewJSONLWriter creates a JSONL writer.
func NewJSONLWriter(w io.Writer) *JSONLWriter {
	return &JSONLWriter{
		w: bufio.NewWriter(w),
	}
}

// Write writes the listings of r, one JSON object per line.
func (w *JSONLWriter) Write(r search.Result) error {
	for _, rec := range r.Listings {
		output, err := json.Marshal(listingLine{
			Location: r.Location,
			MinPrice: r.MinPrice,
			MaxPrice: r.MaxPrice,
			Record:   rec,
		})
		if err != nil {
			return err
		}
		if _, err := w.w.Write(output); err != nil {
			return err
		}
		if err := w.w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return w.w.Flush()
}

// Flush flushes the buffer.
func (w *JSONLWriter) Flush() error {
	return w.w.Flush()
}
