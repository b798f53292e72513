package output

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/homescout/internal/search"
)

// TextWriter writes a human-readable report.
type TextWriter struct {
	w *bufio.Writer
}

// NewTextWriter creates a text writer.
func NewTextWriter(w io.Writer) *TextWriter {
	return &TextWriter{w: bufio.NewWriter(w)}
}

// Write writes the report for r.
func (w *TextWriter) Write(r search.Result) error {
	fmt.Fprintf(w.w, "Search: %s, %s to %s\n",
		r.Location, humanize.Comma(int64(r.MinPrice)), humanize.Comma(int64(r.MaxPrice)))

	line := fmt.Sprintf("Scraped %d of %d listing", r.Scraped, r.Requested)
	if r.Requested != 1 {
		line += "s"
	}
	if !r.StartedAt.IsZero() && !r.FinishedAt.IsZero() {
		line += " in " + r.Duration().Round(100*time.Millisecond).String()
		line += " (" + humanize.Time(r.FinishedAt) + ")"
	}
	fmt.Fprintln(w.w, line)

	if r.Error != "" {
		fmt.Fprintf(w.w, "Error: %s\n", r.Error)
	}

	for _, rec := range r.Listings {
		fmt.Fprintf(w.w, "\nListing %d\n", rec.SequenceIndex)
		fmt.Fprintf(w.w, "  Price:   %s\n", rec.Price)
		fmt.Fprintf(w.w, "  Details: %s\n", rec.Details)
		fmt.Fprintf(w.w, "  Phone:   %s\n", rec.Phone)
	}
	fmt.Fprintln(w.w)
	return w.w.Flush()
}

// Flush flushes the buffer.
func (w *TextWriter) Flush() error {
	return w.w.Flush()
}
