package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/homescout/internal/listing"
	"github.com/jmylchreest/homescout/internal/search"
)

func sampleResult() search.Result {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return search.Result{
		Location:  "Lyon",
		MinPrice:  100000,
		MaxPrice:  250000,
		Requested: 2,
		Scraped:   2,
		Listings: []listing.Record{
			{SequenceIndex: 1, Price: "185 000 €", Details: "Appartement 3 pièces 68 m²", Phone: "06 12 34 56 78"},
			{SequenceIndex: 2, Price: "240 000 €", Details: "Maison 4 pièces 90 m²", Phone: listing.PhoneUnavailable},
		},
		StartedAt:  start,
		FinishedAt: start.Add(42 * time.Second),
	}
}

// --- NewWriter / ParseFormat ---

func TestNewWriter(t *testing.T) {
	tests := []struct {
		format Format
		want   string
	}{
		{FormatJSON, "*output.JSONWriter"},
		{FormatJSONL, "*output.JSONLWriter"},
		{FormatYAML, "*output.YAMLWriter"},
		{FormatText, "*output.TextWriter"},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			w, err := NewWriter(&bytes.Buffer{}, tt.format)
			if err != nil {
				t.Fatalf("NewWriter() error = %v", err)
			}
			if got := fmt.Sprintf("%T", w); got != tt.want {
				t.Errorf("NewWriter() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNewWriter_UnsupportedFormat(t *testing.T) {
	_, err := NewWriter(&bytes.Buffer{}, Format("csv"))
	if err == nil {
		t.Fatal("expected error for unsupported format")
	}
	if !strings.Contains(err.Error(), "unsupported") {
		t.Errorf("expected error containing 'unsupported', got %v", err)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"json", FormatJSON, false},
		{" YAML ", FormatYAML, false},
		{"jsonl", FormatJSONL, false},
		{"text", FormatText, false},
		{"xml", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// --- JSONWriter ---

func TestJSONWriter_SingleResultIsObject(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := WriteResults(NewJSONWriter(buf, true, "  "), sampleResult()); err != nil {
		t.Fatalf("WriteResults() error = %v", err)
	}

	var got search.Result
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not a JSON object: %v\n%s", err, buf.String())
	}
	if got.Scraped != 2 || len(got.Listings) != 2 {
		t.Errorf("got scraped=%d listings=%d, want 2/2", got.Scraped, len(got.Listings))
	}
	if !strings.Contains(buf.String(), "\n  \"location\"") {
		t.Errorf("expected pretty output, got:\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), `"index": 1`) {
		t.Errorf("expected listing index key, got:\n%s", buf.String())
	}
	if strings.Contains(buf.String(), `"error"`) {
		t.Errorf("empty error should be omitted, got:\n%s", buf.String())
	}
}

func TestJSONWriter_MultipleResultsAreArray(t *testing.T) {
	buf := &bytes.Buffer{}
	failed := search.Result{Location: "Nice", Requested: 3, Listings: []listing.Record{}, Error: "setup failed at launch: app not installed"}
	if err := WriteResults(NewJSONWriter(buf, false, ""), sampleResult(), failed); err != nil {
		t.Fatalf("WriteResults() error = %v", err)
	}

	var got []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not a JSON array: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d results, want 2", len(got))
	}
	if got[1]["error"] != failed.Error {
		t.Errorf("error = %v, want %q", got[1]["error"], failed.Error)
	}
	if strings.Count(buf.String(), "\n") != 1 {
		t.Errorf("compact output should be one line, got:\n%s", buf.String())
	}
}

func TestJSONWriter_FlushEmpty(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := NewJSONWriter(buf, true, "  ").Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

// --- JSONLWriter ---

func TestJSONLWriter_OneListingPerLine(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := WriteResults(NewJSONLWriter(buf), sampleResult()); err != nil {
		t.Fatalf("WriteResults() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), buf.String())
	}

	var first map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("line 1 is not JSON: %v", err)
	}
	want := map[string]any{
		"location":  "Lyon",
		"min_price": float64(100000),
		"max_price": float64(250000),
		"index":     float64(1),
		"price":     "185 000 €",
		"phone":     "06 12 34 56 78",
	}
	for k, v := range want {
		if first[k] != v {
			t.Errorf("%s = %v, want %v", k, first[k], v)
		}
	}
}

func TestJSONLWriter_NoListings(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := WriteResults(NewJSONLWriter(buf), search.Result{Location: "Nice"}); err != nil {
		t.Fatalf("WriteResults() error = %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

// --- YAMLWriter ---

func TestYAMLWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := WriteResults(NewYAMLWriter(buf), sampleResult()); err != nil {
		t.Fatalf("WriteResults() error = %v", err)
	}

	var got struct {
		Location string `yaml:"location"`
		Listings []struct {
			Index int    `yaml:"index"`
			Phone string `yaml:"phone"`
		} `yaml:"listings"`
	}
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not YAML: %v", err)
	}
	if got.Location != "Lyon" {
		t.Errorf("location = %q, want Lyon", got.Location)
	}
	if len(got.Listings) != 2 || got.Listings[1].Index != 2 || got.Listings[1].Phone != listing.PhoneUnavailable {
		t.Errorf("unexpected listings: %+v", got.Listings)
	}
}

func TestYAMLWriter_MultipleResults(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := WriteResults(NewYAMLWriter(buf), sampleResult(), sampleResult()); err != nil {
		t.Fatalf("WriteResults() error = %v", err)
	}

	var got []map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not a YAML sequence: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d results, want 2", len(got))
	}
}

// --- TextWriter ---

func TestTextWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := WriteResults(NewTextWriter(buf), sampleResult()); err != nil {
		t.Fatalf("WriteResults() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"Search: Lyon, 100,000 to 250,000",
		"Scraped 2 of 2 listings in 42s",
		"Listing 1",
		"Price:   185 000 €",
		"Details: Maison 4 pièces 90 m²",
		"Phone:   unavailable",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Error:") {
		t.Errorf("unexpected error line:\n%s", out)
	}
}

func TestTextWriter_Error(t *testing.T) {
	buf := &bytes.Buffer{}
	r := search.Result{Location: "Nice", Requested: 1, Error: "setup failed at launch: app not installed"}
	if err := WriteResults(NewTextWriter(buf), r); err != nil {
		t.Fatalf("WriteResults() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "Scraped 0 of 1 listing\n") {
		t.Errorf("expected singular summary, got:\n%s", out)
	}
	if !strings.Contains(out, "Error: setup failed at launch: app not installed") {
		t.Errorf("expected error line, got:\n%s", out)
	}
}
