package schema

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

type searchArgs struct {
	Location    string `json:"location" description:"City or postal code" validate:"required"`
	MinPrice    int    `json:"min_price" description:"Lower bound" validate:"gte=0"`
	MaxPrice    int    `json:"max_price" description:"Upper bound" validate:"gte=0,gtefield=MinPrice"`
	MaxListings int    `json:"max_listings" validate:"min=1,max=50"`
	Sort        string `json:"sort,omitempty" validate:"omitempty,oneof=newest cheapest"`
}

type nestedArgs struct {
	Title string `json:"title"`
	Area  struct {
		Min float64 `json:"min"`
		Max float64 `json:"max,omitempty"`
	} `json:"area" description:"Surface bounds"`
	Tags     []string `json:"tags" examples:"garden,balcony"`
	Nickname *string  `json:"nickname"`
	internal int
	Skipped  string `json:"-"`
}

func TestNewSchema_Fields(t *testing.T) {
	s, err := NewSchema[searchArgs](WithName("fetch_listings"), WithDescription("Search listings"))
	if err != nil {
		t.Fatalf("NewSchema failed: %v", err)
	}

	if s.Name != "fetch_listings" {
		t.Errorf("expected name 'fetch_listings', got %q", s.Name)
	}
	if len(s.Fields) != 5 {
		t.Fatalf("expected 5 fields, got %d", len(s.Fields))
	}

	tests := []struct {
		name     string
		typ      FieldType
		required bool
	}{
		{"location", TypeString, true},
		{"min_price", TypeInteger, true},
		{"max_price", TypeInteger, true},
		{"max_listings", TypeInteger, true},
		{"sort", TypeString, false},
	}
	for i, tt := range tests {
		f := s.Fields[i]
		if f.Name != tt.name || f.Type != tt.typ || f.Required != tt.required {
			t.Errorf("field %d = {%s %s %v}, want {%s %s %v}", i, f.Name, f.Type, f.Required, tt.name, tt.typ, tt.required)
		}
	}

	if s.Fields[0].Description != "City or postal code" {
		t.Errorf("unexpected description %q", s.Fields[0].Description)
	}
}

func TestNewSchema_ValidatorHints(t *testing.T) {
	s, err := NewSchema[searchArgs]()
	if err != nil {
		t.Fatalf("NewSchema failed: %v", err)
	}

	listings := s.Fields[3]
	if listings.Minimum == nil || *listings.Minimum != 1 {
		t.Errorf("expected minimum 1, got %v", listings.Minimum)
	}
	if listings.Maximum == nil || *listings.Maximum != 50 {
		t.Errorf("expected maximum 50, got %v", listings.Maximum)
	}

	minPrice := s.Fields[1]
	if minPrice.Minimum == nil || *minPrice.Minimum != 0 {
		t.Errorf("expected min_price minimum 0, got %v", minPrice.Minimum)
	}

	sort := s.Fields[4]
	if !reflect.DeepEqual(sort.Enum, []string{"newest", "cheapest"}) {
		t.Errorf("expected enum [newest cheapest], got %v", sort.Enum)
	}

	// string length limits are not numeric bounds
	type named struct {
		Name string `json:"name" validate:"min=2,max=100"`
	}
	ns, err := NewSchema[named]()
	if err != nil {
		t.Fatalf("NewSchema failed: %v", err)
	}
	if ns.Fields[0].Minimum != nil || ns.Fields[0].Maximum != nil {
		t.Error("expected no numeric bounds on a string field")
	}
}

func TestNewSchema_Nested(t *testing.T) {
	s, err := NewSchema[nestedArgs]()
	if err != nil {
		t.Fatalf("NewSchema failed: %v", err)
	}

	if len(s.Fields) != 4 {
		t.Fatalf("expected 4 fields (unexported and json:\"-\" skipped), got %d", len(s.Fields))
	}

	area := s.Fields[1]
	if area.Type != TypeObject || len(area.Properties) != 2 {
		t.Fatalf("expected object with 2 properties, got %s with %d", area.Type, len(area.Properties))
	}
	if area.Properties[1].Required {
		t.Error("expected area.max to be optional")
	}

	tags := s.Fields[2]
	if tags.Type != TypeArray || tags.Items == nil || tags.Items.Type != TypeString {
		t.Errorf("expected array of strings, got %+v", tags)
	}
	if !reflect.DeepEqual(tags.Examples, []string{"garden", "balcony"}) {
		t.Errorf("unexpected examples %v", tags.Examples)
	}

	if s.Fields[3].Required {
		t.Error("expected pointer field to be optional")
	}
}

func TestNewSchema_NonStructType_Error(t *testing.T) {
	if _, err := NewSchema[string](); err == nil {
		t.Error("expected error for non-struct type")
	}
	if _, err := NewSchema[error](); err == nil {
		t.Error("expected error for interface type")
	}
}

func TestNewSchema_UnsupportedField(t *testing.T) {
	type withChan struct {
		C chan int `json:"c"`
	}
	if _, err := NewSchema[withChan](); err == nil {
		t.Error("expected error for channel field")
	}
}

func TestMustSchema_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	MustSchema[int]()
}

func TestDecode(t *testing.T) {
	s := MustSchema[searchArgs]()

	tests := []struct {
		name      string
		raw       string
		wantErr   bool
		wantField string
		want      searchArgs
	}{
		{
			name: "valid",
			raw:  `{"location":"Lyon","min_price":200000,"max_price":350000,"max_listings":5}`,
			want: searchArgs{Location: "Lyon", MinPrice: 200000, MaxPrice: 350000, MaxListings: 5},
		},
		{
			name:      "missing location",
			raw:       `{"min_price":1,"max_price":2,"max_listings":1}`,
			wantErr:   true,
			wantField: "location",
		},
		{
			name:      "max below min",
			raw:       `{"location":"Lyon","min_price":300000,"max_price":200000,"max_listings":1}`,
			wantErr:   true,
			wantField: "max_price",
		},
		{
			name:      "too many listings",
			raw:       `{"location":"Lyon","min_price":0,"max_price":1,"max_listings":51}`,
			wantErr:   true,
			wantField: "max_listings",
		},
		{
			name:      "bad enum",
			raw:       `{"location":"Lyon","min_price":0,"max_price":1,"max_listings":1,"sort":"random"}`,
			wantErr:   true,
			wantField: "sort",
		},
		{
			name:    "unknown field",
			raw:     `{"location":"Lyon","city":"Lyon"}`,
			wantErr: true,
		},
		{
			name:    "wrong type",
			raw:     `{"location":"Lyon","min_price":"cheap"}`,
			wantErr: true,
		},
		{
			name:      "empty arguments",
			raw:       ``,
			wantErr:   true,
			wantField: "location",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got searchArgs
			err := s.Decode([]byte(tt.raw), &got)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if !errors.Is(err, ErrInvalidArguments) {
					t.Errorf("expected ErrInvalidArguments, got %v", err)
				}
				if tt.wantField != "" && !strings.Contains(err.Error(), tt.wantField+":") {
					t.Errorf("expected error on %s, got %v", tt.wantField, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDecode_MessageUsesArgumentNames(t *testing.T) {
	s := MustSchema[searchArgs]()
	var got searchArgs
	err := s.Decode([]byte(`{"location":"Lyon","min_price":5,"max_price":1,"max_listings":1}`), &got)
	if err == nil {
		t.Fatal("expected error")
	}
	if want := "max_price: must be greater than or equal to min_price"; err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestDecode_WrongTarget(t *testing.T) {
	s := MustSchema[searchArgs]()

	var other nestedArgs
	if err := s.Decode([]byte(`{}`), &other); err == nil {
		t.Error("expected error for mismatched target type")
	}
	if err := s.Decode([]byte(`{}`), searchArgs{}); err == nil {
		t.Error("expected error for non-pointer target")
	}
}

func TestToJSONSchema(t *testing.T) {
	s := MustSchema[searchArgs](WithDescription("Search listings"))
	js := s.ToJSONSchema()

	if js["type"] != "object" {
		t.Errorf("expected type 'object', got %v", js["type"])
	}
	if js["description"] != "Search listings" {
		t.Errorf("unexpected description %v", js["description"])
	}
	if js["additionalProperties"] != false {
		t.Error("expected additionalProperties false")
	}

	props, ok := js["properties"].(map[string]any)
	if !ok {
		t.Fatalf("expected properties to be map[string]any, got %T", js["properties"])
	}
	if len(props) != 5 {
		t.Errorf("expected 5 properties, got %d", len(props))
	}

	listings := props["max_listings"].(map[string]any)
	if listings["type"] != "integer" || listings["minimum"] != 1.0 || listings["maximum"] != 50.0 {
		t.Errorf("unexpected max_listings schema %v", listings)
	}

	sort := props["sort"].(map[string]any)
	if !reflect.DeepEqual(sort["enum"], []string{"newest", "cheapest"}) {
		t.Errorf("unexpected sort enum %v", sort["enum"])
	}

	required, ok := js["required"].([]string)
	if !ok {
		t.Fatalf("expected required to be []string")
	}
	if !reflect.DeepEqual(required, []string{"location", "min_price", "max_price", "max_listings"}) {
		t.Errorf("unexpected required %v", required)
	}
}

func TestToJSONSchema_Nested(t *testing.T) {
	js := MustSchema[nestedArgs]().ToJSONSchema()
	props := js["properties"].(map[string]any)

	area := props["area"].(map[string]any)
	if area["type"] != "object" {
		t.Errorf("expected object, got %v", area["type"])
	}
	if req := area["required"].([]string); !reflect.DeepEqual(req, []string{"min"}) {
		t.Errorf("unexpected nested required %v", req)
	}

	tags := props["tags"].(map[string]any)
	if items := tags["items"].(map[string]any); items["type"] != "string" {
		t.Errorf("unexpected items %v", items)
	}
}

func TestValidationErrors_Error(t *testing.T) {
	errs := ValidationErrors{
		{Field: "location", Message: "is required"},
		{Field: "max_listings", Message: "must be at most 50"},
	}
	if got := errs.Error(); got != "location: is required; max_listings: must be at most 50" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestGetJSONName(t *testing.T) {
	type tagged struct {
		A string `json:"alpha"`
		B string `json:",omitempty"`
		C string
	}
	rt := reflect.TypeOf(tagged{})
	want := []string{"alpha", "B", "C"}
	for i, w := range want {
		if got := getJSONName(rt.Field(i)); got != w {
			t.Errorf("field %d: got %q, want %q", i, got, w)
		}
	}
}
