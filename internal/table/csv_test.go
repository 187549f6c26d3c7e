package table

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestReadCSV(t *testing.T) {
	data := "\ufeff,Beverage_prep,Calories,Total Fat (g),Caffeine (mg)\n" +
		"Brewed Coffee,Short,3,0.1,175\n" +
		"Caffè Latte,Tall,,4.5,varies\n"

	got, err := ReadCSV(strings.NewReader(data), "starbucks")
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}

	wantFields := []Field{
		{Name: "_c0", Kind: Text},
		{Name: "Beverage_prep", Kind: Text},
		{Name: "Calories", Kind: Integer},
		{Name: "Total Fat (g)", Kind: Float},
		{Name: "Caffeine (mg)", Kind: Text},
	}
	if diff := cmp.Diff(wantFields, got.Fields()); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}
	if got.Name() != "starbucks" {
		t.Errorf("Name() = %q", got.Name())
	}
	if diff := cmp.Diff([]any{"Caffè Latte", "Tall", nil, 4.5, "varies"}, got.Row(1).Values()); diff != "" {
		t.Errorf("row mismatch (-want +got):\n%s", diff)
	}
}

func TestReadCSVWithOptions_NullValues(t *testing.T) {
	data := "Item,Calories,Notes\nA,-,-\nB, 120 ,n/a\n"

	got, err := ReadCSVWithOptions(strings.NewReader(data), "menu", ReadOptions{NullValues: []string{"-"}})
	if err != nil {
		t.Fatalf("ReadCSVWithOptions failed: %v", err)
	}
	if f, _ := got.Field("Calories"); f.Kind != Integer {
		t.Errorf("Calories kind = %s, want integer", f.Kind)
	}
	want := []map[string]any{
		{"Item": "A", "Calories": nil, "Notes": nil},
		{"Item": "B", "Calories": int64(120), "Notes": "n/a"},
	}
	if diff := cmp.Diff(want, got.Records()); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}

	plain, err := ReadCSV(strings.NewReader(data), "menu")
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	if f, _ := plain.Field("Calories"); f.Kind != Text {
		t.Errorf("without null values Calories kind = %s, want text", f.Kind)
	}
}

func TestReadCSV_NonFiniteNumbersAreText(t *testing.T) {
	data := "Item,Sodium,Fiber,Sugar\nA,NaN,1.5,12\nB,Inf,NaN,-infinity\n"

	got, err := ReadCSV(strings.NewReader(data), "menu")
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	for _, name := range []string{"Sodium", "Fiber", "Sugar"} {
		if f, _ := got.Field(name); f.Kind != Text {
			t.Errorf("%s kind = %s, want text", name, f.Kind)
		}
	}
	want := []map[string]any{
		{"Item": "A", "Sodium": "NaN", "Fiber": "1.5", "Sugar": "12"},
		{"Item": "B", "Sodium": "Inf", "Fiber": "NaN", "Sugar": "-infinity"},
	}
	if diff := cmp.Diff(want, got.Records()); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestReadCSV_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{name: "empty", data: ""},
		{name: "ragged", data: "A,B\n1,2\n3\n", wantErr: ErrRaggedRow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.data), "x")
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestWriteCSV_RoundTrip(t *testing.T) {
	in := MustNew("menu", []Field{
		{Name: "Item", Kind: Text},
		{Name: "Calories", Kind: Integer},
		{Name: "Protein", Kind: Float},
	}, [][]any{
		{"Big Mac", 530, 24.5},
		{"Side Salad", nil, 1.0},
	})

	var buf bytes.Buffer
	if err := WriteCSV(&buf, in, CSVOptions{}); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}
	want := "Item,Calories,Protein\nBig Mac,530,24.5\nSide Salad,,1\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}

	back, err := ReadCSV(&buf, "menu")
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	if diff := cmp.Diff(in.Records(), back.Records()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	buf.Reset()
	if err := WriteCSV(&buf, in, CSVOptions{NullMarker: `\N`}); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}
	if !strings.Contains(buf.String(), `Side Salad,\N,1`) {
		t.Errorf("null marker missing: %q", buf.String())
	}
}
