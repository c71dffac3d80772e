package dataset

import (
	"errors"
	"testing"

	pkgerrors "github.com/petroml/orfcast/pkg/errors"
)

func TestNewFrame_Validation(t *testing.T) {
	var valueErr *pkgerrors.ValueError
	if _, err := NewFrame([]string{"a", "b"}, [][]float64{{1}}); !errors.As(err, &valueErr) {
		t.Errorf("name/column mismatch: expected ValueError, got %v", err)
	}

	var dimErr *pkgerrors.DimensionError
	if _, err := NewFrame([]string{"a", "b"}, [][]float64{{1, 2}, {3}}); !errors.As(err, &dimErr) {
		t.Errorf("ragged columns: expected DimensionError, got %v", err)
	}
}

func TestFrame_SelectAndMatrix(t *testing.T) {
	f, err := NewFrame(
		[]string{"THK", "API", "ORF"},
		[][]float64{{1, 2, 3}, {30, 31, 32}, {0.3, 0.4, 0.5}},
	)
	if err != nil {
		t.Fatalf("NewFrame() error = %v", err)
	}

	sub, err := f.Select("ORF", "THK")
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if names := sub.Names(); names[0] != "ORF" || names[1] != "THK" {
		t.Errorf("Select order = %v, want [ORF THK]", names)
	}

	var schemaErr *pkgerrors.SchemaError
	if _, err := f.Select("GOR"); !errors.As(err, &schemaErr) {
		t.Errorf("missing column: expected SchemaError, got %v", err)
	}

	m, err := f.Matrix("THK", "API")
	if err != nil {
		t.Fatalf("Matrix() error = %v", err)
	}
	if r, c := m.Dims(); r != 3 || c != 2 {
		t.Fatalf("Matrix dims = %dx%d, want 3x2", r, c)
	}
	if m.At(1, 1) != 31 {
		t.Errorf("Matrix(1,1) = %v, want 31", m.At(1, 1))
	}

	v, err := f.Vector("ORF")
	if err != nil {
		t.Fatalf("Vector() error = %v", err)
	}
	if r, c := v.Dims(); r != 3 || c != 1 {
		t.Fatalf("Vector dims = %dx%d, want 3x1", r, c)
	}
}

func TestFrame_FilterRows(t *testing.T) {
	f, err := NewFrame([]string{"x"}, [][]float64{{1, 2, 3, 4, 5}})
	if err != nil {
		t.Fatalf("NewFrame() error = %v", err)
	}

	even := f.FilterRows(func(i int) bool { return i%2 == 0 })
	if even.NumRows() != 3 {
		t.Fatalf("NumRows() = %d, want 3", even.NumRows())
	}
	col := even.Column("x")
	for i, want := range []float64{1, 3, 5} {
		if col[i] != want {
			t.Errorf("row %d = %v, want %v", i, col[i], want)
		}
	}
	if f.NumRows() != 5 {
		t.Error("FilterRows mutated the source frame")
	}
}

func TestMissingCell(t *testing.T) {
	missing := []string{"", "  ", "NA", "na", "N/A", "NaN", "null"}
	for _, s := range missing {
		if !missingCell(s) {
			t.Errorf("missingCell(%q) = false, want true", s)
		}
	}
	present := []string{"0", "12.5", "-3", "1,250"}
	for _, s := range present {
		if missingCell(s) {
			t.Errorf("missingCell(%q) = true, want false", s)
		}
	}
}

func TestParseNumeric(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"12.5", 12.5, true},
		{" -3 ", -3, true},
		{"1,250.75", 1250.75, true},
		{"abc", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseNumeric(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("parseNumeric(%q) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
