package types

import (
	"errors"
	"fmt"
	"testing"
)

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in      string
		want    Color
		wantErr bool
	}{
		{"#FFF", Color{255, 255, 255, 1}, false},
		{"#FFF0", Color{255, 255, 255, 0}, false},
		{"#FFFFFF00", Color{255, 255, 255, 0}, false},
		{"#ff8000", Color{255, 128, 0, 1}, false},
		{"#0000ff80", Color{0, 0, 255, 128.0 / 255}, false},
		{"FFF", Color{}, true},
		{"#FFFFF", Color{}, true},
		{"#GGG", Color{}, true},
		{"", Color{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseHexColor(tt.in)
			if tt.wantErr {
				if CodeOf(err) != ErrInvalidHexColor {
					t.Fatalf("ParseHexColor(%q) error = %v, want %s", tt.in, err, ErrInvalidHexColor)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseHexColor(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseHexColor(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestColorBytes(t *testing.T) {
	c := Color{R: 300, G: -4, B: 12.7, A: 0.5}
	if got, want := c.Bytes(), [4]byte{255, 0, 12, 127}; got != want {
		t.Errorf("Bytes() = %v, want %v", got, want)
	}
	if got := ColorFromBytes([4]byte{1, 2, 3, 255}); got != (Color{1, 2, 3, 1}) {
		t.Errorf("ColorFromBytes() = %v", got)
	}
}

func TestErrorChain(t *testing.T) {
	base := Errorf(ErrStaleUpdate, "update %d superseded", 3)
	wrapped := fmt.Errorf("layer: %w", base)

	if !IsStale(wrapped) {
		t.Error("IsStale() = false for wrapped stale error")
	}
	if !errors.Is(wrapped, NewError(ErrStaleUpdate, "")) {
		t.Error("errors.Is() should match on code")
	}
	if errors.Is(wrapped, NewError(ErrResourceFreed, "")) {
		t.Error("errors.Is() matched a different code")
	}

	typeErr := NewError(ErrInvalidParameterType, "bad").WithExpr("buckets")
	if got, want := typeErr.Error(), "T0102: buckets(): bad"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !IsTypeError(typeErr) || IsFreed(typeErr) {
		t.Error("classification helpers disagree with code")
	}

	cause := errors.New("boom")
	if !errors.Is(NewError(ErrShaderLink, "link").WithCause(cause), cause) {
		t.Error("Unwrap() should expose the cause")
	}
}

func TestMetadataCategoryIDs(t *testing.T) {
	m := NewMetadata(
		Column{Name: "price", Type: TypeNumber, Min: 0, Max: 10},
		Column{Name: "cat", Type: TypeCategory, CategoryNames: []string{"red", "blue"}},
		Column{Name: "other", Type: TypeCategory, CategoryNames: []string{"blue", "green"}},
	)
	for name, want := range map[string]int{"red": 0, "blue": 1, "green": 2} {
		if id, ok := m.CategoryID(name); !ok || id != want {
			t.Errorf("CategoryID(%q) = %d, %v; want %d", name, id, ok, want)
		}
	}
	if m.CategoryNames[2] != "green" {
		t.Errorf("CategoryNames[2] = %q", m.CategoryNames[2])
	}
	if c, ok := m.Column("price"); !ok || c.Max != 10 {
		t.Errorf("Column(price) = %v, %v", c, ok)
	}
	var nilMeta *Metadata
	if _, ok := nilMeta.Column("price"); ok {
		t.Error("nil metadata should have no columns")
	}
}

func TestParseType(t *testing.T) {
	if got, err := ParseType("date"); err != nil || got != TypeDate {
		t.Errorf("ParseType(date) = %v, %v", got, err)
	}
	if _, err := ParseType("color"); err == nil {
		t.Error("color is not a column type")
	}
	if TypeUnknown.String() != "unknown" {
		t.Errorf("TypeUnknown.String() = %q", TypeUnknown.String())
	}
}
