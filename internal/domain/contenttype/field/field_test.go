package field

import (
	"strings"
	"testing"
)

func TestNew_Valid(t *testing.T) {
	tests := []struct {
		name     string
		ft       Type
		multiple bool
	}{
		{"title", Text, false},
		{"body", HTML, false},
		{"published_on", Date, false},
		{"cover", Image, false},
		{"tags", Select, true},
		{"price", Float, false},
		{strings.Repeat("x", 64), Integer, false},
	}

	for _, tt := range tests {
		f, err := New(tt.name, tt.ft, tt.multiple)
		if err != nil {
			t.Errorf("New(%q, %q) unexpected error: %v", tt.name, tt.ft, err)
			continue
		}
		if f.Name() != tt.name {
			t.Errorf("Name() = %q, want %q", f.Name(), tt.name)
		}
		if f.FieldType() != tt.ft {
			t.Errorf("FieldType() = %q, want %q", f.FieldType(), tt.ft)
		}
		if f.Multiple() != tt.multiple {
			t.Errorf("Multiple() = %v, want %v", f.Multiple(), tt.multiple)
		}
	}
}

func TestNew_EmptyName(t *testing.T) {
	_, err := New("", Text, false)
	if err == nil {
		t.Fatal("expected error for empty name")
	}
	if !strings.Contains(err.Error(), "required") {
		t.Errorf("error = %q, want 'required'", err)
	}
}

func TestNew_NameTooLong(t *testing.T) {
	_, err := New(strings.Repeat("x", 65), Text, false)
	if err == nil || !strings.Contains(err.Error(), "too long") {
		t.Fatalf("error = %v, want 'too long'", err)
	}
}

func TestNew_ReservedNames(t *testing.T) {
	for _, name := range []string{"id", "status", "ownerid", "datecreated", "datechanged", "datepublish"} {
		_, err := New(name, Text, false)
		if err == nil {
			t.Errorf("expected error for reserved name %q", name)
			continue
		}
		if !strings.Contains(err.Error(), "reserved") {
			t.Errorf("error for %q = %q, want 'reserved'", name, err)
		}
	}
}

func TestNew_InvalidType(t *testing.T) {
	_, err := New("valid_name", "geolocation", false)
	if err == nil || !strings.Contains(err.Error(), "invalid field type") {
		t.Fatalf("error = %v, want 'invalid field type'", err)
	}
}

func TestNew_MultipleOnlyForSelect(t *testing.T) {
	if _, err := New("title", Text, true); err == nil {
		t.Fatal("expected error for multiple text field")
	}
}

func TestType_Classes(t *testing.T) {
	if !Markdown.IsTextual() || Date.IsTextual() {
		t.Error("IsTextual classification wrong")
	}
	if !Checkbox.IsNumeric() || Select.IsNumeric() {
		t.Error("IsNumeric classification wrong")
	}
}
