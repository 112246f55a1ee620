package domain

import "testing"

func TestNormalizeID(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"string passthrough", "a1b2c3", "a1b2c3"},
		{"string trimmed", "  42 ", "42"},
		{"int", 42, "42"},
		{"int64", int64(9007199254740993), "9007199254740993"},
		{"json number", float64(1234), "1234"},
		{"nil", nil, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeID(tc.in); got != tc.want {
				t.Fatalf("NormalizeID(%v) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestSameID(t *testing.T) {
	if !SameID(42, "42") {
		t.Fatal("expected legacy integer 42 to match string \"42\"")
	}
	if !SameID("  7", int64(7)) {
		t.Fatal("expected padded string to match int64")
	}
	if SameID("", "") {
		t.Fatal("empty identifiers must never match each other")
	}
	if SameID(nil, "x") {
		t.Fatal("nil must not match a real identifier")
	}
	if SameID("41", 42) {
		t.Fatal("distinct identifiers reported as same")
	}
}
