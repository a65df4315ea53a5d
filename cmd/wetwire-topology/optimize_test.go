package main

import (
	"testing"
)

func TestNewOptimizeCmd(t *testing.T) {
	cmd := newOptimizeCmd(&app{})

	if cmd.Use != "optimize [spec]" {
		t.Errorf("Use = %q, want 'optimize [spec]'", cmd.Use)
	}
	if cmd.Flags().Lookup("format") == nil {
		t.Error("missing --format flag")
	}
	if cmd.Flags().Lookup("category") == nil {
		t.Error("missing --category flag")
	}
}

func TestOptimizeCategories(t *testing.T) {
	for _, cat := range []string{"all", "security", "cost", "performance", "reliability"} {
		if !isValidCategory(cat) {
			t.Errorf("category %q should be valid", cat)
		}
	}
	if isValidCategory("invalid") {
		t.Error("'invalid' should not be a valid category")
	}
}

func TestCapitalize(t *testing.T) {
	tests := map[string]string{"": "", "cost": "Cost", "s": "S"}
	for in, want := range tests {
		if got := capitalize(in); got != want {
			t.Errorf("capitalize(%q) = %q, want %q", in, got, want)
		}
	}
}
