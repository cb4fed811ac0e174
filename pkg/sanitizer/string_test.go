package sanitizer

import "testing"

func TestTrimAndNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"trim spaces", "  Nile Cruise  ", "Nile Cruise"},
		{"collapse inner spaces", "Nile    Cruise", "Nile Cruise"},
		{"tabs and newlines", "Nile\t\nCruise", "Nile Cruise"},
		{"drop control characters", "Nile\x00Cruise", "NileCruise"},
		{"empty string", "", ""},
		{"only whitespace", "   \t\n  ", ""},
		{"arabic text", "  الأقصر  ", "الأقصر"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TrimAndNormalize(tt.input); got != tt.want {
				t.Errorf("TrimAndNormalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"English", "english"},
		{"  Red   Sea ", "red sea"},
		{"LUXOR", "luxor"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizeKey(tt.input); got != tt.want {
			t.Errorf("NormalizeKey(%q) = %q, want %q", tt.input, got, tt.want)
		}
		if again := NormalizeKey(NormalizeKey(tt.input)); again != tt.want {
			t.Errorf("NormalizeKey not idempotent for %q", tt.input)
		}
	}
}

func TestNormalizeText_KeepsLines(t *testing.T) {
	got := NormalizeText("  first   line \n\tsecond line  ")
	want := "first line\nsecond line"
	if got != want {
		t.Errorf("NormalizeText() = %q, want %q", got, want)
	}
}

func TestNormalizeName_KeepsCase(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"  mona ", "mona"},
		{"Abd  El-Rahman", "Abd El-Rahman"},
		{"McKenzie", "McKenzie"},
		{" نور ", "نور"},
	}

	for _, tt := range tests {
		if got := NormalizeName(tt.input); got != tt.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
