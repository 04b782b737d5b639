package language

import (
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		// 2-letter codes pass through
		{"en", "en"},
		{"EN", "en"},
		{"es", "es"},
		// 3-letter codes convert
		{"eng", "en"},
		{"spa", "es"},
		{"fra", "fr"},
		{"fre", "fr"},
		{"deu", "de"},
		{"ger", "de"},
		{"por", "pt"},
		{"jpn", "ja"},
		{"chi", "zh"},
		{"dut", "nl"},
		// Word forms
		{"english", "en"},
		{"French", "fr"},
		{"GERMAN", "de"},
		// Regional variants reduce to base language
		{"pt-BR", "pt"},
		{"en_US", "en"},
		{"zh-Hans", "zh"},
		// Unknown 2-letter passes through
		{"xy", "xy"},
		// Unknown 3-letter returns empty
		{"xyz", ""},
		// Digits and junk are not languages
		{"x1", ""},
		{"2023", ""},
		// Empty
		{"", ""},
		{" ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := Normalize(tt.input)
			if result != tt.expected {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestIsTag(t *testing.T) {
	if !IsTag("en") || !IsTag("eng") || !IsTag("english") {
		t.Error("expected common English tokens to read as tags")
	}
	if IsTag("xyz") || IsTag("") || IsTag("forced") {
		t.Error("expected non-language tokens to be rejected")
	}
}

func TestIsModifier(t *testing.T) {
	for _, token := range []string{"forced", "FORCED", "sdh", "cc"} {
		if !IsModifier(token) {
			t.Errorf("expected %q to be a modifier", token)
		}
	}
	for _, token := range []string{"en", "hi", "", "director"} {
		if IsModifier(token) {
			t.Errorf("expected %q to not be a modifier", token)
		}
	}
}

func TestSplitStem(t *testing.T) {
	tests := []struct {
		stem string
		base string
		code string
	}{
		{"movie.en", "movie", "en"},
		{"movie.eng", "movie", "en"},
		{"movie.english", "movie", "en"},
		{"movie.en.forced", "movie", "en"},
		{"movie.en.sdh", "movie", "en"},
		{"movie.pt-BR", "movie", "pt"},
		{"movie.forced", "movie", ""},
		{"movie", "movie", ""},
		{"movie.2023", "movie.2023", ""},
		{"movie.2023.en", "movie.2023", "en"},
		{"some.show.s01e02.fr", "some.show.s01e02", "fr"},
		{"hi", "hi", ""},
		{"", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.stem, func(t *testing.T) {
			base, code := SplitStem(tt.stem)
			if base != tt.base || code != tt.code {
				t.Errorf("SplitStem(%q) = (%q, %q), want (%q, %q)", tt.stem, base, code, tt.base, tt.code)
			}
		})
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"en", "English"},
		{"eng", "English"},
		{"fr", "French"},
		{"fre", "French"},
		{"zh", "Chinese"},
		{"chi", "Chinese"},
		{"english", "English"},
		// Outside the built-in set, CLDR resolves the name
		{"tr", "Turkish"},
		{"el", "Greek"},
		{"", "Unknown"},
		{"xyz", "XYZ"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := DisplayName(tt.input)
			if result != tt.expected {
				t.Errorf("DisplayName(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}
