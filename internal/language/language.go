package language

import (
	"strings"

	xlang "golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

type entry struct {
	code2   string   // ISO 639-1 (2-letter)
	code3   string   // ISO 639-2 primary (3-letter)
	alt3    string   // ISO 639-2 alternate (e.g. "fre" vs "fra")
	display string   // Human-readable name
	words   []string // Full word forms (e.g. "english")
}

var languages = []entry{
	{"en", "eng", "", "English", []string{"english"}},
	{"es", "spa", "", "Spanish", []string{"spanish"}},
	{"fr", "fra", "fre", "French", []string{"french"}},
	{"de", "deu", "ger", "German", []string{"german"}},
	{"it", "ita", "", "Italian", []string{"italian"}},
	{"pt", "por", "", "Portuguese", []string{"portuguese"}},
	{"ja", "jpn", "", "Japanese", []string{"japanese"}},
	{"ko", "kor", "", "Korean", []string{"korean"}},
	{"zh", "zho", "chi", "Chinese", []string{"chinese"}},
	{"ru", "rus", "", "Russian", []string{"russian"}},
	{"ar", "ara", "", "Arabic", []string{"arabic"}},
	{"hi", "hin", "", "Hindi", []string{"hindi"}},
	{"nl", "nld", "dut", "Dutch", []string{"dutch"}},
	{"pl", "pol", "", "Polish", []string{"polish"}},
	{"sv", "swe", "", "Swedish", []string{"swedish"}},
	{"da", "dan", "", "Danish", []string{"danish"}},
	{"no", "nor", "", "Norwegian", []string{"norwegian"}},
	{"fi", "fin", "", "Finnish", []string{"finnish"}},
}

// Index maps built at init time.
var (
	byCode2 map[string]*entry
	byCode3 map[string]*entry
	byWord  map[string]*entry
)

func init() {
	byCode2 = make(map[string]*entry, len(languages))
	byCode3 = make(map[string]*entry, len(languages)*2)
	byWord = make(map[string]*entry, len(languages))
	for i := range languages {
		e := &languages[i]
		byCode2[e.code2] = e
		byCode3[e.code3] = e
		if e.alt3 != "" {
			byCode3[e.alt3] = e
		}
		for _, w := range e.words {
			byWord[w] = e
		}
	}
}

// Subtitle name modifiers that may trail the language token, as in
// "movie.en.forced.srt".
var modifierTokens = map[string]struct{}{
	"forced": {},
	"sdh":    {},
	"cc":     {},
}

func lookup(code string) *entry {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return nil
	}
	if e, ok := byCode2[code]; ok {
		return e
	}
	if e, ok := byCode3[code]; ok {
		return e
	}
	if e, ok := byWord[code]; ok {
		return e
	}
	return nil
}

func isLowerAlpha(s string) bool {
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return len(s) > 0
}

// Normalize converts a recognized language token to ISO 639-1.
// Regional forms ("pt-BR", "en_US") reduce to their base language.
// Unrecognized two-letter tokens pass through, since subtitle naming
// uses plenty of codes outside the common set; anything else returns
// the empty string.
func Normalize(token string) string {
	token = strings.ToLower(strings.TrimSpace(token))
	if token == "" {
		return ""
	}
	if idx := strings.IndexAny(token, "-_"); idx > 0 {
		token = token[:idx]
	}
	if e := lookup(token); e != nil {
		return e.code2
	}
	if len(token) == 2 && isLowerAlpha(token) {
		return token
	}
	return ""
}

// IsTag reports whether token reads as a language tag.
func IsTag(token string) bool {
	return Normalize(token) != ""
}

// IsModifier reports whether token is a subtitle modifier (forced,
// sdh, cc) rather than a language.
func IsModifier(token string) bool {
	_, ok := modifierTokens[strings.ToLower(strings.TrimSpace(token))]
	return ok
}

// SplitStem splits a subtitle stem (filename without extension) into
// its base name and normalized language code. Trailing modifier
// tokens are consumed first, then at most one language token:
// "movie.en.forced" yields ("movie", "en"). A stem with no language
// suffix comes back unchanged with an empty code.
func SplitStem(stem string) (string, string) {
	parts := strings.Split(stem, ".")
	end := len(parts)
	for end > 1 && IsModifier(parts[end-1]) {
		end--
	}
	if end > 1 {
		if code := Normalize(parts[end-1]); code != "" {
			return strings.Join(parts[:end-1], "."), code
		}
	}
	if end == len(parts) {
		return stem, ""
	}
	return strings.Join(parts[:end], "."), ""
}

// DisplayName returns a human-readable language name. Codes outside
// the built-in set fall back to the Unicode CLDR registry, then to
// the uppercased code itself.
func DisplayName(code string) string {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return "Unknown"
	}
	if e := lookup(strings.ToLower(trimmed)); e != nil {
		return e.display
	}
	if tag, err := xlang.Parse(trimmed); err == nil {
		if name := display.English.Languages().Name(tag); name != "" {
			return name
		}
	}
	return strings.ToUpper(trimmed)
}
