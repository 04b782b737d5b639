// Package language recognizes the language tokens that appear in
// subtitle file names. It normalizes ISO 639-1/639-2 codes, full
// word forms, and regional variants down to two-letter codes, splits
// subtitle stems like "movie.en.forced" into base name and language,
// and resolves display names for the UI.
package language
