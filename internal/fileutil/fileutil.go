package fileutil

import (
	"path/filepath"
	"strings"
)

// Stem returns the file name of path without its final extension:
// "/media/movie.en.srt" yields "movie.en".
func Stem(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// HasExtension reports whether the file name ends in one of exts,
// compared case-insensitively. Extensions are expected in ".srt"
// form.
func HasExtension(name string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return false
	}
	for _, candidate := range exts {
		if ext == strings.ToLower(candidate) {
			return true
		}
	}
	return false
}

// ContainsMarker reports whether the file name carries the engine
// output marker as a dotted segment, as in "movie.en.ffsubsync.synced.srt".
func ContainsMarker(name, marker string) bool {
	marker = strings.TrimSpace(marker)
	if marker == "" {
		return false
	}
	return strings.Contains(strings.ToLower(filepath.Base(name)), "."+strings.ToLower(marker)+".")
}

// OutputPath derives the synchronized-output path for a subtitle and
// engine: "/media/movie.en.srt" processed by ffsubsync with marker
// "synced" becomes "/media/movie.en.ffsubsync.synced.srt". The output
// stays beside the input so a later scan can recognize it by marker.
func OutputPath(subtitle, engine, marker string) string {
	dir := filepath.Dir(subtitle)
	ext := filepath.Ext(subtitle)
	return filepath.Join(dir, Stem(subtitle)+"."+engine+"."+marker+ext)
}
