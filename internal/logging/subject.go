package logging

import (
	"path/filepath"
	"strings"
)

// FormatSubject builds the run/file/engine subject string used in console output.
func FormatSubject(runID, file, engine string) string {
	runID = strings.TrimSpace(runID)
	file = strings.TrimSpace(file)
	engine = strings.TrimSpace(engine)
	parts := make([]string, 0, 2)
	if runID != "" {
		parts = append(parts, "run "+shortRunID(runID))
	}
	switch {
	case file != "" && engine != "":
		parts = append(parts, filepath.Base(file)+" ("+engine+")")
	case file != "":
		parts = append(parts, filepath.Base(file))
	case engine != "":
		parts = append(parts, engine)
	}
	return strings.Join(parts, " · ")
}

func shortRunID(id string) string {
	if idx := strings.IndexByte(id, '-'); idx >= 4 {
		return id[:idx]
	}
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
