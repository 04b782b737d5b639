// Package match pairs subtitle files with the video they belong to.
//
// A subtitle matches a video in the same directory by stem: an exact
// stem match wins (with or without the subtitle's language suffix),
// otherwise the video sharing the longest prefix where one stem is a
// prefix of the other. Directory listings are cached in an LRU for
// the lifetime of the matcher, which the processor scopes to one run.
package match

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"subcue/internal/fileutil"
	"subcue/internal/language"
)

const defaultCacheSize = 256

var videoExtensions = []string{
	".mkv", ".mp4", ".avi", ".mov", ".m4v", ".webm", ".wmv", ".ts", ".mpg", ".mpeg",
}

type videoEntry struct {
	path string
	stem string
}

// Match is the outcome of pairing one subtitle with a video. Video is
// empty when the directory holds no plausible candidate.
type Match struct {
	Video    string
	Base     string
	Language string
}

// Matcher resolves subtitle-to-video pairings with cached directory
// listings. Safe for concurrent use.
type Matcher struct {
	cache *lru.Cache[string, []videoEntry]
}

// NewMatcher builds a matcher whose listing cache holds up to size
// directories. A size of zero or less uses the default.
func NewMatcher(size int) (*Matcher, error) {
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New[string, []videoEntry](size)
	if err != nil {
		return nil, fmt.Errorf("create listing cache: %w", err)
	}
	return &Matcher{cache: cache}, nil
}

// Find locates the video for a subtitle path. A missing video is not
// an error; a directory that cannot be read is.
func (m *Matcher) Find(subtitle string) (Match, error) {
	stem := fileutil.Stem(subtitle)
	base, code := language.SplitStem(stem)
	result := Match{Base: base, Language: code}

	videos, err := m.listVideos(filepath.Dir(subtitle))
	if err != nil {
		return result, err
	}

	lowerFull := strings.ToLower(stem)
	lowerBase := strings.ToLower(base)
	for _, video := range videos {
		if video.stem == lowerFull {
			result.Video = video.path
			return result, nil
		}
	}
	for _, video := range videos {
		if video.stem == lowerBase {
			result.Video = video.path
			return result, nil
		}
	}

	best := -1
	bestLen := 0
	for i, video := range videos {
		common := commonPrefixLen(lowerBase, video.stem)
		if common == 0 {
			continue
		}
		if common != len(lowerBase) && common != len(video.stem) {
			continue
		}
		if common > bestLen {
			best, bestLen = i, common
		}
	}
	if best >= 0 {
		result.Video = videos[best].path
	}
	return result, nil
}

func (m *Matcher) listVideos(dir string) ([]videoEntry, error) {
	if cached, ok := m.cache.Get(dir); ok {
		return cached, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", dir, err)
	}
	videos := make([]videoEntry, 0, 8)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !fileutil.HasExtension(name, videoExtensions) {
			continue
		}
		videos = append(videos, videoEntry{
			path: filepath.Join(dir, name),
			stem: strings.ToLower(fileutil.Stem(name)),
		})
	}
	// sorted so prefix ties resolve the same way every run
	sort.Slice(videos, func(i, j int) bool { return videos[i].stem < videos[j].stem })
	m.cache.Add(dir, videos)
	return videos, nil
}

func commonPrefixLen(a, b string) int {
	limit := len(a)
	if len(b) < limit {
		limit = len(b)
	}
	i := 0
	for i < limit && a[i] == b[i] {
		i++
	}
	return i
}
