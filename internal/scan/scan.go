// Package scan discovers candidate subtitle files under the
// configured media roots. Roots are walked in parallel; the result is
// a deterministic sorted list with engine outputs already excluded.
package scan

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"subcue/internal/fileutil"
	"subcue/internal/services"
)

// Options configures one scan pass.
type Options struct {
	Roots           []string
	ExcludeDirs     []string
	Extensions      []string
	OutputMarker    string
	WalkConcurrency int
}

// Result is the outcome of one scan pass.
type Result struct {
	Subtitles    []string
	FilesScanned int
	DirsWalked   int
}

// Run walks every root and returns the sorted subtitle candidates.
// A missing root or an unreadable subtree fails the whole scan: a
// partial view of the library must not silently become a run.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if len(opts.Roots) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "scan", "roots", "No media roots configured", nil)
	}
	for _, root := range opts.Roots {
		info, err := os.Stat(root)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "scan", "roots", fmt.Sprintf("Media root %s unavailable", root), err)
		}
		if !info.IsDir() {
			return nil, services.Wrap(services.ErrConfiguration, "scan", "roots", fmt.Sprintf("Media root %s is not a directory", root), nil)
		}
	}

	excludes := make([]string, 0, len(opts.ExcludeDirs))
	for _, dir := range opts.ExcludeDirs {
		cleaned := filepath.Clean(strings.TrimSpace(dir))
		if cleaned != "" && cleaned != "." {
			excludes = append(excludes, cleaned)
		}
	}

	concurrency := opts.WalkConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	var (
		mu           sync.Mutex
		found        = make(map[string]struct{})
		filesScanned atomic.Int64
		dirsWalked   atomic.Int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, root := range opts.Roots {
		root := root
		g.Go(func() error {
			return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
				if err != nil {
					return services.Wrap(services.ErrTransient, "scan", "walk", fmt.Sprintf("Failed to walk %s", path), err)
				}
				if gctx.Err() != nil {
					return gctx.Err()
				}
				if entry.IsDir() {
					if path != root && skipDir(path, entry.Name(), excludes) {
						return filepath.SkipDir
					}
					dirsWalked.Add(1)
					return nil
				}
				filesScanned.Add(1)
				name := entry.Name()
				if !fileutil.HasExtension(name, opts.Extensions) {
					return nil
				}
				if fileutil.ContainsMarker(name, opts.OutputMarker) {
					return nil
				}
				mu.Lock()
				found[path] = struct{}{}
				mu.Unlock()
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	subtitles := make([]string, 0, len(found))
	for path := range found {
		subtitles = append(subtitles, path)
	}
	sort.Strings(subtitles)

	return &Result{
		Subtitles:    subtitles,
		FilesScanned: int(filesScanned.Load()),
		DirsWalked:   int(dirsWalked.Load()),
	}, nil
}

// skipDir prunes hidden directories and configured exclusions.
func skipDir(path, name string, excludes []string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	for _, exclude := range excludes {
		if path == exclude || strings.HasPrefix(path, exclude+string(filepath.Separator)) {
			return true
		}
		if name == exclude {
			return true
		}
	}
	return false
}
