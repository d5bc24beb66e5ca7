package fs

import (
	"bufio"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// IgnoreFileName is read from the root of a directory being uploaded.
const IgnoreFileName = ".vfmignore"

// builtinIgnores apply to every directory upload.
var builtinIgnores = []string{IgnoreFileName, ".DS_Store", "Thumbs.db"}

type rule struct {
	glob    string
	anchor  bool // glob contains '/', compare against the whole relative path
	dirOnly bool // written with a trailing '/'
}

// IgnoreMatcher decides which entries of a local directory are skipped.
// A pattern without '/' is compared with the entry's base name at any
// depth. A pattern containing '/' is compared with the path relative to
// the upload root. A trailing '/' restricts a pattern to directories.
type IgnoreMatcher struct {
	rules []rule
}

// NewIgnoreMatcher parses patterns, skipping blank lines and '#' comments.
func NewIgnoreMatcher(patterns []string) *IgnoreMatcher {
	m := &IgnoreMatcher{}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" || strings.HasPrefix(p, "#") {
			continue
		}
		r := rule{}
		if strings.HasSuffix(p, "/") {
			r.dirOnly = true
			p = strings.TrimRight(p, "/")
		}
		p = strings.TrimPrefix(p, "/")
		if p == "" {
			continue
		}
		r.glob = p
		r.anchor = strings.Contains(p, "/")
		m.rules = append(m.rules, r)
	}
	return m
}

// Match reports whether rel, a path relative to the upload root, is
// ignored. isDir says whether rel names a directory.
func (m *IgnoreMatcher) Match(rel string, isDir bool) bool {
	if rel == "" || rel == "." {
		return false
	}
	rel = filepath.ToSlash(rel)
	base := path.Base(rel)

	for _, r := range m.rules {
		if r.dirOnly && !isDir {
			continue
		}
		subject := base
		if r.anchor {
			subject = rel
		}
		// A malformed glob never matches.
		if ok, err := path.Match(r.glob, subject); err == nil && ok {
			return true
		}
	}
	return false
}

// ReadIgnoreFile returns the raw lines of an ignore file, or nil if it
// does not exist.
func ReadIgnoreFile(name string) ([]string, error) {
	f, err := os.Open(name)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return lines, nil
}
