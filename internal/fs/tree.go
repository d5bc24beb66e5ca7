package fs

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// LocalFile is a regular file found under an upload root.
type LocalFile struct {
	Path string // absolute path on disk
	Dir  string // slash-separated directory relative to the root; "" for the root itself
	Name string
	Size int64
}

// Tree is the result of scanning a local directory for upload.
type Tree struct {
	Root    string
	Dirs    []string // every non-ignored directory relative to Root, parents before children
	Files   []LocalFile
	Skipped int // entries dropped by ignore rules or because they are not regular files
}

// Stat checks that name exists and is something vfm can upload: a
// regular file or a directory.
func Stat(name string) (string, fs.FileInfo, error) {
	abs, err := filepath.Abs(name)
	if err != nil {
		return "", nil, fmt.Errorf("resolving absolute path: %w", err)
	}
	info, err := os.Lstat(abs)
	if err != nil {
		return "", nil, fmt.Errorf("stat path: %w", err)
	}

	mode := info.Mode()
	switch {
	case mode&os.ModeSymlink != 0:
		return "", nil, fmt.Errorf("symlinks not supported: %s", abs)
	case mode&os.ModeDevice != 0:
		return "", nil, fmt.Errorf("device files not supported: %s", abs)
	case mode&os.ModeNamedPipe != 0:
		return "", nil, fmt.Errorf("named pipes not supported: %s", abs)
	case mode&os.ModeSocket != 0:
		return "", nil, fmt.Errorf("sockets not supported: %s", abs)
	}
	return abs, info, nil
}

// Scan lists the regular files under root. extra patterns are applied on
// top of the built-in ones and the root's .vfmignore. Without recursive,
// only the files directly in root are returned.
func Scan(root string, recursive bool, extra []string) (*Tree, error) {
	abs, info, err := Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", abs)
	}

	fromFile, err := ReadIgnoreFile(filepath.Join(abs, IgnoreFileName))
	if err != nil {
		return nil, err
	}
	patterns := append(append(append([]string{}, builtinIgnores...), extra...), fromFile...)
	ignore := NewIgnoreMatcher(patterns)

	t := &Tree{Root: abs}
	err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == abs {
			return nil
		}
		rel, err := filepath.Rel(abs, p)
		if err != nil {
			return err
		}

		if d.IsDir() {
			if !recursive || ignore.Match(rel, true) {
				t.Skipped++
				return filepath.SkipDir
			}
			t.Dirs = append(t.Dirs, filepath.ToSlash(rel))
			return nil
		}
		if !d.Type().IsRegular() || ignore.Match(rel, false) {
			t.Skipped++
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", p, err)
		}
		dir := filepath.ToSlash(filepath.Dir(rel))
		if dir == "." {
			dir = ""
		}
		t.Files = append(t.Files, LocalFile{Path: p, Dir: dir, Name: d.Name(), Size: fi.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	// Dirs are parents-first from the lexical walk; files are grouped by directory.
	sort.SliceStable(t.Files, func(i, j int) bool { return t.Files[i].Dir < t.Files[j].Dir })
	return t, nil
}

// ByDir groups the tree's files by their relative directory.
func (t *Tree) ByDir() map[string][]LocalFile {
	out := make(map[string][]LocalFile)
	for _, f := range t.Files {
		out[f.Dir] = append(out[f.Dir], f)
	}
	return out
}
