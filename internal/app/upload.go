package app

import (
	"context"
	"fmt"
	"maps"
	"mime"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"vfm-go/internal/fs"
	"vfm-go/internal/model"
	"vfm-go/internal/vfm"
)

// DirUpload summarizes a directory upload.
type DirUpload struct {
	FoldersCreated int
	Outcomes       []vfm.UploadOutcome // Name is the path relative to the uploaded directory
	Skipped        int
}

// Failed counts the files that were not uploaded.
func (d *DirUpload) Failed() int {
	n := 0
	for _, o := range d.Outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}

// UploadDir mirrors the local directory dir into a folder of the same name
// under parent. Folders that already exist by name are reused. With
// recursive unset only the files directly in dir are uploaded.
func (a *VFMApp) UploadDir(ctx context.Context, user *model.User, dir string, parent *string, recursive bool) (*DirUpload, error) {
	tree, err := fs.Scan(dir, recursive, a.cfg.Upload.Ignore)
	if err != nil {
		return nil, err
	}
	a.logger.Info("scanned directory", "root", tree.Root, "files", len(tree.Files), "skipped", tree.Skipped)

	res := &DirUpload{Skipped: tree.Skipped}
	folders := make(map[string]*string, len(tree.Dirs)+1)

	top, created, err := a.ensureFolder(ctx, user, filepath.Base(tree.Root), parent)
	if err != nil {
		return nil, err
	}
	if created {
		res.FoldersCreated++
	}
	folders[""] = top

	for _, rel := range tree.Dirs {
		id, created, err := a.ensureFolder(ctx, user, path.Base(rel), folders[parentDir(rel)])
		if err != nil {
			return res, fmt.Errorf("creating folder %s: %w", rel, err)
		}
		if created {
			res.FoldersCreated++
		}
		folders[rel] = id
	}

	groups := tree.ByDir()
	for _, rel := range slices.Sorted(maps.Keys(groups)) {
		outs := a.uploadLocal(ctx, user, groups[rel], folders[rel])
		for i := range outs {
			outs[i].Name = path.Join(rel, outs[i].Name)
		}
		res.Outcomes = append(res.Outcomes, outs...)
	}
	return res, nil
}

// UploadFiles uploads individual local files into parent.
func (a *VFMApp) UploadFiles(ctx context.Context, user *model.User, paths []string, parent *string) ([]vfm.UploadOutcome, error) {
	files := make([]fs.LocalFile, 0, len(paths))
	for _, p := range paths {
		abs, info, err := fs.Stat(p)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			return nil, fmt.Errorf("%s is a directory: %w", p, vfm.ErrInvalidInput)
		}
		files = append(files, fs.LocalFile{Path: abs, Name: info.Name(), Size: info.Size()})
	}
	return a.uploadLocal(ctx, user, files, parent), nil
}

// uploadLocal uploads files one at a time, holding a single open handle.
// A file that cannot be opened fails on its own; the rest still upload.
func (a *VFMApp) uploadLocal(ctx context.Context, user *model.User, files []fs.LocalFile, parent *string) []vfm.UploadOutcome {
	outs := make([]vfm.UploadOutcome, 0, len(files))
	for _, lf := range files {
		up, err := a.uploadOne(ctx, user, lf, parent)
		if err != nil {
			a.logger.Warn("upload failed", "name", lf.Name, "error", err)
		} else {
			up.URL.Release()
		}
		outs = append(outs, vfm.UploadOutcome{Name: lf.Name, Uploaded: up, Err: err})
	}
	return outs
}

func (a *VFMApp) uploadOne(ctx context.Context, user *model.User, lf fs.LocalFile, parent *string) (*vfm.Uploaded, error) {
	f, err := os.Open(lf.Path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", lf.Path, err)
	}
	defer f.Close()

	return a.services.Files.Upload(ctx, vfm.Upload{
		Name:     lf.Name,
		MimeType: mime.TypeByExtension(filepath.Ext(lf.Name)),
		Size:     lf.Size,
		Content:  f,
	}, user.ID, user.AccountID, parent)
}

// ensureFolder returns the folder named name under parent, creating it
// when no folder of that name (compared case-insensitively) exists.
func (a *VFMApp) ensureFolder(ctx context.Context, user *model.User, name string, parent *string) (*string, bool, error) {
	for _, f := range a.services.Folders.List(ctx, parent, user.ID, user.AccountID, "", "") {
		if strings.EqualFold(f.Name, name) {
			return &f.ID, false, nil
		}
	}
	f, err := a.services.Folders.Create(ctx, name, parent, user.ID, user.AccountID)
	if err != nil {
		return nil, false, err
	}
	return &f.ID, true, nil
}

func parentDir(rel string) string {
	d := path.Dir(rel)
	if d == "." {
		return ""
	}
	return d
}
