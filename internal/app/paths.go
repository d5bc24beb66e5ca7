package app

import (
	"context"
	"fmt"
	"path"
	"strings"

	"vfm-go/internal/model"
	"vfm-go/internal/vault"
	"vfm-go/internal/vfm"
)

// ResolveFolder turns a CLI folder argument into a folder id for user.
// An argument starting with "/" is a path of folder names from the root,
// matched case-insensitively; anything else is taken as a folder id. The
// root ("/" or "") resolves to nil.
func (a *VFMApp) ResolveFolder(ctx context.Context, user *model.User, arg string) (*string, error) {
	if !strings.HasPrefix(arg, "/") {
		if arg == "" {
			return nil, nil
		}
		f, err := a.services.Folders.Get(ctx, arg)
		if err != nil {
			return nil, err
		}
		if f == nil || f.Owner != user.ID {
			return nil, fmt.Errorf("folder %s: %w", arg, vfm.ErrNotFound)
		}
		return &f.ID, nil
	}

	var parent *string
	for _, name := range splitPath(arg) {
		var next *model.Folder
		for _, f := range a.services.Folders.List(ctx, parent, user.ID, user.AccountID, "", "") {
			if strings.EqualFold(f.Name, name) {
				next = f
				break
			}
		}
		if next == nil {
			return nil, fmt.Errorf("folder %s: %w", arg, vfm.ErrNotFound)
		}
		parent = &next.ID
	}
	return parent, nil
}

// ResolveFile turns a CLI file argument into a file id for user. A path
// such as "/Docs/report.pdf" names the file within its folder; anything
// else is taken as a file id. Paths that match more than one file must be
// given by id.
func (a *VFMApp) ResolveFile(ctx context.Context, user *model.User, arg string) (string, error) {
	if !strings.HasPrefix(arg, "/") {
		return arg, nil
	}

	dir, name := path.Split(path.Clean(arg))
	if name == "" {
		return "", fmt.Errorf("%s is not a file path: %w", arg, vfm.ErrInvalidInput)
	}
	parent, err := a.ResolveFolder(ctx, user, dir)
	if err != nil {
		return "", err
	}

	var matches []*model.File
	for _, f := range a.services.Files.List(ctx, user.ID, vfm.FileFilter{Parent: vfm.At(parent)}) {
		if f.Name == name {
			matches = append(matches, f)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("file %s: %w", arg, vfm.ErrNotFound)
	case 1:
		return matches[0].ID, nil
	default:
		return "", fmt.Errorf("%d files are named %s; give the file id: %w", len(matches), arg, vfm.ErrInvalidInput)
	}
}

func splitPath(p string) []string {
	var out []string
	for _, part := range strings.Split(path.Clean(p), "/") {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// OwnedFile resolves arg like ResolveFile and returns the file only if
// user owns it. Files shared with user are reported as not found.
func (a *VFMApp) OwnedFile(ctx context.Context, user *model.User, arg string) (*model.File, error) {
	id, err := a.ResolveFile(ctx, user, arg)
	if err != nil {
		return nil, err
	}
	f, err := a.services.Files.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if f == nil || f.Owner != user.ID {
		return nil, fmt.Errorf("file %s: %w", arg, vfm.ErrNotFound)
	}
	return f, nil
}

// FileURL returns a URL for the content of the file arg names that stays
// valid after this process exits. Blob stores that only mint in-process
// object URLs cannot provide one; their URLs are served by `vfm serve`.
func (a *VFMApp) FileURL(ctx context.Context, user *model.User, arg string) (string, error) {
	id, err := a.ResolveFile(ctx, user, arg)
	if err != nil {
		return "", err
	}
	_, url, err := a.services.Files.URL(ctx, id, user.ID, user.Email)
	if err != nil {
		return "", err
	}
	defer url.Release()

	if strings.HasPrefix(url.URL, vault.URLPrefix) {
		return "", fmt.Errorf("the %s blob store has no external URLs; run `vfm serve` and POST /api/files/%s/url: %w",
			a.cfg.Blobs.Type, id, vfm.ErrInvalidInput)
	}
	return url.URL, nil
}
