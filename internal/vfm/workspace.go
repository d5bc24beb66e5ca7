package vfm

import (
	"context"
	"fmt"

	"vfm-go/internal/model"
)

// ItemKind names the variant of an Item.
type ItemKind string

const (
	KindFolder ItemKind = "folder"
	KindFile   ItemKind = "file"
)

// Item is either a FolderItem or a FileItem. The set is closed; switch on
// the concrete type.
type Item interface {
	Kind() ItemKind
	ItemID() string
	ItemName() string
	item()
}

// FolderItem is the folder variant of Item.
type FolderItem struct{ Folder *model.Folder }

// FileItem is the file variant of Item.
type FileItem struct{ File *model.File }

func (FolderItem) Kind() ItemKind { return KindFolder }

func (i FolderItem) ItemID() string { return i.Folder.ID }

func (i FolderItem) ItemName() string { return i.Folder.Name }

func (FolderItem) item() {}

func (FileItem) Kind() ItemKind { return KindFile }

func (i FileItem) ItemID() string { return i.File.ID }

func (i FileItem) ItemName() string { return i.File.Name }

func (FileItem) item() {}

// ItemRef addresses an item by kind and id, as plain data.
type ItemRef struct {
	Kind ItemKind `json:"kind"`
	ID   string   `json:"id"`
}

// ParseItemKind accepts "folder" and "file".
func ParseItemKind(s string) (ItemKind, error) {
	switch ItemKind(s) {
	case KindFolder, KindFile:
		return ItemKind(s), nil
	default:
		return "", newError(ErrInvalidInput, "Unknown item type %q", s)
	}
}

// Workspace dispatches item actions to the folder tree or the file manager
// and assembles the views a folder page needs.
type Workspace struct {
	folders *FolderTree
	files   *FileManager
}

func NewWorkspace(folders *FolderTree, files *FileManager) *Workspace {
	return &Workspace{folders: folders, files: files}
}

// Resolve loads the item ref points at.
func (w *Workspace) Resolve(ctx context.Context, ref ItemRef) (Item, error) {
	switch ref.Kind {
	case KindFolder:
		f, err := w.folders.Get(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		if f == nil {
			return nil, notFound("Folder")
		}
		return FolderItem{Folder: f}, nil
	case KindFile:
		f, err := w.files.Get(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		if f == nil {
			return nil, notFound("File")
		}
		return FileItem{File: f}, nil
	default:
		return nil, newError(ErrInvalidInput, "Unknown item type %q", ref.Kind)
	}
}

// Rename renames the item. For a file, newName is the base name; the
// stored extension is kept.
func (w *Workspace) Rename(ctx context.Context, ref ItemRef, newName string) (Item, error) {
	it, err := w.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}

	switch it := it.(type) {
	case FolderItem:
		f, err := w.folders.Rename(ctx, it.Folder.ID, newName)
		if err != nil {
			return nil, err
		}
		return FolderItem{Folder: f}, nil
	case FileItem:
		f, err := w.files.Rename(ctx, it.File.ID, newName, it.File.Extension)
		if err != nil {
			return nil, err
		}
		return FileItem{File: f}, nil
	default:
		panic(fmt.Sprintf("vfm: unhandled item %T", it))
	}
}

// Move moves the item under targetParentID (nil for the root).
func (w *Workspace) Move(ctx context.Context, ref ItemRef, targetParentID *string) (Item, error) {
	it, err := w.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}

	switch it := it.(type) {
	case FolderItem:
		f, err := w.folders.Move(ctx, it.Folder.ID, targetParentID)
		if err != nil {
			return nil, err
		}
		return FolderItem{Folder: f}, nil
	case FileItem:
		f, err := w.files.Move(ctx, it.File.ID, targetParentID)
		if err != nil {
			return nil, err
		}
		return FileItem{File: f}, nil
	default:
		panic(fmt.Sprintf("vfm: unhandled item %T", it))
	}
}

// Delete deletes the item. The result is non-nil whenever metadata was
// removed, including alongside an ErrPartialFailure error.
func (w *Workspace) Delete(ctx context.Context, ref ItemRef) (*DeleteResult, error) {
	it, err := w.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}

	switch it := it.(type) {
	case FolderItem:
		return w.folders.Delete(ctx, it.Folder.ID)
	case FileItem:
		err := w.files.Delete(ctx, it.File.ID, it.File.BucketFileID)
		if err != nil && !isPartial(err) {
			return nil, err
		}
		return &DeleteResult{DeletedFiles: 1}, err
	default:
		panic(fmt.Sprintf("vfm: unhandled item %T", it))
	}
}

// ContentsQuery narrows the files shown by Contents. FileLimit of zero
// shows them all.
type ContentsQuery struct {
	Types     []model.FileType
	Search    string
	Sort      string
	FileLimit int
}

// Contents is everything a folder page shows.
type Contents struct {
	Folder      *model.Folder   `json:"folder"`
	Breadcrumbs []Breadcrumb    `json:"breadcrumbs"`
	Folders     []*model.Folder `json:"folders"`
	Files       []*model.File   `json:"files"`
}

// Contents lists the subfolders and files directly inside folderID (nil for
// the root). Subfolders are ordered by name; files follow q.Sort.
func (w *Workspace) Contents(ctx context.Context, folderID *string, ownerID, accountID string, q ContentsQuery) (*Contents, error) {
	out := &Contents{}
	if folderID != nil {
		f, err := w.folders.Get(ctx, *folderID)
		if err != nil {
			return nil, err
		}
		if f == nil || f.Owner != ownerID {
			return nil, notFound("Folder")
		}
		out.Folder = f
	}

	out.Breadcrumbs = w.folders.Breadcrumbs(ctx, folderID, ownerID)
	out.Folders = w.folders.List(ctx, folderID, ownerID, accountID, "name-asc", q.Search)
	out.Files = w.files.List(ctx, ownerID, FileFilter{
		Types:  q.Types,
		Search: q.Search,
		Sort:   q.Sort,
		Limit:  q.FileLimit,
		Parent: At(folderID),
	})
	return out, nil
}

// Recent lists an owner's files across all folders, newest first unless
// sortKey says otherwise.
func (w *Workspace) Recent(ctx context.Context, ownerID, sortKey, search string, limit int) []*model.File {
	return w.files.List(ctx, ownerID, FileFilter{Search: search, Sort: sortKey, Limit: limit})
}
