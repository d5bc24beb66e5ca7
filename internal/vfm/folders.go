package vfm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"vfm-go/internal/model"
)

// FolderTree maintains each owner's folder forest: sibling names are unique
// ignoring case, and parent chains never loop.
//
// Every structural change validates first and writes second. Two calls
// racing on the same name can both pass validation; nothing serializes them.
type FolderTree struct {
	store  MetadataStore
	blobs  BlobStore
	logger Logger
	idgen  IDGenerator
}

// NewFolderTree creates a FolderTree. blobs is used only to remove the
// content of files inside deleted folders.
func NewFolderTree(store MetadataStore, blobs BlobStore, logger Logger, idgen IDGenerator) *FolderTree {
	return &FolderTree{
		store:  store,
		blobs:  blobs,
		logger: logger,
		idgen:  idgen,
	}
}

// DeleteResult counts what a recursive folder delete removed.
type DeleteResult struct {
	DeletedFolders int `json:"deletedFolders"`
	DeletedFiles   int `json:"deletedFiles"`
}

// FolderStats summarizes a folder's subtree. FolderCount excludes the
// folder itself.
type FolderStats struct {
	TotalSize   int64 `json:"totalSize"`
	FileCount   int   `json:"fileCount"`
	FolderCount int   `json:"folderCount"`
}

// Breadcrumb is one step of the path from the root to a folder.
type Breadcrumb struct {
	ID   *string `json:"id"`
	Name string  `json:"name"`
	Path string  `json:"url"`
}

// RootBreadcrumb is the first entry of every breadcrumb trail.
func RootBreadcrumb() Breadcrumb {
	return Breadcrumb{ID: nil, Name: "Root", Path: "/"}
}

// Get returns the folder with the given id, or nil.
func (t *FolderTree) Get(ctx context.Context, folderID string) (*model.Folder, error) {
	f, err := t.store.Folders().Get(ctx, folderID)
	if err != nil {
		return nil, fmt.Errorf("getting folder: %w", err)
	}
	return f, nil
}

// ownerFolders fetches every folder of an owner in one store call.
func (t *FolderTree) ownerFolders(ctx context.Context, ownerID string) ([]*model.Folder, error) {
	folders, err := t.store.Folders().GetByIndex(ctx, IndexOwner, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing folders of %s: %w", ownerID, err)
	}
	return folders, nil
}

// ValidateName reports whether name is free among the owner's folders
// under parentID, ignoring case. excludeID, when non-empty, is left out of
// the comparison so a folder does not collide with itself.
func (t *FolderTree) ValidateName(ctx context.Context, name string, parentID *string, ownerID, excludeID string) (bool, error) {
	folders, err := t.ownerFolders(ctx, ownerID)
	if err != nil {
		return false, err
	}
	return !folderNameTaken(folders, name, parentID, excludeID), nil
}

func folderNameTaken(folders []*model.Folder, name string, parentID *string, excludeID string) bool {
	want := strings.ToLower(name)
	for _, f := range folders {
		if f.ID == excludeID || !model.SameParent(f.ParentID, parentID) {
			continue
		}
		if strings.ToLower(f.Name) == want {
			return true
		}
	}
	return false
}

func checkName(kind, name string) error {
	if strings.TrimSpace(name) == "" {
		return newError(ErrInvalidInput, "%s name is required", kind)
	}
	return nil
}

// Create adds a folder named name under parentID (nil for the root).
func (t *FolderTree) Create(ctx context.Context, name string, parentID *string, ownerID, accountID string) (*model.Folder, error) {
	if err := checkName("Folder", name); err != nil {
		return nil, err
	}

	folders, err := t.ownerFolders(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if parentID != nil && findFolder(folders, *parentID) == nil {
		return nil, notFound("Parent folder")
	}
	if folderNameTaken(folders, name, parentID, "") {
		return nil, newError(ErrNameConflict, "A folder named \"%s\" already exists in this location", name)
	}

	folder := &model.Folder{
		ID:        t.idgen.New(),
		Name:      name,
		ParentID:  parentID,
		Owner:     ownerID,
		AccountID: accountID,
	}
	if err := t.store.Folders().Add(ctx, folder); err != nil {
		return nil, fmt.Errorf("creating folder: %w", err)
	}

	t.logger.Info("folder created", "id", folder.ID, "name", name, "parent", model.ParentKey(parentID))
	return folder, nil
}

// List returns the folders directly under parentID that belong to
// accountID, filtered by a case-insensitive substring of search and ordered
// by sortKey. Folders have no size, so a size key keeps store order.
// Store failures are logged and yield an empty list.
func (t *FolderTree) List(ctx context.Context, parentID *string, ownerID, accountID, sortKey, search string) []*model.Folder {
	folders, err := t.ownerFolders(ctx, ownerID)
	if err != nil {
		t.logger.Warn("listing folders failed", "owner", ownerID, "error", err)
		return []*model.Folder{}
	}

	out := make([]*model.Folder, 0, len(folders))
	for _, f := range folders {
		if !model.SameParent(f.ParentID, parentID) || f.AccountID != accountID {
			continue
		}
		if !matchesSearch(f.Name, search) {
			continue
		}
		out = append(out, f)
	}

	sortFolders(out, ParseSortKey(sortKey))
	return out
}

func sortFolders(folders []*model.Folder, key SortKey) {
	sortBy(folders, key, sortFields[*model.Folder]{
		name:    func(f *model.Folder) string { return f.Name },
		created: func(f *model.Folder) time.Time { return f.CreatedAt },
	})
}

// Rename gives a folder a new name, unique among its siblings.
func (t *FolderTree) Rename(ctx context.Context, folderID, newName string) (*model.Folder, error) {
	if err := checkName("Folder", newName); err != nil {
		return nil, err
	}

	folder, err := t.Get(ctx, folderID)
	if err != nil {
		return nil, err
	}
	if folder == nil {
		return nil, notFound("Folder")
	}

	folders, err := t.ownerFolders(ctx, folder.Owner)
	if err != nil {
		return nil, err
	}
	if folderNameTaken(folders, newName, folder.ParentID, folder.ID) {
		return nil, newError(ErrNameConflict, "A folder named \"%s\" already exists in this location", newName)
	}

	old := folder.Name
	folder.Name = newName
	if err := t.store.Folders().Update(ctx, folder); err != nil {
		return nil, fmt.Errorf("renaming folder: %w", err)
	}

	t.logger.Info("folder renamed", "id", folderID, "from", old, "to", newName)
	return folder, nil
}

// Move re-parents a folder under targetParentID (nil for the root). The
// target may not be the folder itself or anything beneath it.
func (t *FolderTree) Move(ctx context.Context, folderID string, targetParentID *string) (*model.Folder, error) {
	folder, err := t.Get(ctx, folderID)
	if err != nil {
		return nil, err
	}
	if folder == nil {
		return nil, notFound("Folder")
	}
	if model.SameParent(folder.ParentID, targetParentID) {
		return nil, newError(ErrNoOp, "Folder is already in this location")
	}

	folders, err := t.ownerFolders(ctx, folder.Owner)
	if err != nil {
		return nil, err
	}
	if hasCircularReference(folders, folderID, targetParentID) {
		return nil, newError(ErrCircularReference, "Cannot move a folder into its own subfolder")
	}
	if targetParentID != nil && findFolder(folders, *targetParentID) == nil {
		return nil, notFound("Destination folder")
	}
	if folderNameTaken(folders, folder.Name, targetParentID, folder.ID) {
		return nil, newError(ErrNameConflict, "A folder named \"%s\" already exists in the destination", folder.Name)
	}

	from := model.ParentKey(folder.ParentID)
	folder.ParentID = targetParentID
	if err := t.store.Folders().Update(ctx, folder); err != nil {
		return nil, fmt.Errorf("moving folder: %w", err)
	}

	t.logger.Info("folder moved", "id", folderID, "from", from, "to", model.ParentKey(targetParentID))
	return folder, nil
}

// hasCircularReference walks up from target toward the root and reports
// whether it meets folderID. A node seen twice means the stored tree
// already loops; the walk stops there and reports no cycle through
// folderID.
func hasCircularReference(folders []*model.Folder, folderID string, target *string) bool {
	if target == nil {
		return false
	}
	byID := indexFolders(folders)
	visited := make(map[string]bool)

	for cur := target; cur != nil; {
		id := *cur
		if id == folderID {
			return true
		}
		if visited[id] {
			return false
		}
		visited[id] = true

		f, ok := byID[id]
		if !ok {
			return false
		}
		cur = f.ParentID
	}
	return false
}

// Descendants returns folderID and the ids of every folder beneath it,
// breadth first.
func (t *FolderTree) Descendants(ctx context.Context, folderID string) ([]string, error) {
	folder, err := t.Get(ctx, folderID)
	if err != nil {
		return nil, err
	}
	if folder == nil {
		return nil, notFound("Folder")
	}
	folders, err := t.ownerFolders(ctx, folder.Owner)
	if err != nil {
		return nil, err
	}
	return descendantIDs(folders, folderID), nil
}

// descendantIDs does a queue-based walk over a parent -> children view
// built from one bulk fetch.
func descendantIDs(folders []*model.Folder, rootID string) []string {
	children := make(map[string][]string)
	for _, f := range folders {
		if f.ParentID != nil {
			children[*f.ParentID] = append(children[*f.ParentID], f.ID)
		}
	}

	ids := []string{rootID}
	seen := map[string]bool{rootID: true}
	for queue := []string{rootID}; len(queue) > 0; {
		id := queue[0]
		queue = queue[1:]
		for _, child := range children[id] {
			if seen[child] {
				continue
			}
			seen[child] = true
			ids = append(ids, child)
			queue = append(queue, child)
		}
	}
	return ids
}

// Delete removes a folder, every folder beneath it, and every file in any
// of them together with the files' blobs and shares.
//
// Metadata deletes are authoritative. Blob and share cleanup failures do
// not stop the delete; they come back as an ErrPartialFailure error next
// to a valid result. A failure part way through leaves a partly deleted
// subtree.
func (t *FolderTree) Delete(ctx context.Context, folderID string) (*DeleteResult, error) {
	folder, err := t.Get(ctx, folderID)
	if err != nil {
		return nil, err
	}
	if folder == nil {
		return nil, notFound("Folder")
	}

	folders, err := t.ownerFolders(ctx, folder.Owner)
	if err != nil {
		return nil, err
	}
	files, err := t.store.Files().GetByIndex(ctx, IndexOwner, folder.Owner)
	if err != nil {
		return nil, fmt.Errorf("listing files of %s: %w", folder.Owner, err)
	}
	shares, err := t.store.Shares().GetByIndex(ctx, IndexOwnerID, folder.Owner)
	if err != nil {
		return nil, fmt.Errorf("listing shares of %s: %w", folder.Owner, err)
	}

	ids := descendantIDs(folders, folderID)
	inTree := make(map[string]bool, len(ids))
	for _, id := range ids {
		inTree[id] = true
	}

	sharesByFile := make(map[string][]*model.Share)
	for _, s := range shares {
		sharesByFile[s.FileID] = append(sharesByFile[s.FileID], s)
	}

	result := &DeleteResult{}
	var cleanup []error

	for _, f := range files {
		if f.ParentID == nil || !inTree[*f.ParentID] {
			continue
		}
		if err := t.blobs.DeleteFile(ctx, f.BucketFileID); err != nil {
			t.logger.Error("deleting blob failed, blob orphaned", "file", f.ID, "blob", f.BucketFileID, "error", err)
			cleanup = append(cleanup, fmt.Errorf("blob %s of %q: %w", f.BucketFileID, f.Name, err))
		}
		if err := t.store.Files().Delete(ctx, f.ID); err != nil {
			return result, fmt.Errorf("deleting file %s: %w", f.ID, err)
		}
		result.DeletedFiles++

		for _, s := range sharesByFile[f.ID] {
			if err := t.store.Shares().Delete(ctx, s.ID); err != nil {
				t.logger.Error("deleting share failed", "share", s.ID, "file", f.ID, "error", err)
				cleanup = append(cleanup, fmt.Errorf("share %s of %q: %w", s.ID, f.Name, err))
			}
		}
	}

	for _, id := range ids {
		if err := t.store.Folders().Delete(ctx, id); err != nil {
			return result, fmt.Errorf("deleting folder %s: %w", id, err)
		}
		result.DeletedFolders++
	}

	t.logger.Info("folder deleted", "id", folderID, "folders", result.DeletedFolders, "files", result.DeletedFiles)
	return result, partialFailure("Folder delete", cleanup)
}

// Stats totals the size and counts of everything beneath a folder.
func (t *FolderTree) Stats(ctx context.Context, folderID, ownerID string) (*FolderStats, error) {
	folders, err := t.ownerFolders(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if findFolder(folders, folderID) == nil {
		return nil, notFound("Folder")
	}
	files, err := t.store.Files().GetByIndex(ctx, IndexOwner, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing files of %s: %w", ownerID, err)
	}

	ids := descendantIDs(folders, folderID)
	inTree := make(map[string]bool, len(ids))
	for _, id := range ids {
		inTree[id] = true
	}

	stats := &FolderStats{FolderCount: len(ids) - 1}
	for _, f := range files {
		if f.ParentID != nil && inTree[*f.ParentID] {
			stats.FileCount++
			stats.TotalSize += f.Size
		}
	}
	return stats, nil
}

// Breadcrumbs returns the trail from the root to folderID, starting with
// the synthetic Root entry. A nil folderID is the root itself. A missing
// folder along the chain ends the trail early. Store failures are logged
// and yield the root alone.
func (t *FolderTree) Breadcrumbs(ctx context.Context, folderID *string, ownerID string) []Breadcrumb {
	trail := []Breadcrumb{RootBreadcrumb()}
	if folderID == nil {
		return trail
	}

	folders, err := t.ownerFolders(ctx, ownerID)
	if err != nil {
		t.logger.Warn("building breadcrumbs failed", "folder", *folderID, "error", err)
		return trail
	}
	byID := indexFolders(folders)

	var path []Breadcrumb
	visited := make(map[string]bool)
	for cur := folderID; cur != nil; {
		f, ok := byID[*cur]
		if !ok || visited[f.ID] {
			break
		}
		visited[f.ID] = true
		id := f.ID
		path = append(path, Breadcrumb{ID: &id, Name: f.Name, Path: "/?folder=" + id})
		cur = f.ParentID
	}

	for i := len(path) - 1; i >= 0; i-- {
		trail = append(trail, path[i])
	}
	return trail
}

// Ancestors returns the folders above folderID, nearest first.
func (t *FolderTree) Ancestors(ctx context.Context, folderID, ownerID string) ([]*model.Folder, error) {
	folders, err := t.ownerFolders(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	byID := indexFolders(folders)
	start, ok := byID[folderID]
	if !ok {
		return nil, notFound("Folder")
	}

	var out []*model.Folder
	visited := map[string]bool{folderID: true}
	for cur := start.ParentID; cur != nil; {
		f, ok := byID[*cur]
		if !ok || visited[f.ID] {
			break
		}
		visited[f.ID] = true
		out = append(out, f)
		cur = f.ParentID
	}
	return out, nil
}

func indexFolders(folders []*model.Folder) map[string]*model.Folder {
	byID := make(map[string]*model.Folder, len(folders))
	for _, f := range folders {
		byID[f.ID] = f
	}
	return byID
}

func findFolder(folders []*model.Folder, id string) *model.Folder {
	for _, f := range folders {
		if f.ID == id {
			return f
		}
	}
	return nil
}
