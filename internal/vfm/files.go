package vfm

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"vfm-go/internal/model"
)

// FileManager keeps file metadata and the blob holding its bytes in step.
// The two stores are written independently; when the second write fails
// the first is not rolled back.
type FileManager struct {
	store   MetadataStore
	blobs   BlobStore
	sharing *Sharing
	logger  Logger
	clock   Clock
	idgen   IDGenerator
	maxSize int64
}

// NewFileManager creates a FileManager. maxSize caps uploads; zero or a
// value above MaxUploadSize means MaxUploadSize.
func NewFileManager(store MetadataStore, blobs BlobStore, sharing *Sharing, logger Logger, clock Clock, idgen IDGenerator, maxSize int64) *FileManager {
	if maxSize <= 0 || maxSize > MaxUploadSize {
		maxSize = MaxUploadSize
	}
	return &FileManager{
		store:   store,
		blobs:   blobs,
		sharing: sharing,
		logger:  logger,
		clock:   clock,
		idgen:   idgen,
		maxSize: maxSize,
	}
}

// MaxSize returns the upload limit in bytes.
func (m *FileManager) MaxSize() int64 { return m.maxSize }

// Upload is one file handed to the manager for storage.
type Upload struct {
	Name     string
	MimeType string
	Size     int64
	Content  io.Reader
}

// Uploaded is the result of a successful upload. URL is a transient
// reference to the new blob; the caller releases it.
type Uploaded struct {
	File *model.File
	URL  *ObjectURL
}

// UploadOutcome is the per-file result of UploadBatch. Exactly one of
// Uploaded and Err is set.
type UploadOutcome struct {
	Name     string
	Uploaded *Uploaded
	Err      error
}

// Upload stores a file's bytes and then its metadata under parentID (nil
// for the root). Oversized files and name collisions are rejected before
// anything is written.
func (m *FileManager) Upload(ctx context.Context, in Upload, ownerID, accountID string, parentID *string) (*Uploaded, error) {
	if err := checkName("File", in.Name); err != nil {
		return nil, err
	}
	if in.Size > m.maxSize {
		return nil, newError(ErrOversizedFile, "%s is too large. Max file size is %s.", in.Name, FormatSize(m.maxSize))
	}

	if parentID != nil {
		parent, err := m.store.Folders().Get(ctx, *parentID)
		if err != nil {
			return nil, fmt.Errorf("getting parent folder: %w", err)
		}
		if parent == nil || parent.Owner != ownerID {
			return nil, notFound("Parent folder")
		}
	}

	files, err := m.ownerFiles(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if fileNameTaken(files, in.Name, parentID, "") {
		return nil, newError(ErrNameConflict, "A file named \"%s\" already exists in this location", in.Name)
	}

	fileID := m.idgen.New()
	blobID := m.idgen.New()

	meta := BlobMeta{
		ID:         blobID,
		Name:       in.Name,
		Size:       in.Size,
		MimeType:   in.MimeType,
		UploadedAt: m.clock.Now(),
	}
	if err := m.blobs.StoreFile(ctx, meta, in.Content); err != nil {
		return nil, fmt.Errorf("storing content of %s: %w", in.Name, err)
	}

	url, err := m.blobs.GetFileURL(ctx, blobID)
	if err != nil {
		m.logger.Warn("creating object url failed", "blob", blobID, "error", err)
		url = nil
	}

	fileType, ext := Classify(in.Name)
	file := &model.File{
		ID:           fileID,
		Type:         fileType,
		Name:         in.Name,
		Extension:    ext,
		Size:         in.Size,
		Owner:        ownerID,
		AccountID:    accountID,
		BucketFileID: blobID,
		ParentID:     parentID,
	}
	if err := m.store.Files().Add(ctx, file); err != nil {
		url.Release()
		m.logger.Error("recording file failed, blob orphaned", "name", in.Name, "blob", blobID, "error", err)
		return nil, &Error{
			Kind:    ErrPartialFailure,
			Message: fmt.Sprintf("The content of %s was stored but the file could not be recorded", in.Name),
			Cause:   err,
		}
	}

	m.logger.Info("file uploaded", "id", fileID, "name", in.Name, "size", in.Size, "blob", blobID)
	return &Uploaded{File: file, URL: url}, nil
}

// UploadBatch uploads each file independently. A rejected or failed file
// does not stop the others.
func (m *FileManager) UploadBatch(ctx context.Context, uploads []Upload, ownerID, accountID string, parentID *string) []UploadOutcome {
	outcomes := make([]UploadOutcome, len(uploads))
	for i, in := range uploads {
		up, err := m.Upload(ctx, in, ownerID, accountID, parentID)
		outcomes[i] = UploadOutcome{Name: in.Name, Uploaded: up, Err: err}
	}
	return outcomes
}

// Location is an optional parent filter. The zero value matches files in
// any folder; At(nil) matches only the root.
type Location struct {
	Set bool
	ID  *string
}

// At restricts a listing to the folder id (nil for the root).
func At(id *string) Location {
	return Location{Set: true, ID: id}
}

// FileFilter narrows a file listing. Zero values mean no restriction.
type FileFilter struct {
	Types  []model.FileType
	Search string
	Sort   string
	Limit  int
	Parent Location
}

// List returns an owner's files filtered by type, then name, sorted, then
// cut to Limit. Store failures are logged and yield an empty list.
func (m *FileManager) List(ctx context.Context, ownerID string, filter FileFilter) []*model.File {
	files, err := m.ownerFiles(ctx, ownerID)
	if err != nil {
		m.logger.Warn("listing files failed", "owner", ownerID, "error", err)
		return []*model.File{}
	}
	return filterFiles(files, filter)
}

func filterFiles(files []*model.File, filter FileFilter) []*model.File {
	types := make(map[model.FileType]bool, len(filter.Types))
	for _, t := range filter.Types {
		types[t] = true
	}

	out := make([]*model.File, 0, len(files))
	for _, f := range files {
		if filter.Parent.Set && !model.SameParent(f.ParentID, filter.Parent.ID) {
			continue
		}
		if len(types) > 0 && !types[f.Type] {
			continue
		}
		if !matchesSearch(f.Name, filter.Search) {
			continue
		}
		out = append(out, f)
	}

	sortBy(out, ParseSortKey(filter.Sort), sortFields[*model.File]{
		name:    func(f *model.File) string { return f.Name },
		size:    func(f *model.File) int64 { return f.Size },
		created: func(f *model.File) time.Time { return f.CreatedAt },
	})

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out
}

// Get returns the file with the given id, or nil.
func (m *FileManager) Get(ctx context.Context, fileID string) (*model.File, error) {
	f, err := m.store.Files().Get(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("getting file: %w", err)
	}
	return f, nil
}

// Rename sets a file's name to base.extension. Unlike folders, a rename
// may collide with a sibling's name.
func (m *FileManager) Rename(ctx context.Context, fileID, base, extension string) (*model.File, error) {
	if err := checkName("File", base); err != nil {
		return nil, err
	}

	file, err := m.Get(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, notFound("File")
	}

	old := file.Name
	file.Name = JoinName(base, extension)
	file.Type, file.Extension = Classify(file.Name)
	if err := m.store.Files().Update(ctx, file); err != nil {
		return nil, fmt.Errorf("renaming file: %w", err)
	}

	m.logger.Info("file renamed", "id", fileID, "from", old, "to", file.Name)
	return file, nil
}

// Move re-parents a file under targetParentID (nil for the root).
func (m *FileManager) Move(ctx context.Context, fileID string, targetParentID *string) (*model.File, error) {
	file, err := m.Get(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, notFound("File")
	}

	if targetParentID != nil {
		target, err := m.store.Folders().Get(ctx, *targetParentID)
		if err != nil {
			return nil, fmt.Errorf("getting destination folder: %w", err)
		}
		if target == nil || target.Owner != file.Owner {
			return nil, notFound("Destination folder")
		}
	}

	files, err := m.ownerFiles(ctx, file.Owner)
	if err != nil {
		return nil, err
	}
	if fileNameTaken(files, file.Name, targetParentID, file.ID) {
		return nil, newError(ErrNameConflict, "A file named \"%s\" already exists in the destination", file.Name)
	}

	from := model.ParentKey(file.ParentID)
	file.ParentID = targetParentID
	if err := m.store.Files().Update(ctx, file); err != nil {
		return nil, fmt.Errorf("moving file: %w", err)
	}

	m.logger.Info("file moved", "id", fileID, "from", from, "to", model.ParentKey(targetParentID))
	return file, nil
}

// Delete removes a file's metadata, its blob and every share of it. Each
// step is idempotent. Only a metadata failure is returned as a plain
// error; blob and share failures come back as ErrPartialFailure after the
// metadata is gone. An empty blobID is looked up from the file.
func (m *FileManager) Delete(ctx context.Context, fileID, blobID string) error {
	if blobID == "" {
		file, err := m.Get(ctx, fileID)
		if err != nil {
			return err
		}
		if file != nil {
			blobID = file.BucketFileID
		}
	}

	if err := m.store.Files().Delete(ctx, fileID); err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}

	var cleanup []error
	if blobID != "" {
		if err := m.blobs.DeleteFile(ctx, blobID); err != nil {
			m.logger.Error("deleting blob failed, blob orphaned", "file", fileID, "blob", blobID, "error", err)
			cleanup = append(cleanup, fmt.Errorf("blob %s: %w", blobID, err))
		}
	}
	if err := m.sharing.DeleteSharesForFile(ctx, fileID); err != nil {
		cleanup = append(cleanup, err)
	}

	m.logger.Info("file deleted", "id", fileID, "blob", blobID)
	return partialFailure("File delete", cleanup)
}

// Open returns a file and its bytes to a user who owns it or has it shared
// with them.
func (m *FileManager) Open(ctx context.Context, fileID, userID, email string) (*model.File, *StoredBlob, error) {
	file, err := m.authorize(ctx, fileID, userID, email)
	if err != nil {
		return nil, nil, err
	}

	blob, err := m.blobs.GetFile(ctx, file.BucketFileID)
	if err != nil {
		return nil, nil, fmt.Errorf("reading content of %s: %w", file.Name, err)
	}
	if blob == nil {
		return nil, nil, notFound("File content")
	}
	return file, blob, nil
}

// URL returns a transient reference to a file's bytes for a user who may
// read it. The caller releases it.
func (m *FileManager) URL(ctx context.Context, fileID, userID, email string) (*model.File, *ObjectURL, error) {
	file, err := m.authorize(ctx, fileID, userID, email)
	if err != nil {
		return nil, nil, err
	}

	url, err := m.blobs.GetFileURL(ctx, file.BucketFileID)
	if err != nil {
		return nil, nil, fmt.Errorf("creating url for %s: %w", file.Name, err)
	}
	if url == nil {
		return nil, nil, notFound("File content")
	}
	return file, url, nil
}

func (m *FileManager) authorize(ctx context.Context, fileID, userID, email string) (*model.File, error) {
	file, err := m.Get(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, notFound("File")
	}
	if access := m.sharing.CanAccess(ctx, fileID, userID, email); !access.CanAccess {
		return nil, newError(ErrForbidden, "You do not have access to this file")
	}
	return file, nil
}

// Usage summarizes the storage an owner's files take up.
type Usage struct {
	TotalSize int64                           `json:"totalSize"`
	FileCount int                             `json:"fileCount"`
	ByType    map[model.FileType]*UsageByType `json:"byType"`
}

// UsageByType is the share of Usage held by one file type.
type UsageByType struct {
	Count        int       `json:"count"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

// Usage totals an owner's files overall and per type. Store failures are
// logged and yield an empty summary.
func (m *FileManager) Usage(ctx context.Context, ownerID string) *Usage {
	usage := &Usage{ByType: make(map[model.FileType]*UsageByType)}

	files, err := m.ownerFiles(ctx, ownerID)
	if err != nil {
		m.logger.Warn("computing usage failed", "owner", ownerID, "error", err)
		return usage
	}

	for _, f := range files {
		usage.TotalSize += f.Size
		usage.FileCount++

		u, ok := usage.ByType[f.Type]
		if !ok {
			u = &UsageByType{}
			usage.ByType[f.Type] = u
		}
		u.Count++
		u.Size += f.Size
		if f.UpdatedAt.After(u.LastModified) {
			u.LastModified = f.UpdatedAt
		}
	}
	return usage
}

func (m *FileManager) ownerFiles(ctx context.Context, ownerID string) ([]*model.File, error) {
	files, err := m.store.Files().GetByIndex(ctx, IndexOwner, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing files of %s: %w", ownerID, err)
	}
	return files, nil
}

func fileNameTaken(files []*model.File, name string, parentID *string, excludeID string) bool {
	want := strings.ToLower(name)
	for _, f := range files {
		if f.ID == excludeID || !model.SameParent(f.ParentID, parentID) {
			continue
		}
		if strings.ToLower(f.Name) == want {
			return true
		}
	}
	return false
}
