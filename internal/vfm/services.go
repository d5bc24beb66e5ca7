package vfm

// Services bundles the managers built over one metadata store and one
// blob store.
type Services struct {
	Folders   *FolderTree
	Files     *FileManager
	Sharing   *Sharing
	Accounts  *Accounts
	Workspace *Workspace
}

// Options tunes NewServices.
type Options struct {
	// MaxUploadSize caps uploads in bytes. Zero means MaxUploadSize.
	MaxUploadSize int64
}

// NewServices wires every manager to the given stores.
func NewServices(store MetadataStore, blobs BlobStore, logger Logger, clock Clock, idgen IDGenerator, opts Options) *Services {
	sharing := NewSharing(store, logger, idgen)
	folders := NewFolderTree(store, blobs, logger, idgen)
	files := NewFileManager(store, blobs, sharing, logger, clock, idgen, opts.MaxUploadSize)

	return &Services{
		Folders:   folders,
		Files:     files,
		Sharing:   sharing,
		Accounts:  NewAccounts(store, logger, clock, idgen),
		Workspace: NewWorkspace(folders, files),
	}
}
