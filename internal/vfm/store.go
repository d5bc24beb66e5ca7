package vfm

import (
	"context"
	"time"

	"vfm-go/internal/model"
)

// Record is implemented by every entity the metadata store persists.
type Record interface {
	RecordID() string
	Stamp(now time.Time, insert bool)
}

// Collection is one typed, id-keyed collection of the metadata store.
// T is a pointer to a model type, e.g. *model.Folder.
//
// Each method is a single store operation. Nothing spans records, so a
// sequence of calls is not atomic.
type Collection[T Record] interface {
	// Add inserts rec and fails with ErrDuplicateKey if its id (or a unique
	// index value) is already present. Timestamps are set on rec.
	Add(ctx context.Context, rec T) error

	// Get returns the record with the given id, or nil if there is none.
	Get(ctx context.Context, id string) (T, error)

	// GetAll returns every record in the collection, unordered.
	GetAll(ctx context.Context) ([]T, error)

	// GetByIndex returns the records whose indexed field equals value,
	// unordered. An index name the collection does not declare is an error.
	GetByIndex(ctx context.Context, index string, value string) ([]T, error)

	// Update creates or replaces rec by id. Concurrent writers to the same
	// id resolve last-write-wins.
	Update(ctx context.Context, rec T) error

	// Delete removes the record with the given id. Deleting an absent id
	// succeeds.
	Delete(ctx context.Context, id string) error
}

// Index names shared by every MetadataStore implementation.
const (
	IndexEmail            = "email"
	IndexAccountID        = "accountId"
	IndexOwner            = "owner"
	IndexType             = "type"
	IndexName             = "name"
	IndexParentID         = "parentId"
	IndexUserID           = "userId"
	IndexSessionToken     = "sessionToken"
	IndexFileID           = "fileId"
	IndexOwnerID          = "ownerId"
	IndexSharedWithEmail  = "sharedWithEmail"
	IndexSharedWithUserID = "sharedWithUserId"
)

// MetadataStore is the persistent, indexed store for all entity metadata.
// It is constructed once by the application and shared by every manager.
type MetadataStore interface {
	// Init opens the store and creates its collections and indexes. It is
	// safe to call more than once. When the environment cannot host the
	// store, Init returns nil and later operations fail with
	// ErrStorageUnavailable.
	Init(ctx context.Context) error

	// Available reports whether Init succeeded in opening the store.
	Available() bool

	Users() Collection[*model.User]
	Files() Collection[*model.File]
	Folders() Collection[*model.Folder]
	Sessions() Collection[*model.Session]
	Shares() Collection[*model.Share]

	// Close releases the underlying connection.
	Close() error
}
