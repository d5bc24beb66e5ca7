package model

import "time"

// Provider identifies how a user authenticated with the external identity provider.
type Provider string

const (
	ProviderCredentials Provider = "credentials"
	ProviderOAuth       Provider = "oauth"
)

// FileType is the coarse classification derived from a file's extension.
type FileType string

const (
	FileTypeDocument FileType = "document"
	FileTypeOther    FileType = "other"
)

// Permission is the access level a Share grants.
type Permission string

const (
	PermissionView Permission = "view"
)

// Timestamps is embedded in every persisted entity. The metadata store
// sets both fields on write; callers never fill them in.
type Timestamps struct {
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Stamp sets the write timestamps. On insert both are set to now; on
// replace UpdatedAt moves and a non-zero CreatedAt is kept.
func (t *Timestamps) Stamp(now time.Time, insert bool) {
	if insert || t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
}

// User is a registered account, created the first time an authenticated
// email is seen.
type User struct {
	ID           string   `json:"id" bson:"_id"`
	Name         string   `json:"name" bson:"name"`
	Email        string   `json:"email" bson:"email"`
	PasswordHash string   `json:"passwordHash,omitempty" bson:"passwordHash,omitempty"`
	Provider     Provider `json:"provider" bson:"provider"`
	AccountID    string   `json:"accountId" bson:"accountId"`
	Timestamps   `bson:",inline"`
}

// Folder is a node in a user's folder forest. A nil ParentID is the root.
type Folder struct {
	ID         string  `json:"id" bson:"_id"`
	Name       string  `json:"name" bson:"name"`
	ParentID   *string `json:"parentId" bson:"parentId"`
	Owner      string  `json:"owner" bson:"owner"`
	AccountID  string  `json:"accountId" bson:"accountId"`
	Timestamps `bson:",inline"`
}

// File is the metadata half of an uploaded file. Its bytes live in the blob
// store under BucketFileID.
type File struct {
	ID           string   `json:"id" bson:"_id"`
	Type         FileType `json:"type" bson:"type"`
	Name         string   `json:"name" bson:"name"`
	Extension    string   `json:"extension" bson:"extension"`
	Size         int64    `json:"size" bson:"size"`
	Owner        string   `json:"owner" bson:"owner"`
	AccountID    string   `json:"accountId" bson:"accountId"`
	BucketFileID string   `json:"bucketFileId" bson:"bucketFileId"`
	ParentID     *string  `json:"parentId" bson:"parentId"`
	Timestamps   `bson:",inline"`
}

// Share grants view access to one file for one recipient email.
type Share struct {
	ID               string     `json:"id" bson:"_id"`
	FileID           string     `json:"fileId" bson:"fileId"`
	OwnerID          string     `json:"ownerId" bson:"ownerId"`
	SharedWithEmail  string     `json:"sharedWithEmail" bson:"sharedWithEmail"`
	SharedWithUserID string     `json:"sharedWithUserId,omitempty" bson:"sharedWithUserId,omitempty"`
	Permission       Permission `json:"permission" bson:"permission"`
	Timestamps       `bson:",inline"`
}

// Session ties an opaque token to a user until Expires.
type Session struct {
	ID           string    `json:"id" bson:"_id"`
	SessionToken string    `json:"sessionToken" bson:"sessionToken"`
	UserID       string    `json:"userId" bson:"userId"`
	AccountID    string    `json:"accountId" bson:"accountId"`
	Expires      time.Time `json:"expires" bson:"expires"`
	Timestamps   `bson:",inline"`
}

func (u *User) RecordID() string    { return u.ID }
func (f *Folder) RecordID() string  { return f.ID }
func (f *File) RecordID() string    { return f.ID }
func (s *Share) RecordID() string   { return s.ID }
func (s *Session) RecordID() string { return s.ID }

// SameParent reports whether two nullable parent ids point at the same
// location. Two nils are the root.
func SameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// ParentKey renders a nullable parent id as a map key; the root is "".
func ParentKey(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
