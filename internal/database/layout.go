package database

import (
	"slices"

	"vfm-go/internal/vfm"
)

// layout describes one collection: its table (or mongo collection) name and
// the record fields it is indexed on. Index names equal the JSON/BSON field
// names they cover.
type layout struct {
	name    string
	indexes []string
	unique  []string
}

func (l layout) hasIndex(index string) bool { return slices.Contains(l.indexes, index) }

func (l layout) isUnique(index string) bool { return slices.Contains(l.unique, index) }

var (
	usersLayout = layout{
		name:    "users",
		indexes: []string{vfm.IndexEmail, vfm.IndexAccountID},
		unique:  []string{vfm.IndexEmail},
	}
	filesLayout = layout{
		name:    "files",
		indexes: []string{vfm.IndexOwner, vfm.IndexAccountID, vfm.IndexType, vfm.IndexName, vfm.IndexParentID},
	}
	foldersLayout = layout{
		name:    "folders",
		indexes: []string{vfm.IndexOwner, vfm.IndexAccountID, vfm.IndexName, vfm.IndexParentID},
	}
	sessionsLayout = layout{
		name:    "sessions",
		indexes: []string{vfm.IndexSessionToken, vfm.IndexUserID, vfm.IndexAccountID},
		unique:  []string{vfm.IndexSessionToken},
	}
	sharesLayout = layout{
		name:    "shares",
		indexes: []string{vfm.IndexFileID, vfm.IndexOwnerID, vfm.IndexSharedWithEmail, vfm.IndexSharedWithUserID},
	}
)

var layouts = []layout{usersLayout, filesLayout, foldersLayout, sessionsLayout, sharesLayout}
