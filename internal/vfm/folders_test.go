package vfm_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vfm-go/internal/database"
	"vfm-go/internal/model"
	"vfm-go/internal/testutil"
	"vfm-go/internal/vfm"
)

func TestFolderTree_CreateNameConflict(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := testutil.NewEnv(t)

	mkdir(t, env, "Docs", nil, alice)

	_, err := env.Folders.Create(ctx, "Docs", nil, alice, alice+"@acct")
	require.ErrorIs(t, err, vfm.ErrNameConflict)
	assert.Contains(t, err.Error(), "Docs")

	_, err = env.Folders.Create(ctx, "DOCS", nil, alice, alice+"@acct")
	require.ErrorIs(t, err, vfm.ErrNameConflict, "uniqueness ignores case")
}

func TestFolderTree_CreateScopes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := testutil.NewEnv(t)

	docs := mkdir(t, env, "Docs", nil, alice)

	tests := []struct {
		name    string
		folder  string
		parent  *string
		owner   string
		wantErr error
	}{
		{name: "same name under another parent", folder: "Docs", parent: &docs.ID, owner: alice},
		{name: "same name for another owner", folder: "Docs", parent: nil, owner: bob},
		{name: "missing parent", folder: "X", parent: ptr("missing"), owner: alice, wantErr: vfm.ErrNotFound},
		{name: "another owner's parent", folder: "X", parent: &docs.ID, owner: bob, wantErr: vfm.ErrNotFound},
		{name: "empty name", folder: "", parent: nil, owner: alice, wantErr: vfm.ErrInvalidInput},
		{name: "blank name", folder: "   ", parent: nil, owner: alice, wantErr: vfm.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := env.Folders.Create(ctx, tt.folder, tt.parent, tt.owner, tt.owner+"@acct")
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, f)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.folder, f.Name)
			assert.True(t, model.SameParent(tt.parent, f.ParentID))
			assert.Equal(t, tt.owner, f.Owner)
			assert.False(t, f.CreatedAt.IsZero())
		})
	}
}

func TestFolderTree_Rename(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := testutil.NewEnv(t)

	docs := mkdir(t, env, "Docs", nil, alice)
	mkdir(t, env, "Photos", nil, alice)

	_, err := env.Folders.Rename(ctx, docs.ID, "photos")
	require.ErrorIs(t, err, vfm.ErrNameConflict)

	renamed, err := env.Folders.Rename(ctx, docs.ID, "DOCS")
	require.NoError(t, err, "a folder does not collide with itself")
	assert.Equal(t, "DOCS", renamed.Name)

	stored, err := env.Folders.Get(ctx, docs.ID)
	require.NoError(t, err)
	assert.Equal(t, "DOCS", stored.Name)

	_, err = env.Folders.Rename(ctx, "missing", "x")
	require.ErrorIs(t, err, vfm.ErrNotFound)

	_, err = env.Folders.Rename(ctx, docs.ID, " ")
	require.ErrorIs(t, err, vfm.ErrInvalidInput)
}

func TestFolderTree_MoveCircular(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := testutil.NewEnv(t)

	a := mkdir(t, env, "A", nil, alice)
	b := mkdir(t, env, "B", &a.ID, alice)
	c := mkdir(t, env, "C", &b.ID, alice)

	// Every member of A's descendant set, A included, is an illegal target.
	for _, target := range []*model.Folder{a, b, c} {
		_, err := env.Folders.Move(ctx, a.ID, &target.ID)
		require.ErrorIs(t, err, vfm.ErrCircularReference, "move A into %s", target.Name)
	}

	moved, err := env.Folders.Move(ctx, c.ID, &a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, *moved.ParentID)

	crumbs := env.Folders.Breadcrumbs(ctx, &c.ID, alice)
	names := make([]string, len(crumbs))
	for i, bc := range crumbs {
		names[i] = bc.Name
	}
	assert.Equal(t, []string{"Root", "A", "C"}, names)
	assert.Nil(t, crumbs[0].ID)
	assert.Equal(t, "/", crumbs[0].Path)
	assert.Equal(t, "/?folder="+c.ID, crumbs[2].Path)
}

func TestFolderTree_MoveToAncestorOrUnrelated(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := testutil.NewEnv(t)

	a := mkdir(t, env, "A", nil, alice)
	b := mkdir(t, env, "B", &a.ID, alice)
	c := mkdir(t, env, "C", &b.ID, alice)
	other := mkdir(t, env, "Other", nil, alice)

	_, err := env.Folders.Move(ctx, c.ID, nil)
	require.NoError(t, err, "ancestor (root)")

	_, err = env.Folders.Move(ctx, b.ID, &other.ID)
	require.NoError(t, err, "unrelated folder")

	_, err = env.Folders.Move(ctx, c.ID, &a.ID)
	require.NoError(t, err, "former ancestor")
}

func TestFolderTree_MoveErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := testutil.NewEnv(t)

	a := mkdir(t, env, "A", nil, alice)
	b := mkdir(t, env, "B", nil, alice)
	mkdir(t, env, "A", &b.ID, alice)

	tests := []struct {
		name    string
		folder  string
		target  *string
		wantErr error
	}{
		{name: "already there", folder: a.ID, target: nil, wantErr: vfm.ErrNoOp},
		{name: "name taken in destination", folder: a.ID, target: &b.ID, wantErr: vfm.ErrNameConflict},
		{name: "missing destination", folder: a.ID, target: ptr("missing"), wantErr: vfm.ErrNotFound},
		{name: "missing folder", folder: "missing", target: nil, wantErr: vfm.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.Folders.Move(ctx, tt.folder, tt.target)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}

	stored, err := env.Folders.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.ParentID, "failed moves change nothing")
}

func TestFolderTree_SiblingNamesStayUnique(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := testutil.NewEnv(t)

	a := mkdir(t, env, "A", nil, alice)
	x := mkdir(t, env, "x", nil, alice)
	mkdir(t, env, "X", &a.ID, alice)
	y := mkdir(t, env, "Y", &a.ID, alice)

	// Attempt every kind of change; some fail, and uniqueness must hold
	// after whichever succeed.
	env.Folders.Move(ctx, x.ID, &a.ID)
	env.Folders.Rename(ctx, y.ID, "x")
	env.Folders.Create(ctx, "y", &a.ID, alice, alice+"@acct")
	env.Folders.Move(ctx, y.ID, nil)
	env.Folders.Rename(ctx, x.ID, "a")

	all, err := env.Store.Folders().GetByIndex(ctx, vfm.IndexOwner, alice)
	require.NoError(t, err)
	seen := make(map[string]string)
	for _, f := range all {
		key := model.ParentKey(f.ParentID) + "/" + strings.ToLower(f.Name)
		other, dup := seen[key]
		assert.False(t, dup, "folders %s and %s share name %q", other, f.ID, f.Name)
		seen[key] = f.ID
	}
}

func TestFolderTree_DeleteMatchesStats(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := testutil.NewEnv(t)
	register(t, env, alice, aliceEmail, "Alice")

	a := mkdir(t, env, "A", nil, alice)
	b := mkdir(t, env, "B", &a.ID, alice)
	c := mkdir(t, env, "C", &b.ID, alice)
	keep := mkdir(t, env, "Keep", nil, alice)

	inA := put(t, env, "a.pdf", "aaaa", &a.ID, alice)
	inC := put(t, env, "c.txt", "cc", &c.ID, alice)
	put(t, env, "c2.txt", "c", &c.ID, alice)
	outside := put(t, env, "keep.txt", "keep", &keep.ID, alice)
	atRoot := put(t, env, "root.txt", "r", nil, alice)

	res := env.Sharing.Share(ctx, inC.ID, bobEmail, alice, aliceEmail)
	require.True(t, res.Success)

	stats, err := env.Folders.Stats(ctx, a.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, vfm.FolderStats{TotalSize: 7, FileCount: 3, FolderCount: 2}, *stats)

	result, err := env.Folders.Delete(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, stats.FolderCount+1, result.DeletedFolders)
	assert.Equal(t, stats.FileCount, result.DeletedFiles)

	for _, id := range []string{a.ID, b.ID, c.ID} {
		f, err := env.Folders.Get(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, f, "folder %s survived", id)
	}
	for _, f := range []*model.File{inA, inC} {
		got, err := env.Files.Get(ctx, f.ID)
		require.NoError(t, err)
		assert.Nil(t, got, "file %s survived", f.Name)

		blob, err := env.Mem.GetFile(ctx, f.BucketFileID)
		require.NoError(t, err)
		assert.Nil(t, blob, "blob of %s survived", f.Name)
	}
	assert.Empty(t, env.Sharing.ListMyShares(ctx, alice))

	for _, f := range []*model.File{outside, atRoot} {
		got, err := env.Files.Get(ctx, f.ID)
		require.NoError(t, err)
		assert.NotNil(t, got, "file %s outside the tree was deleted", f.Name)
	}
	kept, err := env.Folders.Get(ctx, keep.ID)
	require.NoError(t, err)
	assert.NotNil(t, kept)
}

func TestFolderTree_DeletePartialFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := testutil.NewEnv(t)

	a := mkdir(t, env, "A", nil, alice)
	f := put(t, env, "a.txt", "abc", &a.ID, alice)

	env.Blobs.FailDelete(true)
	result, err := env.Folders.Delete(ctx, a.ID)
	require.ErrorIs(t, err, vfm.ErrPartialFailure)
	require.ErrorIs(t, err, testutil.ErrInjected)
	require.NotNil(t, result)
	assert.Equal(t, 1, result.DeletedFolders)
	assert.Equal(t, 1, result.DeletedFiles)

	got, err := env.Files.Get(ctx, f.ID)
	require.NoError(t, err)
	assert.Nil(t, got, "metadata delete is authoritative")
	assert.Equal(t, []string{f.BucketFileID}, env.Blobs.Deleted())
}

func TestFolderTree_DeleteMissing(t *testing.T) {
	t.Parallel()
	env := testutil.NewEnv(t)

	_, err := env.Folders.Delete(context.Background(), "missing")
	require.ErrorIs(t, err, vfm.ErrNotFound)
}

func TestFolderTree_Descendants(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := testutil.NewEnv(t)

	a := mkdir(t, env, "A", nil, alice)
	b1 := mkdir(t, env, "B1", &a.ID, alice)
	b2 := mkdir(t, env, "B2", &a.ID, alice)
	c := mkdir(t, env, "C", &b1.ID, alice)
	mkdir(t, env, "Unrelated", nil, alice)

	ids, err := env.Folders.Descendants(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, ids, 4)
	assert.Equal(t, a.ID, ids[0])
	assert.ElementsMatch(t, []string{b1.ID, b2.ID}, ids[1:3], "children before grandchildren")
	assert.Equal(t, c.ID, ids[3])

	ids, err = env.Folders.Descendants(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{c.ID}, ids)
}

func TestFolderTree_Ancestors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := testutil.NewEnv(t)

	a := mkdir(t, env, "A", nil, alice)
	b := mkdir(t, env, "B", &a.ID, alice)
	c := mkdir(t, env, "C", &b.ID, alice)

	got, err := env.Folders.Ancestors(ctx, c.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A"}, folderNames(got))

	got, err = env.Folders.Ancestors(ctx, a.ID, alice)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = env.Folders.Ancestors(ctx, "missing", alice)
	require.ErrorIs(t, err, vfm.ErrNotFound)
}

func TestFolderTree_BreadcrumbsStopAtMissingFolder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := testutil.NewEnv(t)

	assert.Equal(t, []vfm.Breadcrumb{vfm.RootBreadcrumb()}, env.Folders.Breadcrumbs(ctx, nil, alice))
	assert.Equal(t, []vfm.Breadcrumb{vfm.RootBreadcrumb()}, env.Folders.Breadcrumbs(ctx, ptr("missing"), alice))

	// A folder whose parent record is gone still shows itself.
	orphan := &model.Folder{ID: "orphan", Name: "Orphan", ParentID: ptr("gone"), Owner: alice, AccountID: alice + "@acct"}
	require.NoError(t, env.Store.Folders().Add(ctx, orphan))

	crumbs := env.Folders.Breadcrumbs(ctx, &orphan.ID, alice)
	require.Len(t, crumbs, 2)
	assert.Equal(t, "Orphan", crumbs[1].Name)
}

func TestFolderTree_CorruptCycleIsBounded(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := testutil.NewEnv(t)

	// Two folders that point at each other, written past validation.
	for _, f := range []*model.Folder{
		{ID: "loop-1", Name: "L1", ParentID: ptr("loop-2"), Owner: alice, AccountID: alice + "@acct"},
		{ID: "loop-2", Name: "L2", ParentID: ptr("loop-1"), Owner: alice, AccountID: alice + "@acct"},
	} {
		require.NoError(t, env.Store.Folders().Add(ctx, f))
	}
	x := mkdir(t, env, "X", nil, alice)

	_, err := env.Folders.Move(ctx, x.ID, ptr("loop-1"))
	require.NoError(t, err, "walk terminates without reaching X")

	assert.Len(t, env.Folders.Breadcrumbs(ctx, ptr("loop-1"), alice), 3)

	ids, err := env.Folders.Descendants(ctx, "loop-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"loop-1", "loop-2", x.ID}, ids)
}

func TestFolderTree_List(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := testutil.NewEnv(t)

	parent := mkdir(t, env, "Parent", nil, alice)
	for _, name := range []string{"beta", "Alpha", "gamma"} {
		mkdir(t, env, name, &parent.ID, alice)
		env.Clock.Advance(1)
	}
	mkdir(t, env, "Elsewhere", nil, alice)
	mkdir(t, env, "Bob's", nil, bob)

	tests := []struct {
		name   string
		sort   string
		search string
		want   []string
	}{
		{name: "name ascending ignores case", sort: "name-asc", want: []string{"Alpha", "beta", "gamma"}},
		{name: "name descending", sort: "name-desc", want: []string{"gamma", "beta", "Alpha"}},
		{name: "created ascending", sort: "createdAt-asc", want: []string{"beta", "Alpha", "gamma"}},
		{name: "default is newest first", sort: "", want: []string{"gamma", "Alpha", "beta"}},
		{name: "search is a case-insensitive substring", sort: "name-asc", search: "A", want: []string{"Alpha", "beta", "gamma"}},
		{name: "search narrows", sort: "name-asc", search: "mm", want: []string{"gamma"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := env.Folders.List(ctx, &parent.ID, alice, alice+"@acct", tt.sort, tt.search)
			assert.Equal(t, tt.want, folderNames(got))
		})
	}

	t.Run("size keeps store order", func(t *testing.T) {
		bySize := env.Folders.List(ctx, &parent.ID, alice, alice+"@acct", "size-asc", "")
		unknown := env.Folders.List(ctx, &parent.ID, alice, alice+"@acct", "color-asc", "")
		assert.Equal(t, folderNames(unknown), folderNames(bySize))
		assert.ElementsMatch(t, []string{"Alpha", "beta", "gamma"}, folderNames(bySize))
	})

	t.Run("other account sees nothing", func(t *testing.T) {
		assert.Empty(t, env.Folders.List(ctx, &parent.ID, alice, "other@acct", "", ""))
	})

	t.Run("root", func(t *testing.T) {
		got := env.Folders.List(ctx, nil, alice, alice+"@acct", "name-asc", "")
		assert.Equal(t, []string{"Elsewhere", "Parent"}, folderNames(got))
	})
}

func TestFolderTree_ValidateName(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := testutil.NewEnv(t)

	docs := mkdir(t, env, "Docs", nil, alice)

	tests := []struct {
		name    string
		check   string
		parent  *string
		exclude string
		want    bool
	}{
		{name: "taken ignoring case", check: "docs", want: false},
		{name: "free", check: "Music", want: true},
		{name: "excluded self", check: "DOCS", exclude: docs.ID, want: true},
		{name: "other parent", check: "Docs", parent: &docs.ID, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := env.Folders.ValidateName(ctx, tt.check, tt.parent, alice, tt.exclude)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestFolderTree_UnavailableStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))
	store := database.NewSQLiteStore(filepath.Join(blocker, "vfm.db"), nil, nil)
	require.NoError(t, store.Init(ctx))
	require.False(t, store.Available())

	svc := vfm.NewServices(store, testutil.NewTestBlobStore(), vfm.NewNopLogger(), testutil.FixedClock(), testutil.NewStubIDGenerator(), vfm.Options{})

	_, err := svc.Folders.Create(ctx, "Docs", nil, alice, alice+"@acct")
	require.ErrorIs(t, err, vfm.ErrStorageUnavailable)

	assert.Empty(t, svc.Folders.List(ctx, nil, alice, alice+"@acct", "", ""), "listing degrades to empty")
	assert.Empty(t, svc.Files.List(ctx, alice, vfm.FileFilter{}))
	assert.Empty(t, svc.Sharing.ListSharedWithMe(ctx, alice, aliceEmail))
	assert.Equal(t, []vfm.Breadcrumb{vfm.RootBreadcrumb()}, svc.Folders.Breadcrumbs(ctx, ptr("x"), alice))
	assert.False(t, svc.Sharing.CanAccess(ctx, "f", alice, aliceEmail).CanAccess)
}
