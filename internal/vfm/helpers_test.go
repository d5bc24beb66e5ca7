package vfm_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vfm-go/internal/model"
	"vfm-go/internal/testutil"
	"vfm-go/internal/vfm"
)

const (
	alice      = "user-alice"
	aliceEmail = "alice@example.com"
	bob        = "user-bob"
	bobEmail   = "bob@example.com"
	carol      = "user-carol"
	carolEmail = "carol@example.com"
)

func ptr(s string) *string { return &s }

// register signs a user in so shares and owner lookups can find them.
func register(t *testing.T, env *testutil.Env, id, email, name string) *model.User {
	t.Helper()
	u, err := env.Accounts.SyncOnLogin(context.Background(), vfm.Identity{
		UserID:   id,
		Email:    email,
		Name:     name,
		Provider: model.ProviderCredentials,
	})
	require.NoError(t, err)
	return u
}

func mkdir(t *testing.T, env *testutil.Env, name string, parent *string, owner string) *model.Folder {
	t.Helper()
	f, err := env.Folders.Create(context.Background(), name, parent, owner, owner+"@acct")
	require.NoError(t, err)
	return f
}

// put uploads content as name and advances the clock so later uploads
// sort as newer.
func put(t *testing.T, env *testutil.Env, name, content string, parent *string, owner string) *model.File {
	t.Helper()
	up, err := env.Files.Upload(context.Background(), vfm.Upload{
		Name:     name,
		MimeType: "application/octet-stream",
		Size:     int64(len(content)),
		Content:  strings.NewReader(content),
	}, owner, owner+"@acct", parent)
	require.NoError(t, err)
	up.URL.Release()
	env.Clock.Advance(time.Minute)
	return up.File
}

func sized(name string, size int) vfm.Upload {
	return vfm.Upload{
		Name:     name,
		MimeType: "application/octet-stream",
		Size:     int64(size),
		Content:  bytes.NewReader(make([]byte, size)),
	}
}

func folderNames(folders []*model.Folder) []string {
	out := make([]string, len(folders))
	for i, f := range folders {
		out[i] = f.Name
	}
	return out
}

func fileNames(files []*model.File) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Name
	}
	return out
}
