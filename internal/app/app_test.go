package app

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vfm-go/internal/config"
	"vfm-go/internal/fs"
	"vfm-go/internal/model"
	"vfm-go/internal/testutil"
	"vfm-go/internal/vfm"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig(t.TempDir())
	cfg.Database = config.DatabaseConfig{Type: "memory"}
	cfg.Blobs = config.BlobsConfig{Type: "memory"}
	cfg.Encryption = config.EncryptionConfig{Type: "test"}
	cfg.Session.TTL = config.Duration{Duration: time.Hour}
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config, clock vfm.Clock) *VFMApp {
	t.Helper()
	a, err := newVFMApp(context.Background(), cfg, "Test", "", io.Discard, clock, testutil.NewStubIDGenerator())
	if err != nil {
		t.Fatalf("newVFMApp() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func login(t *testing.T, a *VFMApp) *model.User {
	t.Helper()
	u, err := a.Login(context.Background(), vfm.Identity{Email: "alice@example.com", Name: "Alice"})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	return u
}

func TestVFMApp_LoginAndLogout(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, testConfig(t), testutil.FixedClock())

	if _, err := a.CurrentUser(ctx); !errors.Is(err, ErrNotLoggedIn) {
		t.Fatalf("CurrentUser() before login error = %v, want ErrNotLoggedIn", err)
	}

	u := login(t, a)
	if u.Provider != model.ProviderCredentials {
		t.Errorf("Provider = %q, want %q", u.Provider, model.ProviderCredentials)
	}

	got, err := a.CurrentUser(ctx)
	if err != nil {
		t.Fatalf("CurrentUser() error = %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("CurrentUser().ID = %q, want %q", got.ID, u.ID)
	}

	if err := a.Logout(ctx); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if _, err := a.CurrentUser(ctx); !errors.Is(err, ErrNotLoggedIn) {
		t.Errorf("CurrentUser() after logout error = %v, want ErrNotLoggedIn", err)
	}
	if err := a.Logout(ctx); err != nil {
		t.Errorf("second Logout() error = %v", err)
	}
}

func TestVFMApp_ExpiredSessionIsCleared(t *testing.T) {
	ctx := context.Background()
	clock := testutil.FixedClock()
	a := newTestApp(t, testConfig(t), clock)
	login(t, a)

	clock.Advance(time.Hour)

	if _, err := a.CurrentUser(ctx); !errors.Is(err, ErrNotLoggedIn) {
		t.Fatalf("CurrentUser() error = %v, want ErrNotLoggedIn", err)
	}
	if _, err := os.Stat(a.sessions.Path); !os.IsNotExist(err) {
		t.Errorf("session file still present: %v", err)
	}
}

func TestVFMApp_ResolvePaths(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, testConfig(t), testutil.FixedClock())
	u := login(t, a)
	svc := a.Services()

	docs, err := svc.Folders.Create(ctx, "Docs", nil, u.ID, u.AccountID)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	sub, err := svc.Folders.Create(ctx, "Sub", &docs.ID, u.ID, u.AccountID)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	up, err := svc.Files.Upload(ctx, vfm.Upload{Name: "a.pdf", Size: 3, Content: strings.NewReader("abc")}, u.ID, u.AccountID, &sub.ID)
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	up.URL.Release()

	folders := []struct {
		arg     string
		want    *string
		wantErr error
	}{
		{arg: "", want: nil},
		{arg: "/", want: nil},
		{arg: "/docs", want: &docs.ID},
		{arg: "/Docs/Sub/", want: &sub.ID},
		{arg: sub.ID, want: &sub.ID},
		{arg: "/Docs/Missing", wantErr: vfm.ErrNotFound},
		{arg: "missing-id", wantErr: vfm.ErrNotFound},
	}
	for _, tt := range folders {
		got, err := a.ResolveFolder(ctx, u, tt.arg)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ResolveFolder(%q) error = %v, want %v", tt.arg, err, tt.wantErr)
			}
			continue
		}
		if err != nil {
			t.Errorf("ResolveFolder(%q) error = %v", tt.arg, err)
			continue
		}
		if !model.SameParent(got, tt.want) {
			t.Errorf("ResolveFolder(%q) = %v, want %v", tt.arg, got, tt.want)
		}
	}

	id, err := a.ResolveFile(ctx, u, "/Docs/Sub/a.pdf")
	if err != nil {
		t.Fatalf("ResolveFile() error = %v", err)
	}
	if id != up.File.ID {
		t.Errorf("ResolveFile() = %q, want %q", id, up.File.ID)
	}
	if _, err := a.ResolveFile(ctx, u, "/Docs/a.pdf"); !errors.Is(err, vfm.ErrNotFound) {
		t.Errorf("ResolveFile() in the wrong folder error = %v, want ErrNotFound", err)
	}

	owned, err := a.OwnedFile(ctx, u, up.File.ID)
	if err != nil || owned.Name != "a.pdf" {
		t.Errorf("OwnedFile() = %v, %v", owned, err)
	}
	stranger := &model.User{ID: "someone-else", AccountID: "x"}
	if _, err := a.OwnedFile(ctx, stranger, up.File.ID); !errors.Is(err, vfm.ErrNotFound) {
		t.Errorf("OwnedFile() by a stranger error = %v, want ErrNotFound", err)
	}
}

func TestVFMApp_EncryptedContentNeedsUnlock(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, testConfig(t), testutil.FixedClock())
	u := login(t, a)
	svc := a.Services()

	if !a.Encrypted() || !a.NeedsUnlock() {
		t.Fatalf("Encrypted() = %v, NeedsUnlock() = %v, want both true", a.Encrypted(), a.NeedsUnlock())
	}

	up, err := svc.Files.Upload(ctx, vfm.Upload{Name: "note.txt", Size: 5, Content: strings.NewReader("hello")}, u.ID, u.AccountID, nil)
	if err != nil {
		t.Fatalf("Upload() while locked error = %v", err)
	}

	if _, _, err := svc.Files.Open(ctx, up.File.ID, u.ID, u.Email); err == nil {
		t.Fatal("Open() while locked succeeded")
	}

	if err := a.Unlock("anything"); err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	if a.NeedsUnlock() {
		t.Error("NeedsUnlock() after Unlock = true")
	}

	_, blob, err := svc.Files.Open(ctx, up.File.ID, u.ID, u.Email)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if string(blob.Data) != "hello" {
		t.Errorf("Open() data = %q, want %q", blob.Data, "hello")
	}

	if err := a.ChangePassphrase("old", "new"); err == nil {
		t.Error("ChangePassphrase() with the test encryptor succeeded")
	}
}

func TestVFMApp_Database(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, testConfig(t), testutil.FixedClock())

	if err := a.CheckSetup(); err != nil {
		t.Fatalf("CheckSetup() error = %v", err)
	}

	st, err := a.DBStatus(ctx)
	if err != nil {
		t.Fatalf("DBStatus() error = %v", err)
	}
	if st.Current != st.Latest || st.Dirty {
		t.Errorf("DBStatus() = %+v, want current at latest", st)
	}

	dest := filepath.Join(t.TempDir(), "backup.db")
	if err := a.BackupDB(ctx, dest); err != nil {
		t.Fatalf("BackupDB() error = %v", err)
	}
	if _, err := os.Stat(dest); err != nil {
		t.Errorf("backup not written: %v", err)
	}
}

func TestVFMApp_UnencryptedAndUnknownConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Encryption.Type = "none"
	a := newTestApp(t, cfg, testutil.FixedClock())
	if a.Encrypted() || a.NeedsUnlock() {
		t.Error("unencrypted app reports encryption")
	}
	if err := a.SetupEncryption("pw"); err == nil {
		t.Error("SetupEncryption() with encryption disabled succeeded")
	}

	bad := testConfig(t)
	bad.Blobs.Type = "tape"
	if _, err := newVFMApp(context.Background(), bad, "Test", "", io.Discard, testutil.FixedClock(), testutil.NewStubIDGenerator()); err == nil {
		t.Error("newVFMApp() with an unknown blob store succeeded")
	}
}

func TestVFMApp_CloseLogsOutcome(t *testing.T) {
	cfg := testConfig(t)
	a, err := newVFMApp(context.Background(), cfg, "FolderMake", "/Docs", io.Discard, testutil.FixedClock(), testutil.NewStubIDGenerator())
	if err != nil {
		t.Fatalf("newVFMApp() error = %v", err)
	}
	a.Fail(errors.New("boom"))
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(cfg.LogDir, "vfm.log"))
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	log := string(data)
	if !strings.Contains(log, "20240115T103000Z\toperation failed") {
		t.Errorf("log missing failure line: %q", log)
	}
	if !strings.Contains(log, "operation=FolderMake\tstatus=error") {
		t.Errorf("log missing outcome: %q", log)
	}
}

func TestVFMApp_UploadDir(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Upload.Ignore = []string{"*.tmp"}
	a := newTestApp(t, cfg, testutil.FixedClock())
	u := login(t, a)

	root := filepath.Join(t.TempDir(), "Photos")
	for rel, content := range map[string]string{
		"a.jpg":          "aa",
		"scratch.tmp":    "x",
		"2024/b.jpg":     "bbb",
		"2024/raw/c.nef": "c",
	} {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	res, err := a.UploadDir(ctx, u, root, nil, true)
	if err != nil {
		t.Fatalf("UploadDir() error = %v", err)
	}
	if res.FoldersCreated != 3 || res.Failed() != 0 || res.Skipped != 1 {
		t.Errorf("UploadDir() = %+v", res)
	}
	var names []string
	for _, o := range res.Outcomes {
		names = append(names, o.Name)
	}
	if got, want := strings.Join(names, ","), "a.jpg,2024/b.jpg,2024/raw/c.nef"; got != want {
		t.Errorf("outcome names = %q, want %q", got, want)
	}

	if _, err := a.ResolveFile(ctx, u, "/photos/2024/raw/c.nef"); err != nil {
		t.Errorf("ResolveFile() error = %v", err)
	}

	// A second run reuses the folders; the files collide with the first copies.
	res, err = a.UploadDir(ctx, u, root, nil, false)
	if err != nil {
		t.Fatalf("second UploadDir() error = %v", err)
	}
	if res.FoldersCreated != 0 || len(res.Outcomes) != 1 || !errors.Is(res.Outcomes[0].Err, vfm.ErrNameConflict) {
		t.Errorf("second UploadDir() = %+v", res)
	}

	if _, err := a.UploadFiles(ctx, u, []string{root}, nil); !errors.Is(err, vfm.ErrInvalidInput) {
		t.Errorf("UploadFiles() with a directory error = %v, want ErrInvalidInput", err)
	}
	outs, err := a.UploadFiles(ctx, u, []string{filepath.Join(root, "scratch.tmp")}, nil)
	if err != nil || len(outs) != 1 || outs[0].Err != nil {
		t.Errorf("UploadFiles() = %+v, %v", outs, err)
	}
}

func TestVFMApp_UploadLocalContinuesPastUnreadableFile(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, testConfig(t), testutil.FixedClock())
	u := login(t, a)

	dir := t.TempDir()
	good := filepath.Join(dir, "good.txt")
	if err := os.WriteFile(good, []byte("ok"), 0o644); err != nil {
		t.Fatal(err)
	}

	outs := a.uploadLocal(ctx, u, []fs.LocalFile{
		{Path: filepath.Join(dir, "gone.txt"), Name: "gone.txt", Size: 1},
		{Path: good, Name: "good.txt", Size: 2},
	}, nil)

	if len(outs) != 2 {
		t.Fatalf("uploadLocal() returned %d outcome(s), want 2", len(outs))
	}
	if !errors.Is(outs[0].Err, os.ErrNotExist) || outs[0].Uploaded != nil {
		t.Errorf("missing file outcome = %+v, want a not-exist error", outs[0])
	}
	if outs[1].Err != nil || outs[1].Uploaded == nil || outs[1].Uploaded.File.Name != "good.txt" {
		t.Errorf("readable file outcome = %+v", outs[1])
	}
}

func TestVFMApp_FileURLRejectsInProcessURLs(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Encryption.Type = "none"
	a := newTestApp(t, cfg, testutil.FixedClock())
	u := login(t, a)

	up, err := a.Services().Files.Upload(ctx, vfm.Upload{Name: "a.txt", Size: 1, Content: strings.NewReader("a")}, u.ID, u.AccountID, nil)
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	up.URL.Release()

	url, err := a.FileURL(ctx, u, "/a.txt")
	if !errors.Is(err, vfm.ErrInvalidInput) {
		t.Fatalf("FileURL() = %q, %v; want ErrInvalidInput", url, err)
	}
	if !strings.Contains(err.Error(), "vfm serve") {
		t.Errorf("FileURL() error = %q, want a pointer to vfm serve", err)
	}
	if n := a.URLs().Outstanding(); n != 0 {
		t.Errorf("Outstanding() = %d after FileURL, want 0", n)
	}

	if _, err := a.FileURL(ctx, u, "/missing.txt"); !errors.Is(err, vfm.ErrNotFound) {
		t.Errorf("FileURL() for a missing file error = %v, want ErrNotFound", err)
	}
}
