package sitegen

import (
	"database/sql"
	"path/filepath"
	"testing"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "data", "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewStore(t *testing.T) {
	s := setupTestStore(t)
	if s.db == nil {
		t.Fatal("db should not be nil")
	}
}

func TestNewStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	s, err := NewStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SaveBuild(Build{ID: "b1", Template: "hello", CreatedAt: "2024-01-01T00:00:00Z"}); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = NewStore(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()
	if _, err := s.GetBuild("b1"); err != nil {
		t.Errorf("build lost after reopen: %v", err)
	}
}

func TestSaveAndGetBuild(t *testing.T) {
	s := setupTestStore(t)

	b := Build{
		ID:         "0b7c6f1e",
		Template:   "hello",
		Fields:     map[string]string{"title": "Hi", "author": "Ann"},
		Unresolved: []string{"footer"},
		Entries:    2,
		Size:       312,
		SHA256:     "abc123",
		CreatedAt:  "2024-01-15T10:00:00Z",
	}
	if err := s.SaveBuild(b); err != nil {
		t.Fatalf("SaveBuild failed: %v", err)
	}

	got, err := s.GetBuild(b.ID)
	if err != nil {
		t.Fatalf("GetBuild failed: %v", err)
	}
	if got.Template != "hello" {
		t.Errorf("Template = %q, want %q", got.Template, "hello")
	}
	if got.Fields["title"] != "Hi" || got.Fields["author"] != "Ann" {
		t.Errorf("Fields = %v", got.Fields)
	}
	if len(got.Unresolved) != 1 || got.Unresolved[0] != "footer" {
		t.Errorf("Unresolved = %v", got.Unresolved)
	}
	if got.Entries != 2 || got.Size != 312 || got.SHA256 != "abc123" {
		t.Errorf("archive fields = %d/%d/%s", got.Entries, got.Size, got.SHA256)
	}
}

func TestGetBuildNotFound(t *testing.T) {
	s := setupTestStore(t)
	if _, err := s.GetBuild("nonexistent"); err != sql.ErrNoRows {
		t.Errorf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestListBuildsNewestFirst(t *testing.T) {
	s := setupTestStore(t)
	for _, b := range []Build{
		{ID: "a", Template: "t", CreatedAt: "2024-01-01T00:00:00Z"},
		{ID: "c", Template: "t", CreatedAt: "2024-01-03T00:00:00Z"},
		{ID: "b", Template: "t", CreatedAt: "2024-01-02T00:00:00Z"},
	} {
		if err := s.SaveBuild(b); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.ListBuilds(10)
	if err != nil {
		t.Fatalf("ListBuilds failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("ListBuilds count = %d, want 3", len(got))
	}
	if got[0].ID != "c" || got[2].ID != "a" {
		t.Errorf("order = %s,%s,%s", got[0].ID, got[1].ID, got[2].ID)
	}

	got, err = s.ListBuilds(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("limit not applied: %d", len(got))
	}
}

func TestSaveFileUpsert(t *testing.T) {
	s := setupTestStore(t)

	if err := s.SaveFile(SiteFile{Name: "logo.png", Size: 10, ContentType: "image/png", Width: 4, Height: 2, UploadedAt: "2024-01-01T00:00:00Z"}); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveFile(SiteFile{Name: "logo.png", Size: 20, ContentType: "image/png", Width: 8, Height: 4, UploadedAt: "2024-01-02T00:00:00Z"}); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveFile(SiteFile{Name: "about.html", Size: 5, ContentType: "text/html", UploadedAt: "2024-01-02T00:00:00Z"}); err != nil {
		t.Fatal(err)
	}

	files, err := s.ListFiles()
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("ListFiles count = %d, want 2", len(files))
	}
	if files[0].Name != "about.html" || files[1].Name != "logo.png" {
		t.Errorf("order = %s,%s", files[0].Name, files[1].Name)
	}
	if files[1].Size != 20 || files[1].Width != 8 {
		t.Errorf("logo.png not replaced: %+v", files[1])
	}
}

func TestDeleteFile(t *testing.T) {
	s := setupTestStore(t)
	if err := s.SaveFile(SiteFile{Name: "a.txt", ContentType: "text/plain", UploadedAt: "2024-01-01T00:00:00Z"}); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteFile("a.txt"); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteFile("never-existed.txt"); err != nil {
		t.Errorf("deleting unknown file should not fail: %v", err)
	}
	files, _ := s.ListFiles()
	if len(files) != 0 {
		t.Errorf("ListFiles = %v, want empty", files)
	}
}
