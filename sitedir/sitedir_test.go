package sitedir

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func openTestDir(t *testing.T) *Dir {
	t.Helper()
	d, err := Open(filepath.Join(t.TempDir(), "site"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return d
}

func TestOpenCreatesDirectory(t *testing.T) {
	d := openTestDir(t)
	info, err := os.Stat(d.Path())
	if err != nil {
		t.Fatal(err)
	}
	if !info.IsDir() {
		t.Fatal("site path is not a directory")
	}
}

func TestPutAndList(t *testing.T) {
	d := openTestDir(t)
	ctx := context.Background()

	for _, name := range []string{"style.css", "index.html", "logo.png"} {
		if err := d.Put(ctx, name, strings.NewReader(name)); err != nil {
			t.Fatalf("Put(%s) failed: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(d.Path(), "assets"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(d.Path(), "assets", "nested.js"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := d.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	want := []string{"assets", "index.html", "logo.png", "style.css"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("List mismatch (-want +got):\n%s", diff)
	}
}

func TestListEmpty(t *testing.T) {
	d := openTestDir(t)
	got, err := d.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("List = %v, want empty", got)
	}
}

func TestPutOverwrites(t *testing.T) {
	d := openTestDir(t)
	ctx := context.Background()

	if err := d.Put(ctx, "page.html", strings.NewReader("old")); err != nil {
		t.Fatal(err)
	}
	if err := d.Put(ctx, "page.html", strings.NewReader("new")); err != nil {
		t.Fatal(err)
	}

	got, err := d.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"page.html"}, got); diff != "" {
		t.Errorf("List mismatch (-want +got):\n%s", diff)
	}
	b, err := os.ReadFile(filepath.Join(d.Path(), "page.html"))
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "new" {
		t.Errorf("content = %q, want %q", b, "new")
	}
}

func TestPutInvalidName(t *testing.T) {
	d := openTestDir(t)
	for _, name := range []string{"", ".", "..", "../escape.txt", "a/b.txt", `a\b.txt`, "nul\x00.txt"} {
		err := d.Put(context.Background(), name, strings.NewReader("x"))
		if !errors.Is(err, ErrInvalidName) {
			t.Errorf("Put(%q) error = %v, want ErrInvalidName", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(d.Path()), "escape.txt")); err == nil {
		t.Error("file written outside the site directory")
	}
}

func TestRemove(t *testing.T) {
	d := openTestDir(t)
	ctx := context.Background()
	if err := d.Put(ctx, "a.txt", strings.NewReader("a")); err != nil {
		t.Fatal(err)
	}
	if err := d.Remove(ctx, "a.txt"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	got, _ := d.List(ctx)
	if len(got) != 0 {
		t.Errorf("List after remove = %v", got)
	}
}

func TestRemoveNotFound(t *testing.T) {
	d := openTestDir(t)
	ctx := context.Background()
	if err := d.Put(ctx, "keep.txt", strings.NewReader("k")); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"missing.txt", "../keep.txt"} {
		if err := d.Remove(ctx, name); !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("Remove(%q) error = %v, want fs.ErrNotExist", name, err)
		}
	}
	got, _ := d.List(ctx)
	if diff := cmp.Diff([]string{"keep.txt"}, got); diff != "" {
		t.Errorf("directory changed (-want +got):\n%s", diff)
	}
}

func TestRemoveDirectory(t *testing.T) {
	d := openTestDir(t)
	ctx := context.Background()
	for _, dir := range []string{"empty", "assets"} {
		if err := os.Mkdir(filepath.Join(d.Path(), dir), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(d.Path(), "assets", "a.css"), []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"empty", "assets"} {
		if err := d.Remove(ctx, name); !errors.Is(err, ErrIsDir) {
			t.Errorf("Remove(%q) error = %v, want ErrIsDir", name, err)
		}
	}
	got, _ := d.List(ctx)
	if diff := cmp.Diff([]string{"assets", "empty"}, got); diff != "" {
		t.Errorf("directory changed (-want +got):\n%s", diff)
	}
}

func TestExclusiveSerializes(t *testing.T) {
	d := openTestDir(t)
	ctx := context.Background()

	var (
		mu      sync.Mutex
		active  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = d.Exclusive(ctx, func(*Tx) error {
				mu.Lock()
				active++
				if active > maxSeen {
					maxSeen = active
				}
				mu.Unlock()
				time.Sleep(5 * time.Millisecond)
				mu.Lock()
				active--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	if maxSeen != 1 {
		t.Errorf("max concurrent holders = %d, want 1", maxSeen)
	}
}

func TestExclusiveHonorsContext(t *testing.T) {
	d := openTestDir(t)
	release := make(chan struct{})
	held := make(chan struct{})
	go func() {
		_ = d.Exclusive(context.Background(), func(*Tx) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := d.Put(ctx, "late.txt", strings.NewReader("x"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
}

func TestTxWriteFile(t *testing.T) {
	d := openTestDir(t)
	err := d.Exclusive(context.Background(), func(tx *Tx) error {
		return tx.WriteFile("index.html", []byte("<h1>Hi</h1>"))
	})
	if err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(filepath.Join(d.Path(), "index.html"))
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "<h1>Hi</h1>" {
		t.Errorf("content = %q", b)
	}
	entries, _ := os.ReadDir(d.Path())
	if len(entries) != 1 {
		t.Errorf("expected only index.html, found %d entries", len(entries))
	}
}
