package sitegen

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/zip"

	"github.com/eringen/sitegen/renderer"
	"github.com/eringen/sitegen/sitedir"
	"github.com/eringen/sitegen/tmplstore"
)

func newTestBuilder(t *testing.T, templates map[string]string) *Builder {
	t.Helper()
	root := t.TempDir()
	tdir := filepath.Join(root, "templates")
	if err := os.MkdirAll(tdir, 0o755); err != nil {
		t.Fatal(err)
	}
	for name, body := range templates {
		if err := os.WriteFile(filepath.Join(tdir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	site, err := sitedir.Open(filepath.Join(root, "site"))
	if err != nil {
		t.Fatal(err)
	}
	return &Builder{
		Templates:   tmplstore.New(tdir),
		Site:        site,
		ArchivePath: filepath.Join(root, "site.zip"),
		Timeout:     5 * time.Second,
	}
}

func readArchive(t *testing.T, path string) map[string]string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer zr.Close()
	out := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		b, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatal(err)
		}
		out[f.Name] = string(b)
	}
	return out
}

func TestGenerateEndToEnd(t *testing.T) {
	b := newTestBuilder(t, map[string]string{"hello.html": "<h1>{{title}}</h1>"})

	res, err := b.Generate(context.Background(), "hello", renderer.Fields{{Name: "title", Value: "Hi"}})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if res.Document != "<h1>Hi</h1>" {
		t.Errorf("Document = %q", res.Document)
	}
	if res.ArchiveName != "site.zip" {
		t.Errorf("ArchiveName = %q", res.ArchiveName)
	}
	if diff := cmp.Diff([]string{"index.html"}, res.Archive.Entries); diff != "" {
		t.Errorf("Entries mismatch (-want +got):\n%s", diff)
	}

	got := readArchive(t, b.ArchivePath)
	if diff := cmp.Diff(map[string]string{"index.html": "<h1>Hi</h1>"}, got); diff != "" {
		t.Errorf("archive mismatch (-want +got):\n%s", diff)
	}
	onDisk, err := os.ReadFile(filepath.Join(b.Site.Path(), IndexFile))
	if err != nil {
		t.Fatal(err)
	}
	if string(onDisk) != "<h1>Hi</h1>" {
		t.Errorf("site/index.html = %q", onDisk)
	}
}

func TestGenerateIncludesManagedFiles(t *testing.T) {
	b := newTestBuilder(t, map[string]string{"hello.html": "{{title}}"})
	if err := b.Site.Put(context.Background(), "style.css", strings.NewReader("h1{}")); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Generate(context.Background(), "hello", renderer.Fields{{Name: "title", Value: "x"}}); err != nil {
		t.Fatal(err)
	}
	got := readArchive(t, b.ArchivePath)
	want := map[string]string{"index.html": "x", "style.css": "h1{}"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("archive mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerateRecreatesArchive(t *testing.T) {
	b := newTestBuilder(t, map[string]string{"hello.html": "{{title}}"})
	ctx := context.Background()
	for _, title := range []string{"first", "second"} {
		if _, err := b.Generate(ctx, "hello", renderer.Fields{{Name: "title", Value: title}}); err != nil {
			t.Fatal(err)
		}
	}
	if got := readArchive(t, b.ArchivePath)["index.html"]; got != "second" {
		t.Errorf("index.html = %q, want second", got)
	}
}

func TestGenerateMissingTemplate(t *testing.T) {
	b := newTestBuilder(t, nil)
	_, err := b.Generate(context.Background(), "nope", nil)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected fs.ErrNotExist, got %v", err)
	}
	if _, err := os.Stat(b.ArchivePath); !errors.Is(err, fs.ErrNotExist) {
		t.Error("archive should not be created for a missing template")
	}
}

func TestGenerateUnresolved(t *testing.T) {
	b := newTestBuilder(t, map[string]string{"page.html": "{{title}} {{footer}}"})

	res, err := b.Generate(context.Background(), "page", renderer.Fields{{Name: "title", Value: "T"}})
	if err != nil {
		t.Fatal(err)
	}
	if res.Document != "T {{footer}}" {
		t.Errorf("Document = %q", res.Document)
	}
	if diff := cmp.Diff([]string{"footer"}, res.Unresolved); diff != "" {
		t.Errorf("Unresolved mismatch (-want +got):\n%s", diff)
	}

	b.Strict = true
	if _, err := b.Generate(context.Background(), "page", renderer.Fields{{Name: "title", Value: "T2"}}); !errors.Is(err, ErrUnresolved) {
		t.Fatalf("expected ErrUnresolved, got %v", err)
	}
	if got := readArchive(t, b.ArchivePath)["index.html"]; got != "T {{footer}}" {
		t.Errorf("strict failure changed the archive: %q", got)
	}
}

func TestGenerateTimesOutWaitingForLock(t *testing.T) {
	b := newTestBuilder(t, map[string]string{"hello.html": "{{title}}"})
	b.Timeout = 30 * time.Millisecond

	release := make(chan struct{})
	held := make(chan struct{})
	go func() {
		_ = b.Site.Exclusive(context.Background(), func(*sitedir.Tx) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	_, err := b.Generate(context.Background(), "hello", renderer.Fields{{Name: "title", Value: "x"}})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
	if _, err := os.Stat(b.ArchivePath); !errors.Is(err, fs.ErrNotExist) {
		t.Error("archive should not exist after a timed out generation")
	}
}
