package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/eringen/sitegen"
)

func TestInitProjectCreatesWorkspace(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "my-site")
	var out bytes.Buffer
	if err := initProject(&out, dir); err != nil {
		t.Fatalf("initProject: %v", err)
	}

	for _, name := range []string{
		"sitegen.yaml",
		filepath.Join("templates", "hello.html"),
		filepath.Join("templates", "hello.json"),
		filepath.Join("public", ".gitkeep"),
	} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s not created: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "sitegen.yaml.tmpl")); err == nil {
		t.Error(".tmpl suffix was not stripped")
	}
	if !strings.Contains(out.String(), "sitegen serve") {
		t.Errorf("missing next steps in output:\n%s", out.String())
	}
}

func TestInitProjectKeepsPlaceholders(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "site")
	if err := initProject(io.Discard, dir); err != nil {
		t.Fatal(err)
	}
	body, err := os.ReadFile(filepath.Join(dir, "templates", "hello.html"))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"{{title}}", "{{message}}", "{{author}}"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("hello.html lost placeholder %s", want)
		}
	}
}

func TestInitProjectConfigLoads(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "my-site")
	if err := initProject(io.Discard, dir); err != nil {
		t.Fatal(err)
	}
	cfg, err := sitegen.LoadConfig(filepath.Join(dir, "sitegen.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Name != "My Site" {
		t.Errorf("Name = %q, want %q", cfg.Name, "My Site")
	}
	if cfg.SiteDir != "site" || cfg.ArchivePath != "site.zip" {
		t.Errorf("unexpected paths: site_dir=%q archive_path=%q", cfg.SiteDir, cfg.ArchivePath)
	}
	if cfg.AdminPassword != "" {
		t.Error("admin password should be unset in the starter config")
	}
}

func TestInitProjectExistingDir(t *testing.T) {
	if err := initProject(io.Discard, t.TempDir()); err == nil {
		t.Fatal("expected error for existing directory")
	}
}

func TestToTitle(t *testing.T) {
	tests := map[string]string{
		"my-site": "My Site",
		"mysite":  "Mysite",
		"a--b":    "A  B",
	}
	for in, want := range tests {
		if got := toTitle(in); got != want {
			t.Errorf("toTitle(%q) = %q, want %q", in, got, want)
		}
	}
}
