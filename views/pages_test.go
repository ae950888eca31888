package views

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestIndexListsTemplates(t *testing.T) {
	var buf bytes.Buffer
	cfg := SiteConfig{Name: "Sites & Co", Selector: "template"}
	opts := []TemplateOption{
		{Name: "hello", Title: "Hello <page>", Description: "A <b>simple</b> page"},
		{Name: "blog", Title: "Blog"},
	}
	if err := Index(cfg, opts, false).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	html := buf.String()
	for _, want := range []string{
		`<h1>Sites &amp; Co</h1>`,
		`<option value="hello">Hello &lt;page&gt;</option>`,
		`<option value="blog">Blog</option>`,
		`<select name="template"`,
		`A <b>simple</b> page`,
		`id="upload-form"`,
	} {
		if !strings.Contains(html, want) {
			t.Errorf("output missing %q", want)
		}
	}
	if strings.Contains(html, `action="/logout"`) {
		t.Error("logout form shown without admin mode")
	}
}

func TestIndexAdminLogin(t *testing.T) {
	var buf bytes.Buffer
	cfg := SiteConfig{Name: "S", Selector: "template", Admin: true}
	if err := Index(cfg, nil, false).Render(context.Background(), &buf); err != nil {
		t.Fatal(err)
	}
	html := buf.String()
	if !strings.Contains(html, `action="/login"`) {
		t.Error("login form missing")
	}
	if strings.Contains(html, `id="upload-form"`) {
		t.Error("upload form shown before login")
	}
	if !strings.Contains(html, "No templates found.") {
		t.Error("empty template message missing")
	}

	buf.Reset()
	if err := Index(cfg, nil, true).Render(context.Background(), &buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `action="/logout"`) {
		t.Error("logout form missing after login")
	}
}

func TestErrorPages(t *testing.T) {
	var buf bytes.Buffer
	if err := NotFound(SiteConfig{Name: "S"}).Render(context.Background(), &buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "<h1>Not found</h1>") {
		t.Errorf("unexpected 404 page: %s", buf.String())
	}
	buf.Reset()
	if err := ServerError(SiteConfig{Name: "S"}).Render(context.Background(), &buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Something went wrong") {
		t.Errorf("unexpected 500 page: %s", buf.String())
	}
}

func TestIndexEscapesAttributes(t *testing.T) {
	var buf bytes.Buffer
	cfg := SiteConfig{Name: "S", Selector: `tpl"x`}
	opts := []TemplateOption{{Name: `a"b`, Title: "T", Description: "d"}}
	if err := Index(cfg, opts, false).Render(context.Background(), &buf); err != nil {
		t.Fatal(err)
	}
	html := buf.String()
	for _, want := range []string{
		`data-selector="tpl&#34;x"`,
		`<option value="a&#34;b">T</option>`,
		`data-template="a&#34;b" hidden>d</div>`,
	} {
		if !strings.Contains(html, want) {
			t.Errorf("output missing %q", want)
		}
	}
}
