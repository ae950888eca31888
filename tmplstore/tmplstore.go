// Package tmplstore reads site templates and their field descriptors from a
// directory laid out as <name>.html (template body) and <name>.json
// (descriptor). Nothing is cached: every call reads the current file.
package tmplstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

const (
	bodyExt       = ".html"
	descriptorExt = ".json"
)

// Store reads templates from a directory.
type Store struct {
	dir string
}

// New returns a Store reading from dir.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the template directory.
func (s *Store) Dir() string {
	return s.dir
}

// Load returns the body of the named template. A missing template, or a name
// that is not a single path element, yields an error wrapping fs.ErrNotExist.
func (s *Store) Load(name string) (string, error) {
	b, err := s.read(name, bodyExt)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Descriptor returns the raw JSON field descriptor of the named template.
func (s *Store) Descriptor(name string) ([]byte, error) {
	return s.read(name, descriptorExt)
}

// List returns the names of all templates that have a body, sorted.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("tmplstore: list: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), bodyExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), bodyExt))
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) read(name, ext string) ([]byte, error) {
	if !validName(name) {
		return nil, fmt.Errorf("tmplstore: template %q: %w", name, fs.ErrNotExist)
	}
	b, err := os.ReadFile(filepath.Join(s.dir, name+ext))
	if err != nil {
		return nil, fmt.Errorf("tmplstore: template %q: %w", name, err)
	}
	return b, nil
}

func validName(name string) bool {
	return name != "" && name != "." && name != ".." &&
		!strings.ContainsAny(name, `/\`+"\x00")
}

// FieldSpec describes one form field of a template.
type FieldSpec struct {
	Name        string `json:"name"`
	Label       string `json:"label"`
	Type        string `json:"type"`
	Placeholder string `json:"placeholder"`
}

// Summary is the parsed form of a descriptor, used by the form page.
type Summary struct {
	Name        string
	Title       string
	Description string // sanitized HTML
	Fields      []FieldSpec
}

// Summary parses the descriptor of the named template. A template without a
// descriptor gets a summary with only its name set. Descriptors that fail to
// parse are reported as errors.
func (s *Store) Summary(name string) (Summary, error) {
	sum := Summary{Name: name, Title: name}
	raw, err := s.Descriptor(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return sum, nil
		}
		return sum, err
	}

	var d struct {
		Title       string      `json:"title"`
		Description string      `json:"description"`
		Fields      []FieldSpec `json:"fields"`
	}
	if err := json.Unmarshal(raw, &d); err != nil {
		return sum, fmt.Errorf("tmplstore: descriptor %q: %w", name, err)
	}
	if t := strings.TrimSpace(d.Title); t != "" {
		sum.Title = t
	}
	sum.Description = sanitizeDescription(d.Description)
	for _, f := range d.Fields {
		if f.Name == "" {
			continue
		}
		if f.Label == "" {
			f.Label = f.Name
		}
		if f.Type == "" {
			f.Type = "text"
		}
		sum.Fields = append(sum.Fields, f)
	}
	return sum, nil
}

var (
	descPolicyOnce sync.Once
	descPolicy     *bluemonday.Policy
)

func sanitizeDescription(raw string) string {
	descPolicyOnce.Do(func() {
		descPolicy = bluemonday.UGCPolicy()
	})
	return strings.TrimSpace(descPolicy.Sanitize(raw))
}
