// Package sitedir manages the site output directory whose contents become the
// packaged archive. Every operation runs under one exclusive lock so that a
// render-then-pack sequence never observes a half-applied upload or delete.
package sitedir

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrInvalidName is returned for names that are not a single path element.
	ErrInvalidName = errors.New("sitedir: invalid file name")
	// ErrIsDir is returned by Remove for subdirectories. Only files can be
	// deleted.
	ErrIsDir = errors.New("sitedir: is a directory")
)

// Dir is a managed site directory.
type Dir struct {
	path string
	sem  chan struct{}
}

// Open returns a Dir rooted at path, creating the directory if needed.
func Open(path string) (*Dir, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("sitedir: create %s: %w", path, err)
	}
	return &Dir{path: path, sem: make(chan struct{}, 1)}, nil
}

// Path returns the directory path.
func (d *Dir) Path() string {
	return d.path
}

// Tx gives access to the directory while the lock is held.
type Tx struct {
	d *Dir
}

// Path returns the directory path.
func (tx *Tx) Path() string {
	return tx.d.path
}

// WriteFile atomically replaces the file name with data.
func (tx *Tx) WriteFile(name string, data []byte) error {
	return tx.d.write(name, bytes.NewReader(data))
}

// Exclusive runs fn while holding the directory lock. It waits for the lock
// until ctx is done.
func (d *Dir) Exclusive(ctx context.Context, fn func(tx *Tx) error) error {
	select {
	case d.sem <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("sitedir: wait for lock: %w", ctx.Err())
	}
	defer func() { <-d.sem }()
	return fn(&Tx{d: d})
}

// List returns the names of the immediate children of the directory, sorted.
func (d *Dir) List(ctx context.Context) ([]string, error) {
	var names []string
	err := d.Exclusive(ctx, func(*Tx) error {
		entries, err := os.ReadDir(d.path)
		if err != nil {
			return fmt.Errorf("sitedir: list: %w", err)
		}
		names = make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		return nil
	})
	return names, err
}

// Put stores the contents of r under name, replacing any existing file.
func (d *Dir) Put(ctx context.Context, name string, r io.Reader) error {
	if err := ValidName(name); err != nil {
		return err
	}
	return d.Exclusive(ctx, func(*Tx) error {
		return d.write(name, r)
	})
}

// Remove deletes the file name. It reports an error wrapping fs.ErrNotExist
// when there is no such file and ErrIsDir when name is a directory.
func (d *Dir) Remove(ctx context.Context, name string) error {
	if err := ValidName(name); err != nil {
		return fmt.Errorf("sitedir: remove %q: %w", name, fs.ErrNotExist)
	}
	return d.Exclusive(ctx, func(*Tx) error {
		path := filepath.Join(d.path, name)
		info, err := os.Lstat(path)
		if err != nil {
			return fmt.Errorf("sitedir: remove %q: %w", name, err)
		}
		if info.IsDir() {
			return fmt.Errorf("sitedir: remove %q: %w", name, ErrIsDir)
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("sitedir: remove %q: %w", name, err)
		}
		return nil
	})
}

// Stat returns file info for name.
func (d *Dir) Stat(name string) (fs.FileInfo, error) {
	if err := ValidName(name); err != nil {
		return nil, fmt.Errorf("sitedir: stat %q: %w", name, fs.ErrNotExist)
	}
	return os.Stat(filepath.Join(d.path, name))
}

// FilePath returns the on-disk path of name.
func (d *Dir) FilePath(name string) (string, error) {
	if err := ValidName(name); err != nil {
		return "", err
	}
	return filepath.Join(d.path, name), nil
}

func (d *Dir) write(name string, r io.Reader) (err error) {
	if err := ValidName(name); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(d.path, ".sitegen-*.tmp")
	if err != nil {
		return fmt.Errorf("sitedir: write %q: %w", name, err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()
	if _, err = io.Copy(tmp, r); err != nil {
		return fmt.Errorf("sitedir: write %q: %w", name, err)
	}
	if err = tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("sitedir: write %q: %w", name, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("sitedir: write %q: %w", name, err)
	}
	if err = os.Rename(tmp.Name(), filepath.Join(d.path, name)); err != nil {
		return fmt.Errorf("sitedir: write %q: %w", name, err)
	}
	return nil
}

// ValidName reports whether name can be stored in a site directory: a single,
// non-empty path element that is not "." or "..".
func ValidName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(name, `/\`+"\x00"):
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
