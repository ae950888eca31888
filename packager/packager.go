// Package packager archives a directory tree into a single zip file.
//
// Archives are deterministic: entries are written in lexical path order with a
// fixed timestamp and normalized permissions, and file data is deflated at the
// highest compression level. Packing the same tree twice yields byte-identical
// output.
package packager

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Epoch is the modification time stamped on every entry (the zip format's
// earliest representable date).
var Epoch = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

const (
	fileMode fs.FileMode = 0o644
	dirMode  fs.FileMode = 0o755
)

// ErrIrregular is returned for entries that are neither regular files nor
// directories, such as symlinks or devices.
var ErrIrregular = errors.New("packager: irregular file")

// Archive describes a finished archive.
type Archive struct {
	Path    string   // destination path
	Entries []string // entry names in archive order; directories end in '/'
	Size    int64    // bytes written
	SHA256  string   // hex digest of the archive bytes
}

// Packager writes archives. The zero value uses flate.BestCompression.
type Packager struct {
	// Level is the flate compression level. Zero means flate.BestCompression.
	Level int
}

// Pack archives src into a zip at dest using the default Packager.
func Pack(ctx context.Context, src, dest string) (Archive, error) {
	var p Packager
	return p.Pack(ctx, src, dest)
}

// Pack archives every entry below src into a zip file at dest. Entry names are
// relative to src with no wrapping directory.
//
// The archive is written to a temporary file next to dest and renamed into
// place only after it has been flushed, synced and closed without error. On
// any failure the temporary file is removed and an existing dest is left
// untouched.
func (p Packager) Pack(ctx context.Context, src, dest string) (arc Archive, err error) {
	ctx, span := otel.Tracer("github.com/eringen/sitegen/packager").Start(ctx, "sitegen.pack")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(
				attribute.Int("sitegen.archive.entries", len(arc.Entries)),
				attribute.Int64("sitegen.archive.size", arc.Size),
			)
		}
		span.End()
	}()

	info, err := os.Stat(src)
	if err != nil {
		return Archive{}, fmt.Errorf("packager: read source: %w", err)
	}
	if !info.IsDir() {
		return Archive{}, fmt.Errorf("packager: source %s is not a directory", src)
	}

	destAbs, err := filepath.Abs(dest)
	if err != nil {
		return Archive{}, fmt.Errorf("packager: resolve destination: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(destAbs), "."+filepath.Base(destAbs)+".*.tmp")
	if err != nil {
		return Archive{}, fmt.Errorf("packager: create temp archive: %w", err)
	}
	tmpPath := tmp.Name()
	closed := false
	defer func() {
		if err != nil {
			if !closed {
				tmp.Close()
			}
			os.Remove(tmpPath)
		}
	}()

	cw := &countingWriter{w: tmp, h: sha256.New()}
	entries, err := p.write(ctx, cw, src, map[string]bool{destAbs: true, tmpPath: true})
	if err != nil {
		return Archive{}, err
	}

	if err := tmp.Sync(); err != nil {
		return Archive{}, fmt.Errorf("packager: sync archive: %w", err)
	}
	closed = true
	if err := tmp.Close(); err != nil {
		return Archive{}, fmt.Errorf("packager: close archive: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Archive{}, fmt.Errorf("packager: %w", err)
	}
	if err := os.Rename(tmpPath, destAbs); err != nil {
		return Archive{}, fmt.Errorf("packager: move archive into place: %w", err)
	}

	return Archive{
		Path:    dest,
		Entries: entries,
		Size:    cw.n,
		SHA256:  hex.EncodeToString(cw.h.Sum(nil)),
	}, nil
}

// write streams the zip container for src into w. Paths listed in skip are not
// archived.
func (p Packager) write(ctx context.Context, w io.Writer, src string, skip map[string]bool) ([]string, error) {
	level := p.Level
	if level == 0 {
		level = flate.BestCompression
	}

	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, level)
	})

	var entries []string
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == src {
			return nil
		}
		if abs, err := filepath.Abs(path); err == nil && skip[abs] {
			return nil
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)

		switch {
		case d.IsDir():
			name += "/"
			hdr := &zip.FileHeader{Name: name, Method: zip.Store, Modified: Epoch}
			hdr.SetMode(dirMode | fs.ModeDir)
			if _, err := zw.CreateHeader(hdr); err != nil {
				return err
			}
		case d.Type().IsRegular():
			if err := addFile(ctx, zw, path, name); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: %s", ErrIrregular, name)
		}
		entries = append(entries, name)
		return nil
	})
	if err != nil {
		zw.Close()
		return nil, fmt.Errorf("packager: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("packager: finalize archive: %w", err)
	}
	return entries, nil
}

func addFile(ctx context.Context, zw *zip.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	hdr := &zip.FileHeader{Name: name, Method: zip.Deflate, Modified: Epoch}
	hdr.SetMode(fileMode)
	dst, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, &ctxReader{ctx: ctx, r: f}); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

type countingWriter struct {
	w io.Writer
	h hash.Hash
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	c.h.Write(p[:n])
	return n, err
}

// ctxReader fails reads once its context is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
