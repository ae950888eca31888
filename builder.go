package sitegen

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/eringen/sitegen/packager"
	"github.com/eringen/sitegen/renderer"
	"github.com/eringen/sitegen/sitedir"
	"github.com/eringen/sitegen/tmplstore"
)

// IndexFile is the name the rendered document is written under.
const IndexFile = "index.html"

// ErrUnresolved is returned in strict mode when a template still contains
// placeholders after rendering.
var ErrUnresolved = errors.New("sitegen: unresolved placeholders")

var tracer = otel.Tracer("github.com/eringen/sitegen")

// Builder renders a template into the site directory and packages the
// directory into the archive.
type Builder struct {
	Templates   *tmplstore.Store
	Site        *sitedir.Dir
	Packager    packager.Packager
	ArchivePath string

	// Strict makes unresolved placeholders an error.
	Strict bool
	// Timeout bounds a whole Generate call. Zero means no bound.
	Timeout time.Duration
}

// Result describes a finished generation.
type Result struct {
	ArchiveName string
	Archive     packager.Archive
	Document    string
	Unresolved  []string
}

// Generate loads the named template, renders it with fields, writes the result
// to the site directory as index.html and packs the directory. The write and
// the pack run under the site directory lock, so uploads and deletes cannot
// interleave with them.
//
// When the timeout expires Generate returns an error wrapping
// context.DeadlineExceeded. Work still in flight keeps the lock until it
// finishes and never moves an archive into place after the deadline.
func (b *Builder) Generate(ctx context.Context, name string, fields renderer.Fields) (res Result, err error) {
	ctx, span := tracer.Start(ctx, "sitegen.generate", trace.WithAttributes(
		attribute.String("sitegen.template", name),
		attribute.Int("sitegen.fields", len(fields)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if b.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.Timeout)
		defer cancel()
	}

	type outcome struct {
		res Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := b.generate(ctx, name, fields)
		done <- outcome{res, err}
	}()

	select {
	case o := <-done:
		return o.res, o.err
	case <-ctx.Done():
		return Result{}, fmt.Errorf("sitegen: generate %q: %w", name, ctx.Err())
	}
}

func (b *Builder) generate(ctx context.Context, name string, fields renderer.Fields) (Result, error) {
	body, err := b.Templates.Load(name)
	if err != nil {
		return Result{}, err
	}
	res := Result{
		ArchiveName: filepath.Base(b.ArchivePath),
		Document:    renderer.Render(body, fields),
		Unresolved:  renderer.Unresolved(body, fields),
	}
	if b.Strict && len(res.Unresolved) > 0 {
		return Result{}, fmt.Errorf("%w: %s", ErrUnresolved, strings.Join(res.Unresolved, ", "))
	}

	err = b.Site.Exclusive(ctx, func(tx *sitedir.Tx) error {
		if err := tx.WriteFile(IndexFile, []byte(res.Document)); err != nil {
			return err
		}
		arc, err := b.Packager.Pack(ctx, tx.Path(), b.ArchivePath)
		if err != nil {
			return err
		}
		res.Archive = arc
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("sitegen: generate %q: %w", name, err)
	}
	return res, nil
}
