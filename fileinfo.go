package sitegen

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// sniffLen is how much of a file is inspected to guess its content type.
const sniffLen = 512

// inspectFile builds the metadata recorded for an uploaded file. head is the
// beginning of the file, used for content type sniffing and, for images, for
// reading the dimensions without decoding the pixels.
func inspectFile(name string, size int64, head []byte, rest io.Reader) SiteFile {
	f := SiteFile{
		Name:        name,
		Size:        size,
		ContentType: contentTypeOf(name, head),
		UploadedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	if strings.HasPrefix(f.ContentType, "image/") {
		cfg, _, err := image.DecodeConfig(io.MultiReader(bytes.NewReader(head), rest))
		if err == nil {
			f.Width, f.Height = cfg.Width, cfg.Height
		}
	}
	return f
}

// contentTypeOf prefers the extension's registered type and falls back to
// sniffing the content.
func contentTypeOf(name string, head []byte) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); ct != "" {
		return ct
	}
	return http.DetectContentType(head)
}
