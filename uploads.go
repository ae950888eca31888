package sitegen

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/eringen/sitegen/sitedir"
)

func (a *App) handleFileList(c echo.Context) error {
	ctx, cancel := a.operationContext(c)
	defer cancel()

	names, err := a.Site.List(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, names)
}

// handleFileMeta joins the directory listing with the recorded upload
// metadata. Files that were not uploaded through the API (index.html for
// one) get their size from the filesystem.
func (a *App) handleFileMeta(c echo.Context) error {
	ctx, cancel := a.operationContext(c)
	defer cancel()

	names, err := a.Site.List(ctx)
	if err != nil {
		return err
	}
	recorded, err := a.Store.ListFiles()
	if err != nil {
		return err
	}
	byName := make(map[string]SiteFile, len(recorded))
	for _, f := range recorded {
		byName[f.Name] = f
	}

	files := make([]SiteFile, 0, len(names))
	for _, name := range names {
		info, err := a.Site.Stat(name)
		if err != nil {
			// Removed between the listing and the stat.
			continue
		}
		f, ok := byName[name]
		if !ok {
			f = SiteFile{Name: name, ContentType: contentTypeOf(name, nil)}
		}
		if info.IsDir() {
			f.ContentType = "inode/directory"
		}
		f.Size = info.Size()
		files = append(files, f)
	}
	return c.JSON(http.StatusOK, files)
}

type uploadResponse struct {
	Success bool     `json:"success"`
	Files   []string `json:"files"`
}

func (a *App) handleUpload(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return JSONError(c, http.StatusBadRequest, "expected a multipart form")
	}
	headers := form.File["file"]
	if len(headers) == 0 {
		return JSONError(c, http.StatusBadRequest, "no files provided")
	}
	for _, fh := range headers {
		if err := sitedir.ValidName(fh.Filename); err != nil {
			return JSONError(c, http.StatusBadRequest, fmt.Sprintf("invalid file name %q", fh.Filename))
		}
		if fh.Size > a.Config.MaxUploadSize {
			return JSONError(c, http.StatusBadRequest, fmt.Sprintf("%s is too large (max %d bytes)", fh.Filename, a.Config.MaxUploadSize))
		}
	}

	ctx, cancel := a.operationContext(c)
	defer cancel()

	stored := make([]string, 0, len(headers))
	for _, fh := range headers {
		if err := a.storeUpload(ctx, c, fh); err != nil {
			return fmt.Errorf("upload %q: %w", fh.Filename, err)
		}
		stored = append(stored, fh.Filename)
	}
	return c.JSON(http.StatusOK, uploadResponse{Success: true, Files: stored})
}

// storeUpload writes one uploaded file into the site directory and records
// its metadata. A failure to record is logged; the file itself stays.
func (a *App) storeUpload(ctx context.Context, c echo.Context, fh *multipart.FileHeader) error {
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()
	if err := a.Site.Put(ctx, fh.Filename, src); err != nil {
		return err
	}

	if _, err := src.Seek(0, io.SeekStart); err != nil {
		c.Logger().Warnf("inspect %s: %v", fh.Filename, err)
		return nil
	}
	head := make([]byte, sniffLen)
	n, _ := io.ReadFull(src, head)
	meta := inspectFile(fh.Filename, fh.Size, head[:n], src)
	if err := a.Store.SaveFile(meta); err != nil {
		c.Logger().Errorf("record upload %s: %v", fh.Filename, err)
	}
	c.Logger().Infof("uploaded %s (%d bytes, %s)", meta.Name, meta.Size, meta.ContentType)
	return nil
}

func (a *App) handleDelete(c echo.Context) error {
	name := deleteTarget(c)

	ctx, cancel := a.operationContext(c)
	defer cancel()

	if err := a.Site.Remove(ctx, name); err != nil {
		return err
	}
	if err := a.Store.DeleteFile(name); err != nil {
		c.Logger().Errorf("forget upload %s: %v", name, err)
	}
	c.Logger().Infof("deleted %s", name)
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

// deleteTarget returns the file name of a /delete/:file request decoded
// exactly once. Echo hands out the parameter decoded or raw depending on
// whether the request carried a distinct RawPath, so the name is taken from
// the escaped path instead.
func deleteTarget(c echo.Context) string {
	escaped := strings.TrimPrefix(c.Request().URL.EscapedPath(), "/delete/")
	name, err := url.PathUnescape(escaped)
	if err != nil {
		return c.Param("file")
	}
	return name
}
