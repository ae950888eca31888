package sitegen

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/eringen/sitegen/renderer"
	"github.com/eringen/sitegen/sitedir"
	"github.com/eringen/sitegen/views"
)

func (a *App) viewConfig() views.SiteConfig {
	return views.SiteConfig{
		Name:     a.Config.Name,
		Selector: a.Config.Selector,
		Admin:    a.adminEnabled(),
	}
}

func (a *App) handleIndex(c echo.Context) error {
	names, err := a.Templates.List()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	opts := make([]views.TemplateOption, 0, len(names))
	for _, name := range names {
		sum, err := a.Templates.Summary(name)
		if err != nil {
			c.Logger().Warnf("template %s: %v", name, err)
		}
		opts = append(opts, views.TemplateOption{
			Name:        name,
			Title:       sum.Title,
			Description: sum.Description,
		})
	}
	return Render(c, views.Index(a.viewConfig(), opts, IsAdmin(c)))
}

// generateResponse is the body of a successful POST /generate.
type generateResponse struct {
	ArchiveName string   `json:"archiveName"`
	BuildID     string   `json:"buildId"`
	Entries     []string `json:"entries"`
	Size        int64    `json:"size"`
	SHA256      string   `json:"sha256"`
	Unresolved  []string `json:"unresolved"`
}

func (a *App) handleGenerate(c echo.Context) error {
	if !a.generateLimiter.Allow(c.RealIP()) {
		return JSONError(c, http.StatusTooManyRequests, "Too many requests. Try again later.")
	}

	name, fields, err := a.generateInput(c)
	if err != nil {
		return err
	}

	res, err := a.Builder.Generate(c.Request().Context(), name, fields)
	if err != nil {
		return err
	}
	c.Logger().Infof("archive %s created: %d entries, %d bytes", res.ArchiveName, len(res.Archive.Entries), res.Archive.Size)

	build := Build{
		ID:         uuid.NewString(),
		Template:   name,
		Fields:     fields.Map(),
		Unresolved: res.Unresolved,
		Entries:    len(res.Archive.Entries),
		Size:       res.Archive.Size,
		SHA256:     res.Archive.SHA256,
		CreatedAt:  time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := a.Store.SaveBuild(build); err != nil {
		c.Logger().Errorf("record build %s: %v", build.ID, err)
	} else {
		a.History.Invalidate()
	}

	unresolved := res.Unresolved
	if unresolved == nil {
		unresolved = []string{}
	}
	entries := res.Archive.Entries
	if entries == nil {
		entries = []string{}
	}
	return c.JSON(http.StatusOK, generateResponse{
		ArchiveName: res.ArchiveName,
		BuildID:     build.ID,
		Entries:     entries,
		Size:        res.Archive.Size,
		SHA256:      res.Archive.SHA256,
		Unresolved:  unresolved,
	})
}

// generateInput reads the template selector and fields from a form or JSON
// body.
func (a *App) generateInput(c echo.Context) (string, renderer.Fields, error) {
	selector := a.Config.Selector
	ctype := c.Request().Header.Get(echo.HeaderContentType)

	if strings.HasPrefix(ctype, echo.MIMEApplicationJSON) {
		var body map[string]string
		if err := c.Bind(&body); err != nil {
			return "", nil, echo.NewHTTPError(http.StatusBadRequest, "body must be a JSON object of strings")
		}
		name := strings.TrimSpace(body[selector])
		if name == "" {
			return "", nil, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("%s is required", selector))
		}
		return name, renderer.FieldsFromMap(body, selector), nil
	}

	values, err := c.FormParams()
	if err != nil {
		return "", nil, echo.NewHTTPError(http.StatusBadRequest, "invalid form body")
	}
	name := strings.TrimSpace(values.Get(selector))
	if name == "" {
		return "", nil, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("%s is required", selector))
	}
	return name, renderer.FieldsFromValues(values, selector), nil
}

func (a *App) handleDownloadIndex(c echo.Context) error {
	path := filepath.Join(a.Site.Path(), IndexFile)
	if _, err := a.Site.Stat(IndexFile); err != nil {
		return err
	}
	return c.Attachment(path, IndexFile)
}

func (a *App) handleDownloadArchive(c echo.Context) error {
	if _, err := os.Stat(a.Config.ArchivePath); err != nil {
		return err
	}
	return c.Attachment(a.Config.ArchivePath, filepath.Base(a.Config.ArchivePath))
}

func (a *App) handleTemplateList(c echo.Context) error {
	names, err := a.Templates.List()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if names == nil {
		names = []string{}
	}
	return c.JSON(http.StatusOK, names)
}

func (a *App) handleTemplateDescriptor(c echo.Context) error {
	data, err := a.Templates.Descriptor(c.Param("template"))
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, data)
}

func (a *App) handleBuilds(c echo.Context) error {
	builds, err := a.History.Recent()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, builds)
}

func (a *App) handleBuild(c echo.Context) error {
	b, err := a.Store.GetBuild(c.Param("id"))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return JSONError(c, http.StatusNotFound, "build not found")
		}
		return err
	}
	return c.JSON(http.StatusOK, b)
}

// operationContext bounds a site directory operation by OperationTimeout.
func (a *App) operationContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), a.Config.OperationTimeout)
}

// statusFor maps an error to an HTTP status and a client-safe message.
func statusFor(err error) (int, string) {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		return he.Code, fmt.Sprint(he.Message)
	case errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound, "not found"
	case errors.Is(err, sitedir.ErrInvalidName):
		return http.StatusBadRequest, "invalid file name"
	case errors.Is(err, sitedir.ErrIsDir):
		return http.StatusConflict, "directories cannot be deleted"
	case errors.Is(err, ErrUnresolved):
		return http.StatusUnprocessableEntity, strings.TrimPrefix(err.Error(), "sitegen: ")
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code, msg := statusFor(err)
	if code >= 500 {
		c.Logger().Errorf("server error: %v", err)
	}

	req := c.Request()
	if req.Method == http.MethodGet && strings.Contains(req.Header.Get(echo.HeaderAccept), echo.MIMETextHTML) {
		switch {
		case code == http.StatusNotFound:
			_ = RenderStatus(c, code, views.NotFound(a.viewConfig()))
			return
		case code >= 500:
			_ = RenderStatus(c, code, views.ServerError(a.viewConfig()))
			return
		}
	}
	_ = JSONError(c, code, msg)
}
