// Package scaffold provides the embedded starter workspace stamped by
// `sitegen init`.
package scaffold

import "embed"

// Templates contains the starter workspace under templates/. Files with a
// .tmpl suffix are Go text/template files; everything else is copied as is,
// since site templates use {{name}} placeholders of their own.
//
//go:embed all:templates
var Templates embed.FS
