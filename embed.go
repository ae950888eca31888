package sitegen

import "embed"

// EmbeddedAssets contains the form page assets shipped with sitegen:
// sitegen.js and sitegen.css.
//
//go:embed embedded/*
var EmbeddedAssets embed.FS
