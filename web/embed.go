// Package web embeds the chat page for single-binary distribution.
package web

import "embed"

// Assets contains the static chat page served at /.
//
//go:embed all:static
var Assets embed.FS
