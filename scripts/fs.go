// Package scripts embeds codemap's Risor extraction scripts so the CLI
// binary runs standalone without a scripts directory on disk.
package scripts

import "embed"

//go:embed extract
var FS embed.FS
