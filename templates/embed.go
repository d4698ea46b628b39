// Package templates embeds default configuration and starter documents.
package templates

import "embed"

//go:embed stride.yaml progression.md
var FS embed.FS
