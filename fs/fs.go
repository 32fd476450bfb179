// Package appfs embeds the SQL migrations and the email templates.
package appfs

import "embed"

//go:embed migrations all:templates
var FS embed.FS
