// Package migrations embeds the schema migrations so cmd/migrate works
// without the source tree.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
