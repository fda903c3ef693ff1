// Package migrations carries the versioned SQL schema of the metering database.
// The files are embedded so the server and the migrate CLI need no files on disk.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
