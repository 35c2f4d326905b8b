// Package migrations embute os arquivos SQL aplicados pelo goose no startup.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
