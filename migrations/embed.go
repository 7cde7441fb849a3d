// Package migrations embeds the Prysma SQL schema into the binary.
package migrations

import (
	"embed"

	"github.com/prysmalight/prysma-core/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
