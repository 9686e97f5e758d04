// Package migrations embeds the history store schema into the binary.
//
// Import it for side effects wherever database.Migrate is called.
package migrations

import (
	"embed"

	"github.com/nerrad567/emerald-hwsd/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "." // Files are at root of embedded FS
}
