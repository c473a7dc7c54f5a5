package storage

import (
	"embed"
	"io/fs"
	"path"
	"strings"

	"github.com/md-rashed-zaman/apptdesk/libs/db"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrations returns the embedded schema steps, versioned by file name.
func Migrations() ([]db.Migration, error) {
	entries, err := fs.ReadDir(migrationFiles, "migrations")
	if err != nil {
		return nil, err
	}
	out := make([]db.Migration, 0, len(entries))
	for _, e := range entries {
		raw, err := migrationFiles.ReadFile(path.Join("migrations", e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, db.Migration{
			Version: strings.TrimSuffix(e.Name(), ".sql"),
			SQL:     string(raw),
		})
	}
	return out, nil
}
