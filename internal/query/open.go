package query

import (
	"fmt"
	"path/filepath"

	"github.com/tobsdb/tdbadmin/internal/builder"
	"github.com/tobsdb/tdbadmin/internal/sqlite"
	"github.com/tobsdb/tdbadmin/pkg"
)

// Open opens (creating it if missing) the SQLite file at path and loads its
// schema. The returned Database owns the handle.
func Open(path string) (*builder.Database, error) {
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, err
	}
	// one connection: the row cache assumes it sees every write
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	database, err := builder.OpenDatabase(filepath.Base(path), NewSqliteController(db))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	pkg.DebugLog("opened", path, "with", sqlite.DriverName())
	return database, nil
}
