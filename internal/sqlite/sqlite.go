// Package sqlite picks the SQLite driver at build time: modernc.org/sqlite
// by default, mattn/go-sqlite3 when built with -tags cgo_sqlite.
package sqlite

import "database/sql"

// DriverName is the database/sql driver name registered by the selected driver.
func DriverName() string { return driverName }

// DriverType is "cgo" or "purego".
func DriverType() string { return driverType }

func IsCGO() bool { return driverType == "cgo" }

// Open opens path with the selected driver. Like sql.Open it doesn't touch
// the file until the first query.
func Open(path string) (*sql.DB, error) {
	return sql.Open(driverName, path)
}

type Info struct {
	DriverName string `json:"driverName"`
	DriverType string `json:"driverType"`
	IsCGO      bool   `json:"isCgo"`
	Package    string `json:"package"`
}

func GetInfo() Info {
	return Info{
		DriverName: driverName,
		DriverType: driverType,
		IsCGO:      IsCGO(),
		Package:    driverPackage,
	}
}
