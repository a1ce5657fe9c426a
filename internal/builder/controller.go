package builder

import "github.com/tobsdb/tdbadmin/internal/types"

// TableController persists row operations for a Table. Implementations use
// bound parameters for values and must run table and column names through
// ValidateIdentifier before putting them in command text.
type TableController interface {
	// GetAllRows selects every row, cells in schema order, each built through
	// its column type with the column's nullability.
	GetAllRows(t *Table) ([]Row, error)
	// UpdateCell writes the cached value of a non-key cell, addressing the row
	// by its cached primary key. Exactly one row must change.
	UpdateCell(t *Table, row, column int) error
	// UpdatePrimaryKey replaces the cached (old) key of a row with new_pk.
	UpdatePrimaryKey(t *Table, row, column int, new_pk *types.Value) error
	// InsertRow inserts row. nil cells are left out of the insert so the store
	// computes their default.
	InsertRow(t *Table, row Row) error
	DeleteRow(t *Table, pk *types.Value) error
}

// ColumnInfo is the store's own description of a column.
type ColumnInfo struct {
	Name         string
	DeclaredType string
	NotNull      bool
	// nil when the column has no literal default
	DefaultValue *string
	// default expression the store evaluates itself, like CURRENT_TIMESTAMP
	DefaultExpr *string
	IsPk         bool
}

// SchemaController introspects and changes the set of tables in a store.
type SchemaController interface {
	ListTables() ([]string, error)
	TableInfo(table_name string) ([]ColumnInfo, error)
	CreateTable(t *Table) error
	DropTable(table_name string) error
	Close() error
}

// Controller is what a store adapter provides.
type Controller interface {
	TableController
	SchemaController
}
