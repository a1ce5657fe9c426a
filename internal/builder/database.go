package builder

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tobsdb/tdbadmin/internal/types"
	"github.com/tobsdb/tdbadmin/pkg"
)

// Database is the in-memory schema of one opened store. Operations are not
// synchronized internally: readers hold Locker for reading, anything that
// writes (including row cache refreshes) holds it for writing.
type Database struct {
	Locker sync.RWMutex
	Name   string

	controller Controller
	tables     *pkg.InsertSortMap[string, *Table]
	closed     bool
}

// ColumnDef is a column as requested by a client creating a table.
type ColumnDef struct {
	Name         string `json:"name"`
	TypeName     string `json:"typeName"`
	IsNotNull    bool   `json:"isNotNull"`
	DefaultValue string `json:"defaultValue"`
}

// OpenDatabase introspects the tables the controller reports. The caller
// keeps ownership of the controller when this fails.
func OpenDatabase(name string, controller Controller) (*Database, error) {
	db := &Database{
		Name:       name,
		controller: controller,
		tables:     pkg.NewInsertSortMap[string, *Table](),
	}
	if err := db.init(); err != nil {
		return nil, err
	}
	return db, nil
}

func (db *Database) GetLocker() *sync.RWMutex { return &db.Locker }

func (db *Database) init() error {
	names, err := db.controller.ListTables()
	if err != nil {
		return fmt.Errorf("listing tables: %w", err)
	}

	for _, name := range names {
		infos, err := db.controller.TableInfo(name)
		if err != nil {
			return fmt.Errorf("reading columns of %s: %w", name, err)
		}

		table := NewTable(db.controller, name)
		for _, info := range infos {
			column_type, ok := types.Resolve(info.DeclaredType)
			if !ok {
				pkg.WarnLog(fmt.Sprintf("column %s.%s has unsupported type %q; treating it as %s",
					name, info.Name, info.DeclaredType, types.ColumnTypeText))
				column_type = types.ColumnTypeText
			}

			default_value := ""
			if info.DefaultValue != nil {
				default_value = *info.DefaultValue
			}
			column := NewColumn(info.Name, column_type, info.NotNull, default_value, info.IsPk)
			column.store_default = info.DefaultExpr
			table.AddColumn(column)
		}

		if table.PrimaryKeyIndex() == -1 {
			pkg.WarnLog("table", name, "has no primary key; rows can't be edited or deleted")
		}
		db.tables.Push(name, table)
	}

	pkg.DebugLog("loaded", db.tables.Len(), "tables from", db.Name)
	return nil
}

func (db *Database) Tables() []*Table { return db.tables.Values() }

func (db *Database) Table(name string) (*Table, bool) {
	if !db.tables.Has(name) {
		return nil, false
	}
	return db.tables.Get(name), true
}

// HasTable looks a table up ignoring case.
func (db *Database) HasTable(name string) bool {
	return pkg.Some(db.tables.Sorted, func(k string) bool { return strings.EqualFold(k, name) })
}

// CreateTable validates the requested schema, creates the table in the store
// and registers it. pk_index selects the primary key column; an out of range
// index means no column is the primary key. Nothing is created on failure.
func (db *Database) CreateTable(name string, columns []ColumnDef, pk_index int) (*Table, error) {
	if db.closed {
		return nil, ErrDatabaseClosed
	}
	if err := ValidateIdentifier(name); err != nil {
		return nil, NewFieldError("tableName", err.Error())
	}
	if db.HasTable(name) {
		return nil, NewFieldError("tableName", fmt.Sprintf("Table %s already exists", name))
	}

	table := NewTable(db.controller, name)
	errs := FieldErrors{}
	for i, def := range columns {
		if err := ValidateIdentifier(def.Name); err != nil {
			errs[def.Name] = err.Error()
			continue
		}
		column_type, ok := types.Resolve(def.TypeName)
		if !ok {
			errs[def.Name] = fmt.Sprintf("Unknown type %s", def.TypeName)
			continue
		}
		is_pk := i == pk_index
		// primary keys are never null
		table.AddColumn(NewColumn(def.Name, column_type, def.IsNotNull || is_pk, def.DefaultValue, is_pk))
	}
	if len(errs) > 0 {
		return nil, errs
	}

	if err := table.ValidateColumns(); err != nil {
		return nil, err
	}

	if err := db.controller.CreateTable(table); err != nil {
		return nil, err
	}

	db.tables.Push(name, table)
	pkg.InfoLog("created table", name, "in", db.Name)
	return table, nil
}

// DropTable drops the table from the store, then forgets it.
func (db *Database) DropTable(name string) error {
	if db.closed {
		return ErrDatabaseClosed
	}
	if !db.tables.Has(name) {
		return ErrTableNotFound
	}
	if err := db.controller.DropTable(name); err != nil {
		return err
	}
	db.tables.Delete(name)
	pkg.InfoLog("dropped table", name, "from", db.Name)
	return nil
}

// Close releases the store handle. Calling it again is a no-op.
func (db *Database) Close() error {
	if db.closed {
		return nil
	}
	db.closed = true
	return db.controller.Close()
}
