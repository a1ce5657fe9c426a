package builder

import (
	"encoding/json"
	"fmt"

	"github.com/tobsdb/tdbadmin/pkg"
)

// Table owns its column definitions and a cache of the rows last read from
// the store. It is not safe for concurrent use; callers hold the owning
// Database's lock.
type Table struct {
	Name string

	columns    []*Column
	rows       []Row
	controller TableController
}

func NewTable(controller TableController, name string) *Table {
	return &Table{Name: name, columns: []*Column{}, rows: []Row{}, controller: controller}
}

func (t *Table) AddColumn(column *Column) {
	t.columns = append(t.columns, column)
}

func (t *Table) Columns() []*Column { return t.columns }

func (t *Table) Column(i int) *Column { return t.columns[i] }

// CachedRows returns the row cache as of the last read or write.
func (t *Table) CachedRows() []Row { return t.rows }

func (t *Table) ColumnIndex(name string) int {
	return pkg.FindIndex(t.columns, func(c *Column) bool { return c.Name() == name })
}

// PrimaryKeyIndex returns the position of the primary key column, or -1.
func (t *Table) PrimaryKeyIndex() int {
	return pkg.FindIndex(t.columns, func(c *Column) bool { return c.IsPk() })
}

func (t *Table) PrimaryKey() *Column {
	i := t.PrimaryKeyIndex()
	if i == -1 {
		return nil
	}
	return t.columns[i]
}

// ValidateColumns checks the schema before the table is created and returns
// the first violation: an empty column name, a duplicate column name, a
// missing (or repeated) primary key, then a default that doesn't parse.
func (t *Table) ValidateColumns() error {
	for _, column := range t.columns {
		if len(column.Name()) == 0 {
			return NewFieldError(FieldErrorGeneral, `Invalid column name: ""`)
		}
	}

	names := make(map[string]struct{}, len(t.columns))
	for _, column := range t.columns {
		if _, exists := names[column.Name()]; exists {
			return NewFieldError(column.Name(), fmt.Sprintf("Column name is not unique: \"%s\"", column.Name()))
		}
		names[column.Name()] = struct{}{}
	}

	pk_count := len(pkg.Filter(t.columns, func(c *Column) bool { return c.IsPk() }))
	if pk_count == 0 {
		return NewFieldError(FieldErrorGeneral, "Table must have a primary key column")
	}
	if pk_count > 1 {
		return NewFieldError(FieldErrorGeneral, "Table can't have multiple primary keys")
	}

	for _, column := range t.columns {
		if err := column.checkDefault(); err != nil {
			return NewFieldError(column.Name(), err.Error())
		}
	}

	return nil
}

func (t *Table) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name    string    `json:"name"`
		Columns []*Column `json:"columns"`
		Rows    []Row     `json:"rows"`
	}{t.Name, t.columns, t.rows})
}
