package builder_test

import (
	"errors"
	"strings"

	. "github.com/tobsdb/tdbadmin/internal/builder"
	"github.com/tobsdb/tdbadmin/internal/types"
)

var errStoreDown = errors.New("store is down")

type memTable struct {
	info []ColumnInfo
	rows []Row
}

// memStore is an in-memory Controller. Setting fail makes every write fail.
type memStore struct {
	tables map[string]*memTable
	order  []string
	fail   bool
	closed bool
	writes int
}

func newMemStore() *memStore {
	return &memStore{tables: map[string]*memTable{}}
}

func (s *memStore) addTable(name string, info ...ColumnInfo) {
	s.tables[name] = &memTable{info: info}
	s.order = append(s.order, name)
}

func (s *memStore) pkIndex(t *Table) int {
	i := t.PrimaryKeyIndex()
	if i == -1 {
		panic("table without primary key")
	}
	return i
}

func (s *memStore) find(name string, pk_index int, pk *types.Value) int {
	for i, row := range s.tables[name].rows {
		if row[pk_index].Equal(pk) {
			return i
		}
	}
	return -1
}

func (s *memStore) GetAllRows(t *Table) ([]Row, error) {
	table, ok := s.tables[t.Name]
	if !ok {
		return nil, ErrTableNotFound
	}
	rows := make([]Row, len(table.rows))
	for i, r := range table.rows {
		rows[i] = r.Clone()
	}
	return rows, nil
}

func (s *memStore) UpdateCell(t *Table, row, column int) error {
	if s.fail {
		return errStoreDown
	}
	pk_index := s.pkIndex(t)
	cached := t.CachedRows()[row]
	i := s.find(t.Name, pk_index, cached[pk_index])
	if i == -1 {
		return ErrAffectedRows
	}
	s.tables[t.Name].rows[i][column] = cached[column].Clone()
	s.writes++
	return nil
}

func (s *memStore) UpdatePrimaryKey(t *Table, row, column int, new_pk *types.Value) error {
	if s.fail {
		return errStoreDown
	}
	i := s.find(t.Name, column, t.CachedRows()[row][column])
	if i == -1 {
		return ErrAffectedRows
	}
	if s.find(t.Name, column, new_pk) != -1 {
		return errors.New("UNIQUE constraint failed")
	}
	s.tables[t.Name].rows[i][column] = new_pk.Clone()
	s.writes++
	return nil
}

func (s *memStore) InsertRow(t *Table, row Row) error {
	if s.fail {
		return errStoreDown
	}
	stored := make(Row, len(row))
	for i, v := range row {
		if v != nil {
			stored[i] = v.Clone()
			continue
		}
		// stands in for the store evaluating the column's default expression
		column := t.Column(i)
		expr, _ := column.StoreDefault()
		stored[i], _ = column.Type().Instance("computed "+expr, column.IsNullable())
	}

	pk_index := s.pkIndex(t)
	if s.find(t.Name, pk_index, stored[pk_index]) != -1 {
		return errors.New("UNIQUE constraint failed")
	}
	s.tables[t.Name].rows = append(s.tables[t.Name].rows, stored)
	s.writes++
	return nil
}

func (s *memStore) DeleteRow(t *Table, pk *types.Value) error {
	if s.fail {
		return errStoreDown
	}
	pk_index := s.pkIndex(t)
	kept := []Row{}
	for _, row := range s.tables[t.Name].rows {
		if !row[pk_index].Equal(pk) {
			kept = append(kept, row)
		}
	}
	s.tables[t.Name].rows = kept
	s.writes++
	return nil
}

func (s *memStore) ListTables() ([]string, error) { return s.order, nil }

func (s *memStore) TableInfo(name string) ([]ColumnInfo, error) {
	table, ok := s.tables[name]
	if !ok {
		return nil, ErrTableNotFound
	}
	return table.info, nil
}

func (s *memStore) CreateTable(t *Table) error {
	if s.fail {
		return errStoreDown
	}
	info := []ColumnInfo{}
	for _, c := range t.Columns() {
		ci := ColumnInfo{Name: c.Name(), DeclaredType: strings.ToUpper(c.TypeName()), NotNull: c.IsNotNull(), IsPk: c.IsPk()}
		if d, ok := c.DefaultValue(); ok {
			ci.DefaultValue = &d
		}
		info = append(info, ci)
	}
	s.addTable(t.Name, info...)
	return nil
}

func (s *memStore) DropTable(name string) error {
	if s.fail {
		return errStoreDown
	}
	delete(s.tables, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *memStore) Close() error {
	s.closed = true
	return nil
}
