package builder

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tobsdb/tdbadmin/internal/types"
	"github.com/tobsdb/tdbadmin/pkg"
)

// Row holds one value per column, in schema order.
type Row []*types.Value

func (r Row) Clone() Row {
	c := make(Row, len(r))
	for i, v := range r {
		c[i] = v.Clone()
	}
	return c
}

// checkRow makes sure row fits the schema of t.
func (t *Table) checkRow(row Row) error {
	if len(row) != len(t.columns) {
		return fmt.Errorf("Row has %d values, table %s has %d columns", len(row), t.Name, len(t.columns))
	}
	for i, v := range row {
		if v == nil && t.columns[i].store_default != nil {
			continue
		}
		if v == nil || v.Type() != t.columns[i].Type() {
			return NewFieldError(t.columns[i].Name(), wrongValueMessage)
		}
	}
	return nil
}

// GetAllRows reloads the row cache from the store and returns the rows with
// at least one cell whose display string matches search. search is used as a
// regular expression when it compiles, otherwise as a case-insensitive
// substring. An empty search returns every row.
func (t *Table) GetAllRows(search string) ([]Row, error) {
	rows, err := t.controller.GetAllRows(t)
	if err != nil {
		return nil, err
	}
	t.rows = rows

	if len(search) == 0 {
		return rows, nil
	}

	match := searchFunc(search)
	return pkg.Filter(rows, func(row Row) bool {
		return pkg.Some(row, func(v *types.Value) bool { return match(v.StringValue()) })
	}), nil
}

func searchFunc(search string) func(string) bool {
	if r, err := regexp.Compile(search); err == nil {
		return r.MatchString
	}

	needle := strings.ToLower(strings.TrimSpace(search))
	return func(value string) bool {
		return strings.Contains(strings.ToLower(strings.TrimSpace(value)), needle)
	}
}

// FindRow returns the cache index of the row whose primary key equals pk, or -1.
func (t *Table) FindRow(pk *types.Value) int {
	pk_index := t.PrimaryKeyIndex()
	if pk_index == -1 {
		return -1
	}
	return pkg.FindIndex(t.rows, func(r Row) bool { return r[pk_index].Equal(pk) })
}

// ChangeCell parses value into the cached cell at (row, column) and persists
// it. ok is false when value doesn't parse; err reports store failures, after
// which the cached cell holds its previous value. With only_check set, value
// is validated and nothing changes.
func (t *Table) ChangeCell(row, column int, value string, only_check bool) (ok bool, err error) {
	if row < 0 || row >= len(t.rows) {
		return false, ErrRowNotFound
	}
	if column < 0 || column >= len(t.columns) {
		return false, fmt.Errorf("Column %d out of range for table %s", column, t.Name)
	}

	cell := t.rows[row][column]

	if t.columns[column].IsPk() {
		// primary keys are never null
		new_pk := t.columns[column].Type().Empty(false)
		if !new_pk.ParseString(value) {
			return false, nil
		}
		if only_check {
			return true, nil
		}
		if err := t.controller.UpdatePrimaryKey(t, row, column, new_pk); err != nil {
			return false, err
		}
		cell.SetFromObject(new_pk.Native())
		return true, nil
	}

	next := cell.Clone()
	if !next.ParseString(value) {
		return false, nil
	}
	if only_check {
		return true, nil
	}

	previous := *cell
	*cell = *next
	if err := t.controller.UpdateCell(t, row, column); err != nil {
		*cell = previous
		return false, err
	}
	return true, nil
}

// AddRow inserts row and appends it to the cache once the store accepted it.
// A nil cell is computed by the store, so the cache is reloaded to pick it up.
func (t *Table) AddRow(row Row) error {
	if err := t.checkRow(row); err != nil {
		return err
	}
	if err := t.controller.InsertRow(t, row); err != nil {
		return err
	}

	if pkg.Some(row, func(v *types.Value) bool { return v == nil }) {
		if _, err := t.GetAllRows(""); err != nil {
			return fmt.Errorf("reloading %s: %w", t.Name, err)
		}
		return nil
	}
	t.rows = append(t.rows, row)
	return nil
}

// DeleteRow deletes the row keyed by pk_raw and drops every cached row with
// that key. Deleting a key that doesn't exist is not an error.
func (t *Table) DeleteRow(pk_raw string) error {
	pk_index := t.PrimaryKeyIndex()
	if pk_index == -1 {
		return PkNotFoundError(t.Name)
	}

	pk_column := t.columns[pk_index]
	pk, ok := pk_column.Type().Instance(pk_raw, false)
	if !ok {
		return NewFieldError(pk_column.Name(), wrongValueMessage)
	}

	if err := t.controller.DeleteRow(t, pk); err != nil {
		return err
	}

	t.rows = pkg.Filter(t.rows, func(r Row) bool { return !r[pk_index].Equal(pk) })
	return nil
}
