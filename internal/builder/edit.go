package builder

import (
	"fmt"
	"sort"

	"github.com/tobsdb/tdbadmin/internal/types"
)

func unknownColumnError(name string) FieldErrors {
	return NewFieldError(name, fmt.Sprintf("Error! %s column doesn't exists", name))
}

// checkColumnNames rejects the first (in sorted order) key of values that
// isn't a column of t.
func (t *Table) checkColumnNames(values map[string]string) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if t.ColumnIndex(k) == -1 {
			return unknownColumnError(k)
		}
	}
	return nil
}

// CreateRow builds a row from wire-level strings keyed by column name and
// inserts it. Omitted columns take their default, or null when nullable.
// Omitted columns with a store default are left to the store.
func (t *Table) CreateRow(values map[string]string) error {
	if err := t.checkColumnNames(values); err != nil {
		return err
	}

	row := make(Row, len(t.columns))
	errs := FieldErrors{}

	for i, column := range t.columns {
		raw, provided := values[column.Name()]
		if !provided && column.store_default != nil {
			continue
		}
		if !provided {
			v, ok := column.omittedValue()
			if !ok {
				errs[column.Name()] = valueRequiredMessage
			}
			row[i] = v
			continue
		}

		v, ok := column.NewValue(raw)
		if !ok {
			errs[column.Name()] = wrongValueMessage
		}
		row[i] = v
	}

	if len(errs) > 0 {
		return errs
	}
	return t.AddRow(row)
}

func (c *Column) omittedValue() (*types.Value, bool) {
	if raw, ok := c.DefaultValue(); ok {
		if v, ok := c.NewValue(raw); ok {
			return v, true
		}
	}
	v := c.column_type.Empty(c.IsNullable())
	return v, c.IsNullable()
}

// EditRow changes the cells named in values on the row keyed by pk_raw. Every
// value is validated before anything is written, so a bad value leaves the
// row untouched. Cells are written in schema order.
func (t *Table) EditRow(pk_raw string, values map[string]string) error {
	pk_index := t.PrimaryKeyIndex()
	if pk_index == -1 {
		return PkNotFoundError(t.Name)
	}
	if len(pk_raw) == 0 {
		return ErrRowNotFound
	}

	pk, ok := t.columns[pk_index].Type().Instance(pk_raw, false)
	if !ok {
		return ErrRowNotFound
	}

	row := t.FindRow(pk)
	if row == -1 {
		// the cache may be stale or filtered; reload once
		if _, err := t.GetAllRows(""); err != nil {
			return err
		}
		if row = t.FindRow(pk); row == -1 {
			return ErrRowNotFound
		}
	}

	if err := t.checkColumnNames(values); err != nil {
		return err
	}

	errs := FieldErrors{}
	for i, column := range t.columns {
		raw, ok := values[column.Name()]
		if !ok {
			continue
		}
		valid, err := t.ChangeCell(row, i, raw, true)
		if err != nil {
			return err
		}
		if !valid {
			errs[column.Name()] = wrongValueMessage
		}
	}
	if len(errs) > 0 {
		return errs
	}

	for i, column := range t.columns {
		raw, ok := values[column.Name()]
		if !ok {
			continue
		}
		if _, err := t.ChangeCell(row, i, raw, false); err != nil {
			return fmt.Errorf("updating %s: %w", column.Name(), err)
		}
	}

	return nil
}
