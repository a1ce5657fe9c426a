package query

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/tobsdb/tdbadmin/internal/builder"
	"github.com/tobsdb/tdbadmin/internal/types"
	"github.com/tobsdb/tdbadmin/pkg"
)

// SqliteController persists tables and rows in one SQLite file.
type SqliteController struct {
	db *sql.DB
}

func NewSqliteController(db *sql.DB) *SqliteController {
	return &SqliteController{db: db}
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("%w: %d", builder.ErrAffectedRows, n)
	}
	return nil
}

func pkColumn(t *builder.Table) (int, string, error) {
	pk_index := t.PrimaryKeyIndex()
	if pk_index == -1 {
		return -1, "", builder.PkNotFoundError(t.Name)
	}
	name, err := quoteIdent(t.Column(pk_index).Name())
	return pk_index, name, err
}

func (c *SqliteController) GetAllRows(t *builder.Table) ([]builder.Row, error) {
	table_name, err := quoteIdent(t.Name)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(t.Columns()))
	for i, column := range t.Columns() {
		if names[i], err = quoteIdent(column.Name()); err != nil {
			return nil, err
		}
	}

	rows, err := c.db.Query(fmt.Sprintf("SELECT %s FROM %s", strings.Join(names, ", "), table_name))
	if err != nil {
		return nil, storeError(err)
	}
	defer rows.Close()

	result := []builder.Row{}
	cells := make([]sql.NullString, len(names))
	dest := make([]any, len(names))
	for i := range cells {
		dest[i] = &cells[i]
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}

		row := make(builder.Row, len(cells))
		for i, cell := range cells {
			column := t.Column(i)
			var raw any
			if cell.Valid {
				raw = cell.String
			}
			v, ok := column.Type().Instance(raw, column.IsNullable())
			if !ok {
				pkg.WarnLog(fmt.Sprintf("%s.%s: can't read %q as %s", t.Name, column.Name(), cell.String, column.Type()))
			}
			row[i] = v
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

func (c *SqliteController) UpdateCell(t *builder.Table, row, column int) error {
	table_name, err := quoteIdent(t.Name)
	if err != nil {
		return err
	}
	pk_index, pk_name, err := pkColumn(t)
	if err != nil {
		return err
	}
	column_name, err := quoteIdent(t.Column(column).Name())
	if err != nil {
		return err
	}

	cached := t.CachedRows()[row]
	res, err := c.db.Exec(
		fmt.Sprintf("UPDATE %s SET %s = ? WHERE %s = ?", table_name, column_name, pk_name),
		cached[column].ObjectValue(), cached[pk_index].ObjectValue(),
	)
	if err != nil {
		return storeError(err)
	}
	return checkAffected(res)
}

func (c *SqliteController) UpdatePrimaryKey(t *builder.Table, row, column int, new_pk *types.Value) error {
	table_name, err := quoteIdent(t.Name)
	if err != nil {
		return err
	}
	pk_name, err := quoteIdent(t.Column(column).Name())
	if err != nil {
		return err
	}

	res, err := c.db.Exec(
		fmt.Sprintf("UPDATE %s SET %s = ? WHERE %s = ?", table_name, pk_name, pk_name),
		new_pk.ObjectValue(), t.CachedRows()[row][column].ObjectValue(),
	)
	if err != nil {
		return storeError(err)
	}
	return checkAffected(res)
}

func (c *SqliteController) InsertRow(t *builder.Table, row builder.Row) error {
	table_name, err := quoteIdent(t.Name)
	if err != nil {
		return err
	}

	names := []string{}
	params := []string{}
	args := []any{}
	for i, v := range row {
		if v == nil {
			continue
		}
		name, err := quoteIdent(t.Column(i).Name())
		if err != nil {
			return err
		}
		names = append(names, name)
		params = append(params, "?")
		args = append(args, v.ObjectValue())
	}

	query := fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", table_name)
	if len(names) > 0 {
		query = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table_name, strings.Join(names, ", "), strings.Join(params, ", "))
	}
	res, err := c.db.Exec(query, args...)
	if err != nil {
		return storeError(err)
	}
	return checkAffected(res)
}

func (c *SqliteController) DeleteRow(t *builder.Table, pk *types.Value) error {
	table_name, err := quoteIdent(t.Name)
	if err != nil {
		return err
	}
	_, pk_name, err := pkColumn(t)
	if err != nil {
		return err
	}

	_, err = c.db.Exec(fmt.Sprintf("DELETE FROM %s WHERE %s = ?", table_name, pk_name), pk.ObjectValue())
	return storeError(err)
}

func (c *SqliteController) ListTables() ([]string, error) {
	rows, err := c.db.Query(
		// _ is a LIKE wildcard; only the literal sqlite_ prefix is reserved
		`SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite\_%' ESCAPE '\' ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (c *SqliteController) TableInfo(table_name string) ([]builder.ColumnInfo, error) {
	rows, err := c.db.Query(
		`SELECT name, type, "notnull", dflt_value, pk FROM pragma_table_info(?) ORDER BY cid`, table_name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	infos := []builder.ColumnInfo{}
	pk_count := 0
	for rows.Next() {
		var (
			info     builder.ColumnInfo
			not_null int
			dflt     sql.NullString
			pk       int
		)
		if err := rows.Scan(&info.Name, &info.DeclaredType, &not_null, &dflt, &pk); err != nil {
			return nil, err
		}
		info.NotNull = not_null != 0
		info.IsPk = pk > 0
		if pk > 0 {
			pk_count++
		}
		if dflt.Valid {
			info.DefaultValue, info.DefaultExpr = parseDefault(dflt.String)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if pk_count > 1 {
		pkg.WarnLog("table", table_name, "has a composite primary key; it is treated as having none")
		for i := range infos {
			infos[i].IsPk = false
		}
	}
	return infos, nil
}

func (c *SqliteController) CreateTable(t *builder.Table) error {
	table_name, err := quoteIdent(t.Name)
	if err != nil {
		return err
	}

	defs := make([]string, len(t.Columns()))
	for i, column := range t.Columns() {
		if defs[i], err = columnDefinition(column); err != nil {
			return err
		}
	}

	query := fmt.Sprintf("CREATE TABLE %s (%s)", table_name, strings.Join(defs, ", "))
	pkg.DebugLog(query)
	_, err = c.db.Exec(query)
	return storeError(err)
}

func (c *SqliteController) DropTable(table_name string) error {
	name, err := quoteIdent(table_name)
	if err != nil {
		return err
	}
	_, err = c.db.Exec(fmt.Sprintf("DROP TABLE %s", name))
	return storeError(err)
}

func (c *SqliteController) Close() error {
	return c.db.Close()
}
