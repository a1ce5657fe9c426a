package query

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tobsdb/tdbadmin/internal/builder"
	"github.com/tobsdb/tdbadmin/internal/types"
)

// quoteIdent validates id and wraps it in double quotes.
func quoteIdent(id string) (string, error) {
	if err := builder.ValidateIdentifier(id); err != nil {
		return "", err
	}
	return `"` + id + `"`, nil
}

// sqlLiteral renders the store form of v as a SQL literal for DDL, where
// parameters can't be bound.
func sqlLiteral(v *types.Value) string {
	switch o := v.ObjectValue().(type) {
	case nil:
		return "NULL"
	case int64:
		return strconv.FormatInt(o, 10)
	case float64:
		return strconv.FormatFloat(o, 'g', -1, 64)
	case string:
		return "'" + strings.ReplaceAll(o, "'", "''") + "'"
	default:
		panic(fmt.Sprintf("unhandled store value %T", o))
	}
}

var numeric_literal_regex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// parseDefault reads the dflt_value reported by pragma_table_info. Quoted
// strings and numbers come back as value; anything else is an expression the
// store evaluates on insert and comes back as expr. Both are nil for NULL.
func parseDefault(dflt string) (value *string, expr *string) {
	dflt = strings.TrimSpace(dflt)
	if strings.EqualFold(dflt, "NULL") {
		return nil, nil
	}
	if numeric_literal_regex.MatchString(dflt) {
		return &dflt, nil
	}
	if len(dflt) >= 2 && dflt[0] == '\'' && dflt[len(dflt)-1] == '\'' {
		inner := dflt[1 : len(dflt)-1]
		// an unpaired quote means several literals, as in 'a' || 'b'
		if !strings.Contains(strings.ReplaceAll(inner, "''", ""), "'") {
			s := strings.ReplaceAll(inner, "''", "'")
			return &s, nil
		}
	}
	return nil, &dflt
}

// columnDefinition renders `name type [PRIMARY KEY] [NOT NULL] [DEFAULT literal]`.
func columnDefinition(c *builder.Column) (string, error) {
	name, err := quoteIdent(c.Name())
	if err != nil {
		return "", err
	}

	def := strings.Builder{}
	def.WriteString(name)
	def.WriteString(" ")
	def.WriteString(c.TypeName())
	if c.IsPk() {
		def.WriteString(" PRIMARY KEY")
	}
	if c.IsNotNull() {
		def.WriteString(" NOT NULL")
	}
	if raw, ok := c.DefaultValue(); ok {
		v := c.Type().Empty(false)
		if !v.ParseString(raw) {
			return "", fmt.Errorf("\"%s\": invalid default value %s for type %s", c.Name(), raw, c.Type())
		}
		def.WriteString(" DEFAULT ")
		def.WriteString(sqlLiteral(v))
	}
	return def.String(), nil
}
