package parser_test

import (
	"testing"

	"github.com/tobsdb/tdbadmin/internal/builder"
	. "github.com/tobsdb/tdbadmin/internal/parser"
	"github.com/tobsdb/tdbadmin/internal/types"
	"gotest.tools/assert"
)

func TestLineParser(t *testing.T) {
	t.Run("table declaration", func(t *testing.T) {
		state, data, err := LineParser("$TABLE a {")

		assert.NilError(t, err)
		assert.Equal(t, state, ParserStateTableStart)
		assert.Equal(t, data.Name, "a")
	})

	t.Run("table missing name", func(t *testing.T) {
		state, _, err := LineParser("$TABLE {")

		assert.ErrorContains(t, err, "Invalid line")
		assert.Equal(t, state, ParserStateIdle)
	})

	t.Run("table declaration missing opening bracket", func(t *testing.T) {
		state, _, err := LineParser("$TABLE a")

		assert.ErrorContains(t, err, "Invalid line")
		assert.Equal(t, state, ParserStateIdle)
	})

	t.Run("table name with space", func(t *testing.T) {
		state, _, err := LineParser("$TABLE a b {")

		assert.ErrorContains(t, err, "Table name cannot include space")
		assert.Equal(t, state, ParserStateIdle)
	})

	t.Run("table name invalid character", func(t *testing.T) {
		state, _, err := LineParser("$TABLE a-b {")

		assert.ErrorContains(t, err, "Table name contains invalid characters")
		assert.Equal(t, state, ParserStateIdle)
	})

	t.Run("table declaration end", func(t *testing.T) {
		state, _, err := LineParser("}")

		assert.NilError(t, err)
		assert.Equal(t, state, ParserStateTableEnd)
	})

	t.Run("field declaration", func(t *testing.T) {
		state, data, err := LineParser("a  complexint key(primary)  default(1+2i)")

		assert.NilError(t, err)
		assert.Equal(t, state, ParserStateNewField)
		assert.Equal(t, data.Name, "a")
		assert.Equal(t, data.Builtin_type, types.ColumnTypeComplexInt)
		assert.Equal(t, data.Properties[FieldPropKey], KeyPropPrimary)
		assert.Equal(t, data.Properties[FieldPropDefault], "1+2i")
	})

	t.Run("field name invalid character", func(t *testing.T) {
		state, _, err := LineParser("a-b Int")

		assert.ErrorContains(t, err, "Field name contains invalid characters")
		assert.Equal(t, state, ParserStateIdle)
	})

	t.Run("field declaration without type", func(t *testing.T) {
		state, _, err := LineParser("a")

		assert.ErrorContains(t, err, "Field a does not have a type")
		assert.Equal(t, state, ParserStateIdle)
	})

	t.Run("field declaration with unknown type", func(t *testing.T) {
		state, _, err := LineParser("a Number")

		assert.ErrorContains(t, err, "Invalid field type: Number")
		assert.Equal(t, state, ParserStateIdle)
	})

	t.Run("unknown field prop", func(t *testing.T) {
		state, _, err := LineParser("a Int unique(true)")

		assert.ErrorContains(t, err, "Invalid field prop: unique")
		assert.Equal(t, state, ParserStateIdle)
	})

	t.Run("field prop with no value", func(t *testing.T) {
		state, _, err := LineParser("a Int default()")

		assert.ErrorContains(t, err, "No value for prop: default")
		assert.Equal(t, state, ParserStateIdle)
	})

	t.Run("invalid field prop value", func(t *testing.T) {
		state, _, err := LineParser("a Int optional(x)")

		assert.ErrorContains(t, err, "optional(x) is not a valid prop")
		assert.Equal(t, state, ParserStateIdle)

		_, _, err = LineParser("a Int key(unique)")
		assert.ErrorContains(t, err, "key(unique) is not a valid prop")
	})
}

func TestParseSchema(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		tables, err := ParseSchema(`
// people
$TABLE Users {
    id   Int key(primary)
    name Text default(Ann)
    bio  Text optional(true)
}

$TABLE Points {
    label Char
    at    ComplexReal key(primary)
}
`)
		assert.NilError(t, err)
		assert.Equal(t, len(tables), 2)

		assert.Equal(t, tables[0].Name, "Users")
		assert.Equal(t, tables[0].PrimaryKey, 0)
		assert.DeepEqual(t, tables[0].Columns, []builder.ColumnDef{
			{Name: "id", TypeName: "Int", IsNotNull: true},
			{Name: "name", TypeName: "Text", IsNotNull: true, DefaultValue: "Ann"},
			{Name: "bio", TypeName: "Text", IsNotNull: false},
		})
		assert.Equal(t, tables[1].PrimaryKey, 1)
	})

	t.Run("errors", func(t *testing.T) {
		cases := map[string]string{
			"$TABLE a {\n b Int\n}":                                "Table must have a primary key column",
			"$TABLE a {\n b Int key(primary)\n c Int key(primary)\n}": "Error parsing line 3: Table can't have multiple primary keys",
			"$TABLE a {\n b Int key(primary)\n b Text\n}":           `Column name is not unique: "b"`,
			"$TABLE a {\n b Int key(primary) default(x)\n}":         "invalid default value x for type Int",
			"$TABLE a {\n b Int key(primary)\n}\n$TABLE A {\n}":      "Error parsing line 4: Duplicate table A",
			"$TABLE a {\n b Int key(primary)\n":                      "Error parsing line 1: Table a is not closed",
			"b Int":                                                 "Field declared outside of a table",
			"}":                                                     "Unexpected }",
		}
		for schema, msg := range cases {
			_, err := ParseSchema(schema)
			assert.ErrorContains(t, err, msg, schema)
		}
	})
}
