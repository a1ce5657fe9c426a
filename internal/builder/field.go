package builder

import (
	"encoding/json"
	"fmt"

	"github.com/tobsdb/tdbadmin/internal/types"
)

// Column is the immutable description of one table column.
type Column struct {
	name          string
	column_type   types.ColumnType
	is_not_null   bool
	default_value *string
	is_pk         bool
	// computed by the store when a row is inserted without this column
	store_default *string
}

// NewColumn builds a column. An empty default means the column has none.
func NewColumn(name string, column_type types.ColumnType, is_not_null bool, default_value string, is_pk bool) *Column {
	c := &Column{name: name, column_type: column_type, is_not_null: is_not_null, is_pk: is_pk}
	if len(default_value) > 0 {
		c.default_value = &default_value
	}
	return c
}

func (c *Column) Name() string           { return c.name }
func (c *Column) Type() types.ColumnType { return c.column_type }
func (c *Column) TypeName() string       { return c.column_type.Name() }
func (c *Column) IsNotNull() bool        { return c.is_not_null }
func (c *Column) IsNullable() bool       { return !c.is_not_null }
func (c *Column) IsPk() bool             { return c.is_pk }

// DefaultValue returns the raw default and whether there is one.
func (c *Column) DefaultValue() (string, bool) {
	if c.default_value == nil {
		return "", false
	}
	return *c.default_value, true
}

// StoreDefault returns the default expression the store evaluates, if any.
func (c *Column) StoreDefault() (string, bool) {
	if c.store_default == nil {
		return "", false
	}
	return *c.store_default, true
}

// NewValue parses raw into a value of this column's type and nullability.
func (c *Column) NewValue(raw string) (*types.Value, bool) {
	v := c.column_type.Empty(c.IsNullable())
	ok := v.ParseString(raw)
	return v, ok
}

// checkDefault re-parses the default through the column type. Defaults are
// only checked here, when the table is created.
func (c *Column) checkDefault() error {
	raw, ok := c.DefaultValue()
	if !ok {
		return nil
	}
	if c.column_type.Empty(false).ParseString(raw) {
		return nil
	}
	return fmt.Errorf("\"%s\": invalid default value %s for type %s", c.name, raw, c.column_type)
}

func (c *Column) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name         string  `json:"name"`
		TypeName     string  `json:"typeName"`
		IsNotNull    bool    `json:"isNotNull"`
		DefaultValue *string `json:"defaultValue"`
		IsPk         bool    `json:"isPk"`
		StoreDefault *string `json:"storeDefault,omitempty"`
	}{c.name, c.TypeName(), c.is_not_null, c.default_value, c.is_pk, c.store_default})
}
