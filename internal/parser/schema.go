// Package parser reads schema scripts: tables declared as
//
//	$TABLE Users {
//	    id   Int key(primary)
//	    name Text default(Ann)
//	    bio  Text optional(true)
//	}
//
// Fields are NOT NULL unless marked optional(true).
package parser

import (
	"bufio"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/tobsdb/tdbadmin/internal/builder"
	"github.com/tobsdb/tdbadmin/internal/types"
	"github.com/tobsdb/tdbadmin/pkg"
)

// TableDef is one table declared in a schema script.
type TableDef struct {
	Name    string
	Columns []builder.ColumnDef
	// index into Columns, -1 without key(primary)
	PrimaryKey int
}

type LineParserState int

const (
	ParserStateTableStart LineParserState = iota
	ParserStateTableEnd
	ParserStateNewField
	ParserStateIdle
)

type ParserData struct {
	Name         string
	Builtin_type types.ColumnType
	Properties   map[FieldProp]string
}

const (
	table_prefix     = "$TABLE "
	table_prefix_len = len(table_prefix)
)

var prop_regex = regexp.MustCompile(`(\w+)\(([^)]*)\)`)

func LineParser(line string) (LineParserState, *ParserData, error) {
	if strings.HasPrefix(line, table_prefix) {
		line := line[table_prefix_len:]
		name_end := strings.Index(line, " ")

		if name_end > 0 {
			open_bracket := strings.TrimSpace(line[name_end:])
			if open_bracket != "{" {
				return ParserStateIdle, nil, errors.New("Table name cannot include space")
			}
			name := line[:name_end]
			if err := builder.ValidateIdentifier(name); err != nil {
				return ParserStateIdle, nil, fmt.Errorf("Table name contains invalid characters: %s", name)
			}
			return ParserStateTableStart, &ParserData{Name: name}, nil
		}
	} else if line == "}" {
		return ParserStateTableEnd, nil, nil
	} else if !strings.HasPrefix(line, "$") {
		splits := strings.Fields(line)
		if err := builder.ValidateIdentifier(splits[0]); err != nil {
			return ParserStateIdle, nil, fmt.Errorf("Field name contains invalid characters: %s", splits[0])
		}
		if len(splits) < 2 {
			return ParserStateIdle, nil, fmt.Errorf("Field %s does not have a type", splits[0])
		}

		builtin_type, ok := types.Resolve(splits[1])
		if !ok {
			return ParserStateIdle, nil, fmt.Errorf("Invalid field type: %s", splits[1])
		}

		field_props, err := parseRawFieldProps(strings.Join(splits[2:], " "))
		if err != nil {
			return ParserStateIdle, nil, err
		}

		return ParserStateNewField, &ParserData{
			Name:         splits[0],
			Builtin_type: builtin_type,
			Properties:   field_props,
		}, nil
	}
	return ParserStateIdle, nil, errors.New("Invalid line")
}

func parseRawFieldProps(raw string) (map[FieldProp]string, error) {
	field_props := make(map[FieldProp]string)

	for _, match := range prop_regex.FindAllStringSubmatch(raw, -1) {
		prop, value := FieldProp(match[1]), strings.TrimSpace(match[2])
		if !prop.IsValid() {
			return nil, fmt.Errorf("Invalid field prop: %s", prop)
		}
		if len(value) == 0 {
			return nil, fmt.Errorf("No value for prop: %s", prop)
		}
		if err := checkPropValue(prop, value); err != nil {
			return nil, err
		}
		field_props[prop] = value
	}

	return field_props, nil
}

func checkPropValue(prop FieldProp, value string) error {
	switch prop {
	case FieldPropOptional:
		if value != "true" && value != "false" {
			return fmt.Errorf("optional(%s) is not a valid prop", value)
		}
	case FieldPropKey:
		if value != KeyPropPrimary {
			return fmt.Errorf("key(%s) is not a valid prop", value)
		}
	}
	return nil
}

// ParseSchema reads every table of a schema script. Each table is checked
// the way Database.CreateTable checks it, so a script that parses only fails
// to apply on name clashes with existing tables.
func ParseSchema(schema_data string) ([]TableDef, error) {
	tables := []TableDef{}
	scanner := bufio.NewScanner(strings.NewReader(schema_data))
	line_idx := 0

	var current *TableDef
	var current_line int

	for scanner.Scan() {
		line_idx++
		line := strings.TrimSpace(scanner.Text())

		// Ignore empty lines & comments
		if len(line) == 0 || strings.HasPrefix(line, "//") {
			continue
		}

		state, data, err := LineParser(line)
		if err != nil {
			return nil, ParseLineError(line_idx, err.Error())
		}

		switch state {
		case ParserStateTableStart:
			if current != nil {
				return nil, ParseLineError(line_idx, fmt.Sprintf("Table %s is not closed", current.Name))
			}
			if pkg.Some(tables, func(t TableDef) bool { return strings.EqualFold(t.Name, data.Name) }) {
				return nil, ParseLineError(line_idx, fmt.Sprintf("Duplicate table %s", data.Name))
			}
			current = &TableDef{Name: data.Name, Columns: []builder.ColumnDef{}, PrimaryKey: -1}
			current_line = line_idx
		case ParserStateTableEnd:
			if current == nil {
				return nil, ParseLineError(line_idx, "Unexpected }")
			}
			if err := checkTable(current); err != nil {
				return nil, ParseLineError(current_line, err.Error())
			}
			tables = append(tables, *current)
			current = nil
		case ParserStateNewField:
			if current == nil {
				return nil, ParseLineError(line_idx, "Field declared outside of a table")
			}
			if _, ok := data.Properties[FieldPropKey]; ok {
				if current.PrimaryKey != -1 {
					return nil, ParseLineError(line_idx, "Table can't have multiple primary keys")
				}
				current.PrimaryKey = len(current.Columns)
			}
			current.Columns = append(current.Columns, builder.ColumnDef{
				Name:         data.Name,
				TypeName:     data.Builtin_type.Name(),
				IsNotNull:    data.Properties[FieldPropOptional] != "true",
				DefaultValue: data.Properties[FieldPropDefault],
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if current != nil {
		return nil, ParseLineError(current_line, fmt.Sprintf("Table %s is not closed", current.Name))
	}

	return tables, nil
}

// checkTable runs the column checks of table creation without a store.
func checkTable(def *TableDef) error {
	table := builder.NewTable(nil, def.Name)
	for i, c := range def.Columns {
		column_type, _ := types.Resolve(c.TypeName)
		is_pk := i == def.PrimaryKey
		table.AddColumn(builder.NewColumn(c.Name, column_type, c.IsNotNull || is_pk, c.DefaultValue, is_pk))
	}
	return table.ValidateColumns()
}

func ParseLineError(line int, reason string) error {
	return fmt.Errorf("Error parsing line %d: %s", line, reason)
}
