package builder

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrTableNotFound  = errors.New("Table not found")
	ErrRowNotFound    = errors.New("Row not found")
	ErrNoPrimaryKey   = errors.New("Table has no primary key column")
	ErrAffectedRows   = errors.New("Unexpected number of affected rows")
	ErrDatabaseClosed = errors.New("Database is closed")
)

const (
	// key used for errors that don't belong to a single field
	FieldErrorGeneral = ""

	wrongValueMessage    = "Wrong value!"
	valueRequiredMessage = "Value required!"
)

// FieldErrors maps a field (column name, or FieldErrorGeneral) to a message.
// It is the error returned for every validation or parse failure.
type FieldErrors map[string]string

func NewFieldError(field, message string) FieldErrors {
	return FieldErrors{field: message}
}

func (e FieldErrors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == FieldErrorGeneral {
			parts = append(parts, e[k])
		} else {
			parts = append(parts, fmt.Sprintf("%s: %s", k, e[k]))
		}
	}
	return strings.Join(parts, "; ")
}

// AsFieldErrors reports whether err carries field errors.
func AsFieldErrors(err error) (FieldErrors, bool) {
	var fe FieldErrors
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

func PkNotFoundError(table_name string) error {
	return fmt.Errorf("%w: cannot find primary key column in '%s' table", ErrNoPrimaryKey, table_name)
}
