package builder

import (
	"fmt"
	"regexp"
)

var identifier_regex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateIdentifier guards every table or column name that ends up inside
// command text, since names can't be bound as parameters.
func ValidateIdentifier(identifier string) error {
	if !identifier_regex.MatchString(identifier) {
		return fmt.Errorf("Invalid SQL identifier: %q", identifier)
	}
	return nil
}
