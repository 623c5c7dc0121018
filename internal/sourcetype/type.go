// Package sourcetype is the static catalog of supported data source types:
// their form schemas, their ELT definition ids, and the mapping from a form
// payload to the connection configuration the platform expects.
package sourcetype

import (
	"errors"
	"fmt"
	"strings"
)

// Type is the closed set of source types the dashboard can create.
type Type string

const (
	MySQL        Type = "mysql"
	Postgres     Type = "postgres"
	GoogleSheets Type = "google-sheets"
	CSV          Type = "csv"
	Excel        Type = "excel"
)

var ErrNotFound = errors.New("source type not found")

// UnsupportedTypeError is returned for identifiers outside the closed set.
type UnsupportedTypeError struct {
	ID string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported source type: %s", e.ID)
}

// Is lets callers match with errors.Is(err, ErrNotFound).
func (e *UnsupportedTypeError) Is(target error) bool {
	return target == ErrNotFound
}

// All returns the supported types in display order.
func All() []Type {
	return []Type{MySQL, Postgres, GoogleSheets, CSV, Excel}
}

func Parse(id string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(id)))
	switch t {
	case MySQL, Postgres, GoogleSheets, CSV, Excel:
		return t, nil
	}
	return "", &UnsupportedTypeError{ID: id}
}

func (t Type) String() string { return string(t) }
