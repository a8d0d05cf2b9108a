package normalizer

import (
	"errors"
	"fmt"

	"estatemerge/internal/models"
)

var (
	// ErrInvalidRecord marks a record without both title and address.
	ErrInvalidRecord = errors.New("invalid record")
	// ErrUnsupportedPlatform is returned for platforms without a schema.
	ErrUnsupportedPlatform = errors.New("unsupported platform")

	errUnknownPropertyType = errors.New("unknown property type")
	errUnknownTradeType    = errors.New("unknown trade type")
	errPartialCoordinates  = errors.New("only one of lat/lon present")
)

// ParseError records a field that could not be parsed. The listing is kept
// and the field takes its zero value.
type ParseError struct {
	Platform models.Platform
	RecordID string
	Field    Field
	Value    any
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s record %s: failed to parse %s %v: %v", e.Platform, e.RecordID, e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
