package records

import (
	"errors"
	"fmt"
)

// ErrEmptyData is matched (errors.Is) by every *EmptyDataError.
var ErrEmptyData = errors.New("no records loaded")

// DataError reports a malformed or missing field in the source table.
// Row is the 1-based data row (header excluded); 0 means the header/schema itself.
type DataError struct {
	Row    int
	Field  string
	Value  string
	Reason string
}

func (e *DataError) Error() string {
	if e.Row <= 0 {
		if e.Value != "" {
			return fmt.Sprintf("%s %q: %s", e.Field, e.Value, e.Reason)
		}
		return fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("row %d: %s %q: %s", e.Row, e.Field, e.Value, e.Reason)
}

// IOError wraps a file system failure with the operation and path involved.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string { return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err) }
func (e *IOError) Unwrap() error { return e.Err }

// EmptyDataError reports an operation requested on an empty or not yet loaded record set.
type EmptyDataError struct {
	Op string
}

func (e *EmptyDataError) Error() string {
	if e.Op == "" {
		return ErrEmptyData.Error()
	}
	return e.Op + ": " + ErrEmptyData.Error()
}

func (e *EmptyDataError) Is(target error) bool { return target == ErrEmptyData }
