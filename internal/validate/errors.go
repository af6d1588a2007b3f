package validate

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks a missing or non-directory input path.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidOutput marks a missing or non-directory output path.
	ErrInvalidOutput = errors.New("invalid output")
	// ErrInvalidFilename marks a filename containing a separator, colon or NUL.
	ErrInvalidFilename = errors.New("invalid filename")
	// ErrInvalidFileFormat marks an unsupported output container.
	ErrInvalidFileFormat = errors.New("invalid file format")
	// ErrInvalidOption marks an unknown quality hint or an inverted bounding box.
	ErrInvalidOption = errors.New("invalid option")
)

// Error reports which field rejected the raw input. Message is meant for the log panel.
type Error struct {
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// Unwrap exposes the sentinel for errors.Is.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
