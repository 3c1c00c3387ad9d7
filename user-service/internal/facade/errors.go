package facade

import (
	"errors"
	"fmt"
)

// ErrNoSession is returned when an operation needs a current user and the
// backend reports none.
var ErrNoSession = errors.New("no current user")

// ValidationError reports malformed input. It is always returned before the
// backend is contacted.
type ValidationError struct {
	Op      string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Op + " - " + e.Message
}

// ImageError reports an upload element that is not an image or whose MIME
// type and extension could not be derived.
type ImageError struct {
	Index int
	Err   error
}

func (e *ImageError) Error() string {
	return fmt.Sprintf("setAndSaveImages - value at index '%d' is not an image or mime type / extension could not be determined: %v", e.Index, e.Err)
}

func (e *ImageError) Unwrap() error {
	return e.Err
}

func noSession(op string) error {
	return fmt.Errorf("%s - %w", op, ErrNoSession)
}
