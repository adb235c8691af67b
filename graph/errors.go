package graph

import (
	"errors"
	"fmt"
)

// ErrMalformedPage indicates a page payload without the required shape
// (missing data field). It is fatal to the enclosing fetch but not to the
// whole crawl.
var ErrMalformedPage = errors.New("malformed page from source API")

// ErrMalformedItem indicates an item within a page that could not be
// decoded into the expected shape.
var ErrMalformedItem = errors.New("malformed item from source API")

// RemoteError carries a non-success response from the source API. Message
// holds the remote-reported error message when the error envelope was
// parseable, else the raw response body.
type RemoteError struct {
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("error %d: %s", e.Status, e.Message)
}
