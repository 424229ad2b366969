package download

import (
	"errors"
	"fmt"

	"github.com/terracol/terracol/internal/model"
)

// Kind classifies a download failure.
type Kind string

const (
	// KindTransient covers failures that were retried until the ceiling:
	// 5xx responses, timeouts, connection drops mid-transfer.
	KindTransient Kind = "transient"
	// KindNotFound is a 404 from the tile source. Not retried.
	KindNotFound Kind = "not_found"
	// KindRemoteRejected is any other 4xx (auth, throttling policy). Not retried.
	KindRemoteRejected Kind = "remote_rejected"
	// KindIO is a local storage failure while persisting the tile.
	KindIO Kind = "io"
)

// ModelKind maps a download failure kind to the report taxonomy.
func (k Kind) ModelKind() model.ErrorKind {
	switch k {
	case KindNotFound:
		return model.ErrKindNotFound
	case KindRemoteRejected:
		return model.ErrKindRemoteRejected
	case KindIO:
		return model.ErrKindIO
	default:
		return model.ErrKindTransient
	}
}

// Error is a terminal download failure for one tile.
type Error struct {
	Kind   Kind
	Tile   string
	URL    string
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("download %s: %s (http %d): %v", e.Tile, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("download %s: %s: %v", e.Tile, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// AsError extracts a download Error from anywhere in the chain.
func AsError(err error) (*Error, bool) {
	var de *Error
	ok := errors.As(err, &de)
	return de, ok
}
