package storage

import (
	"context"

	"github.com/denismitr/imgslot/internal/media"
	"github.com/pkg/errors"
)

var ErrStorageFailed = errors.New("storage failed")
var ErrNotFound = errors.New("storage item not found")
var ErrConflict = errors.New("storage version conflict")
var ErrUnauthorized = errors.New("storage rejected credentials")

// Item describes the state of the slot right after a successful write.
type Item struct {
	Path      string
	URL       string
	Token     string
	CommitSHA string
	Size      int64
}

// Storage is the remote content store holding the slot.
// Reads and writes go through the structured API; the public read URL lags behind writes.
type Storage interface {
	// Stat returns ErrNotFound when the slot has never been written.
	Stat(ctx context.Context, slot media.Slot) (*media.RemoteImageVersion, error)
	// Put writes content guarded by the expected version token; an empty
	// token means the slot is expected to be absent.
	Put(ctx context.Context, slot media.Slot, content []byte, comment, token string) (*Item, error)
}

// Opener builds a Storage authenticated with the given token.
type Opener interface {
	Open(token string) (Storage, error)
}

type OpenerFunc func(token string) (Storage, error)

func (f OpenerFunc) Open(token string) (Storage, error) {
	return f(token)
}
