package registry

import (
	"context"

	"github.com/denismitr/imgslot/internal/media"
	"github.com/pkg/errors"
)

var ErrCouldNotOpenTx = errors.New("could not open tx")
var ErrRegistryReadFailed = errors.New("registry read error")
var ErrRegistryWriteFailed = errors.New("registry write error")
var ErrEntityNotFound = errors.New("entity not found")
var ErrInvalidID = errors.New("invalid ID")

// DefaultLimit is how many recent uploads are kept.
const DefaultLimit = 10

// Recent persists the most recent successful uploads, newest first.
type Recent interface {
	List(ctx context.Context) ([]media.RecentUpload, error)
	Append(ctx context.Context, content []byte, mime string, size int) ([]media.RecentUpload, error)
	Get(ctx context.Context, id media.ID) (*media.RecentUpload, error)
	Clear(ctx context.Context) error
}
