package reconciler

import (
	"context"

	"github.com/denismitr/imgslot/internal/media"
	"github.com/denismitr/imgslot/internal/settings"
	"github.com/denismitr/imgslot/internal/storage"
	"github.com/pkg/errors"
)

// Fetcher re-reads the authoritative state of the slot.
// A slot that was never written yields a nil version and no error.
type Fetcher interface {
	Fetch(ctx context.Context) (*media.RemoteImageVersion, error)
}

type FetcherFunc func(ctx context.Context) (*media.RemoteImageVersion, error)

func (f FetcherFunc) Fetch(ctx context.Context) (*media.RemoteImageVersion, error) {
	return f(ctx)
}

// StoreFetcher resolves credentials on every fetch and stats the slot.
type StoreFetcher struct {
	provider settings.Provider
	opener   storage.Opener
}

func NewStoreFetcher(provider settings.Provider, opener storage.Opener) *StoreFetcher {
	return &StoreFetcher{provider: provider, opener: opener}
}

func (f *StoreFetcher) Fetch(ctx context.Context) (*media.RemoteImageVersion, error) {
	creds, err := f.provider.Get(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "could not resolve credentials")
	}

	if err := creds.Validate(); err != nil {
		return nil, err
	}

	slot, err := creds.Slot()
	if err != nil {
		return nil, err
	}

	store, err := f.opener.Open(creds.Token)
	if err != nil {
		return nil, errors.Wrap(err, "could not open storage")
	}

	version, err := store.Stat(ctx, slot)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}

		return nil, err
	}

	return version, nil
}
