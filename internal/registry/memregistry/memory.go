package memregistry

import (
	"context"
	"sync"
	"time"

	"github.com/denismitr/imgslot/internal/media"
	"github.com/denismitr/imgslot/internal/registry"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// MemoryRegistry keeps recent uploads in process memory. Used when no
// MongoDB is configured and in tests.
type MemoryRegistry struct {
	mu      sync.Mutex
	limit   int
	now     func() time.Time
	records []media.RecentUpload
}

func New(limit int) *MemoryRegistry {
	if limit <= 0 {
		limit = registry.DefaultLimit
	}

	return &MemoryRegistry{limit: limit, now: time.Now}
}

func (r *MemoryRegistry) List(ctx context.Context) ([]media.RecentUpload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.snapshot(), nil
}

func (r *MemoryRegistry) Append(ctx context.Context, content []byte, mime string, size int) ([]media.RecentUpload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record := media.RecentUpload{
		ID:        media.ID(uuid.New().String()),
		Content:   append([]byte(nil), content...),
		Mime:      mime,
		Size:      size,
		CreatedAt: r.now(),
	}

	r.records = append([]media.RecentUpload{record}, r.records...)
	if len(r.records) > r.limit {
		r.records = r.records[:r.limit]
	}

	return r.snapshot(), nil
}

func (r *MemoryRegistry) Get(ctx context.Context, id media.ID) (*media.RecentUpload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.records {
		if r.records[i].ID == id {
			record := r.records[i]
			return &record, nil
		}
	}

	return nil, errors.Wrapf(registry.ErrEntityNotFound, "recent upload with ID [%s] not found", id.String())
}

func (r *MemoryRegistry) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = nil

	return nil
}

func (r *MemoryRegistry) snapshot() []media.RecentUpload {
	out := make([]media.RecentUpload, len(r.records))
	copy(out, r.records)

	return out
}
