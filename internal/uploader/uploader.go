package uploader

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/denismitr/imgslot/internal/media"
	"github.com/denismitr/imgslot/internal/metrics"
	"github.com/denismitr/imgslot/internal/reconciler"
	"github.com/denismitr/imgslot/internal/registry"
	"github.com/denismitr/imgslot/internal/settings"
	"github.com/denismitr/imgslot/internal/storage"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var ErrConfig = errors.New("upload is not configured")
var ErrAuth = errors.New("store rejected the credentials")
var ErrTransport = errors.New("upload failed")
var ErrUploadInProgress = errors.New("another upload is in progress")
var ErrEmptyPayload = errors.New("nothing to upload")

// Tracker receives the written content so it can be displayed until the
// store confirms the new version.
type Tracker interface {
	Begin(pending media.PendingUpload, delay time.Duration) uint64
}

type Config struct {
	Timeout       time.Duration
	RecentTimeout time.Duration
}

type Receipt struct {
	Slot      media.Slot           `json:"slot"`
	Path      string               `json:"path"`
	Token     string               `json:"sha"`
	CommitSHA string               `json:"commit,omitempty"`
	Comment   string               `json:"message"`
	Size      int                  `json:"size"`
	Origin    media.Origin         `json:"origin"`
	Epoch     uint64               `json:"epoch"`
	Recent    []media.RecentUpload `json:"-"`
}

// Coordinator writes payloads into the slot with an optimistic version check.
// Only one upload may be in flight at a time.
type Coordinator struct {
	cfg      Config
	provider settings.Provider
	opener   storage.Opener
	tracker  Tracker
	recent   registry.Recent
	logger   *logrus.Logger
	now      func() time.Time

	busy int32
}

func New(
	cfg Config,
	provider settings.Provider,
	opener storage.Opener,
	tracker Tracker,
	recent registry.Recent,
	logger *logrus.Logger,
) *Coordinator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	if cfg.RecentTimeout <= 0 {
		cfg.RecentTimeout = 5 * time.Second
	}

	return &Coordinator{
		cfg:      cfg,
		provider: provider,
		opener:   opener,
		tracker:  tracker,
		recent:   recent,
		logger:   logger,
		now:      time.Now,
	}
}

// Upload reads the current version token, writes the payload guarded by it
// and hands the written bytes over to the tracker. A conflicting concurrent
// write is reported as ErrTransport and never retried.
func (c *Coordinator) Upload(ctx context.Context, p Payload) (*Receipt, error) {
	if !atomic.CompareAndSwapInt32(&c.busy, 0, 1) {
		return nil, ErrUploadInProgress
	}
	defer atomic.StoreInt32(&c.busy, 0)

	receipt, err := c.upload(ctx, p)
	if err != nil {
		metrics.RecordUpload(string(p.Origin()), "error")
		return nil, err
	}

	metrics.RecordUpload(string(p.Origin()), "ok")

	return receipt, nil
}

func (c *Coordinator) upload(ctx context.Context, p Payload) (*Receipt, error) {
	content := p.Bytes()
	if len(content) == 0 {
		return nil, ErrEmptyPayload
	}

	creds, err := c.provider.Get(ctx)
	if err != nil {
		return nil, errors.Wrapf(ErrConfig, "could not resolve credentials: %v", err)
	}

	if err := creds.Validate(); err != nil {
		return nil, errors.Wrap(ErrConfig, err.Error())
	}

	slot, err := creds.Slot()
	if err != nil {
		return nil, errors.Wrap(ErrConfig, err.Error())
	}

	store, err := c.opener.Open(creds.Token)
	if err != nil {
		return nil, errors.Wrapf(ErrConfig, "could not open storage: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var token string
	current, err := store.Stat(ctx, slot)
	switch {
	case err == nil:
		token = current.Token
	case errors.Is(err, storage.ErrNotFound):
	default:
		return nil, mapStorageError(err)
	}

	comment := fmt.Sprintf("Update %s - %s", slot.Filename, c.now().UTC().Format(time.RFC3339))

	item, err := store.Put(ctx, slot, content, comment, token)
	if err != nil {
		return nil, mapStorageError(err)
	}

	size := media.EstimateSize(content)
	writtenAt := c.now()

	lg := c.logger.WithFields(logrus.Fields{"slot": slot.String(), "origin": p.Origin()})
	lg.Infof("slot updated with %s", media.FormatSize(size))

	epoch := c.tracker.Begin(media.PendingUpload{
		Content:   content,
		Mime:      p.ContentType(),
		Size:      size,
		Origin:    p.Origin(),
		WrittenAt: writtenAt,
	}, reconciler.DelayFor(p.Origin()))

	receipt := &Receipt{
		Slot:      slot,
		Path:      item.Path,
		Token:     item.Token,
		CommitSHA: item.CommitSHA,
		Comment:   comment,
		Size:      size,
		Origin:    p.Origin(),
		Epoch:     epoch,
	}

	receipt.Recent = c.remember(content, p.ContentType(), size, lg)

	return receipt, nil
}

// remember records the upload in the recent list. Failures are only logged,
// the slot has already been written at this point.
func (c *Coordinator) remember(content []byte, mime string, size int, lg *logrus.Entry) []media.RecentUpload {
	if c.recent == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.RecentTimeout)
	defer cancel()

	list, err := c.recent.Append(ctx, content, mime, size)
	if err != nil {
		lg.Warnf("could not record recent upload: %v", err)
		return nil
	}

	return list
}

func mapStorageError(err error) error {
	if errors.Is(err, storage.ErrUnauthorized) {
		return errors.Wrap(ErrAuth, err.Error())
	}

	return errors.Wrap(ErrTransport, err.Error())
}
