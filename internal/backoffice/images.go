package backoffice

import (
	"context"
	"sync"
	"time"

	"github.com/denismitr/imgslot/internal/manipulator"
	"github.com/denismitr/imgslot/internal/media"
	"github.com/denismitr/imgslot/internal/reconciler"
	"github.com/denismitr/imgslot/internal/registry"
	"github.com/denismitr/imgslot/internal/settings"
	"github.com/denismitr/imgslot/internal/uploader"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var ErrBackOfficeError = errors.New("back office error")
var ErrResourceNotFound = errors.New("resource not found")
var ErrNoPreview = errors.New("there is no image waiting for confirmation")

type Transcoder interface {
	Transcode(src *media.SourceImage, p manipulator.Policy) (*media.TranscodeResult, error)
}

type Uploader interface {
	Upload(ctx context.Context, p uploader.Payload) (*uploader.Receipt, error)
}

type SlotState interface {
	Snapshot() reconciler.Snapshot
	Refresh(ctx context.Context) (*media.RemoteImageVersion, error)
}

// ImageService holds the operator session: the selected compression
// policy and the single preview waiting for confirmation.
type ImageService struct {
	transcoder Transcoder
	uploader   Uploader
	state      SlotState
	recent     registry.Recent
	provider   settings.Provider
	publicHost string
	logger     *logrus.Logger
	now        func() time.Time

	mu      sync.Mutex
	policy  manipulator.Policy
	preview *media.TranscodeResult
}

func NewImageService(
	t Transcoder,
	u Uploader,
	s SlotState,
	r registry.Recent,
	p settings.Provider,
	publicHost string,
	logger *logrus.Logger,
) *ImageService {
	return &ImageService{
		transcoder: t,
		uploader:   u,
		state:      s,
		recent:     r,
		provider:   p,
		publicHost: publicHost,
		logger:     logger,
		now:        time.Now,
		policy:     manipulator.DefaultPolicy(),
	}
}

func (is *ImageService) Policy() manipulator.Policy {
	is.mu.Lock()
	defer is.mu.Unlock()

	return is.policy
}

// SetPolicy changes the policy and re-transcodes the held source, if any.
// The returned preview is nil when nothing is waiting for confirmation.
func (is *ImageService) SetPolicy(p manipulator.Policy) (*media.TranscodeResult, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	is.mu.Lock()
	defer is.mu.Unlock()

	if is.preview == nil {
		is.policy = p
		return nil, nil
	}

	// the held preview and the reported policy must stay in step
	result, err := is.transcoder.Transcode(is.preview.Source, p)
	if err != nil {
		return nil, err
	}

	is.policy = p
	is.preview = result

	return result, nil
}

// Select validates a candidate and replaces the preview with its transcode.
// A rejected candidate leaves the current preview untouched.
func (is *ImageService) Select(src *media.SourceImage) (*media.TranscodeResult, error) {
	if err := media.ValidateCandidate(src.Mime, src.Size); err != nil {
		return nil, err
	}

	is.mu.Lock()
	defer is.mu.Unlock()

	result, err := is.transcoder.Transcode(src, is.policy)
	if err != nil {
		is.logger.WithField("name", src.Name).Warnf("could not process image: %v", err)
		return nil, err
	}

	is.preview = result

	is.logger.WithFields(logrus.Fields{
		"name":     src.Name,
		"original": media.FormatSize(int(src.Size)),
		"estimate": media.FormatSize(result.EstimatedSize),
		"policy":   is.policy.String(),
	}).Info("image ready for upload")

	return result, nil
}

func (is *ImageService) Preview() *media.TranscodeResult {
	is.mu.Lock()
	defer is.mu.Unlock()

	return is.preview
}

func (is *ImageService) Cancel() {
	is.mu.Lock()
	defer is.mu.Unlock()

	is.preview = nil
}

// Confirm uploads the preview. It is cleared only once the store accepted
// the write so a failed upload can be retried as is.
func (is *ImageService) Confirm(ctx context.Context) (*uploader.Receipt, error) {
	preview := is.Preview()
	if preview == nil {
		return nil, ErrNoPreview
	}

	receipt, err := is.uploader.Upload(ctx, uploader.Transcoded{Result: preview})
	if err != nil {
		return nil, err
	}

	is.mu.Lock()
	if is.preview == preview {
		is.preview = nil
	}
	is.mu.Unlock()

	return receipt, nil
}

func (is *ImageService) Reuse(ctx context.Context, id media.ID) (*uploader.Receipt, error) {
	recent, err := is.getRecent(ctx, id)
	if err != nil {
		return nil, err
	}

	return is.uploader.Upload(ctx, uploader.FromRecent(recent))
}

func (is *ImageService) getRecent(ctx context.Context, id media.ID) (*media.RecentUpload, error) {
	recent, err := is.recent.Get(ctx, id)
	if err != nil {
		if errors.Is(err, registry.ErrEntityNotFound) || errors.Is(err, registry.ErrInvalidID) {
			return nil, errors.Wrapf(ErrResourceNotFound, "%s", err.Error())
		}

		return nil, err
	}

	return recent, nil
}

func (is *ImageService) ListRecent(ctx context.Context) ([]media.RecentUpload, error) {
	return is.recent.List(ctx)
}

func (is *ImageService) ClearRecent(ctx context.Context) error {
	return is.recent.Clear(ctx)
}

func (is *ImageService) Current() reconciler.Snapshot {
	return is.state.Snapshot()
}

func (is *ImageService) Refresh(ctx context.Context) (reconciler.Snapshot, error) {
	if _, err := is.state.Refresh(ctx); err != nil {
		return is.state.Snapshot(), errors.Wrapf(ErrBackOfficeError, "could not load current image: %v", err)
	}

	return is.state.Snapshot(), nil
}

// CacheBustedURL appends the current time so browsers skip stale copies.
func (is *ImageService) CacheBustedURL(url string) string {
	if url == "" {
		return ""
	}

	return url + "?t=" + strconvMillis(is.now())
}

type SlotConfig struct {
	RepoPath   string `json:"repoPath"`
	Filename   string `json:"filename"`
	Ref        string `json:"ref"`
	PublicURL  string `json:"publicUrl,omitempty"`
	Configured bool   `json:"configured"`
}

// Config describes the slot without ever exposing the token.
func (is *ImageService) Config(ctx context.Context) (*SlotConfig, error) {
	creds, err := is.provider.Get(ctx)
	if err != nil {
		return nil, errors.Wrapf(ErrBackOfficeError, "could not read settings: %v", err)
	}

	cfg := &SlotConfig{
		RepoPath:   creds.RepoPath,
		Filename:   creds.Filename,
		Ref:        creds.Ref,
		Configured: creds.Validate() == nil,
	}

	if slot, err := creds.Slot(); err == nil {
		cfg.PublicURL = slot.PublicURL(is.publicHost)
	}

	return cfg, nil
}
