package reconciler

import (
	"context"
	"sync"
	"time"

	"github.com/denismitr/imgslot/internal/media"
	"github.com/denismitr/imgslot/internal/metrics"
	"github.com/sirupsen/logrus"
)

type State string

const (
	Idle    State = "idle"
	Pending State = "pending"
)

const (
	// UploadDelay covers the lag of the public read path after a fresh write.
	UploadDelay = 10 * time.Second
	// ReuseDelay is shorter since the bytes were published before.
	ReuseDelay = 3 * time.Second
)

// DelayFor picks the confirmation delay for an upload of the given origin.
func DelayFor(origin media.Origin) time.Duration {
	if origin == media.Reused {
		return ReuseDelay
	}

	return UploadDelay
}

type Config struct {
	FetchTimeout time.Duration
	Schedule     Scheduler
}

type Snapshot struct {
	State     State                     `json:"state"`
	Epoch     uint64                    `json:"epoch"`
	Pending   *media.PendingUpload      `json:"pending,omitempty"`
	Current   *media.RemoteImageVersion `json:"current,omitempty"`
	LastError string                    `json:"lastError,omitempty"`
}

// Reconciler owns the displayed state of the slot. After a write it masks
// the stale remote version with a PendingUpload until a delayed re-read
// confirms the new version. Every Begin and Refresh bumps the epoch, and
// a timer only acts when the epoch it was armed with is still current.
type Reconciler struct {
	cfg     Config
	fetcher Fetcher
	logger  *logrus.Logger

	mu      sync.Mutex
	epoch   uint64
	state   State
	pending *media.PendingUpload
	current *media.RemoteImageVersion
	lastErr error
	timer   Timer
	idle    chan struct{}
}

func New(cfg Config, fetcher Fetcher, logger *logrus.Logger) *Reconciler {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}

	if cfg.Schedule == nil {
		cfg.Schedule = afterFunc
	}

	return &Reconciler{
		cfg:     cfg,
		fetcher: fetcher,
		logger:  logger,
		state:   Idle,
	}
}

// Begin enters Pending with the given upload and arms the confirmation
// re-read. Any earlier timer is superseded.
func (r *Reconciler) Begin(pending media.PendingUpload, delay time.Duration) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.epoch++
	epoch := r.epoch

	if r.timer != nil {
		r.timer.Stop()
	}

	if r.state != Pending {
		r.idle = make(chan struct{})
	}

	r.state = Pending
	r.pending = &pending
	r.timer = r.cfg.Schedule(delay, func() { r.fire(epoch) })

	r.logger.WithFields(logrus.Fields{
		"epoch":  epoch,
		"origin": pending.Origin,
		"size":   media.FormatSize(pending.Size),
		"delay":  delay,
	}).Info("slot write pending confirmation")

	return epoch
}

func (r *Reconciler) fire(epoch uint64) {
	r.mu.Lock()
	if epoch != r.epoch || r.state != Pending {
		r.mu.Unlock()
		metrics.RecordReconcile("timer", "stale")
		return
	}
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.FetchTimeout)
	defer cancel()

	version, err := r.fetcher.Fetch(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()

	// a manual refresh or a newer write took over while fetching
	if epoch != r.epoch {
		metrics.RecordReconcile("timer", "stale")
		return
	}

	if err != nil {
		r.lastErr = err
		r.logger.WithField("epoch", epoch).Errorf("could not confirm slot write: %v", err)
		metrics.RecordReconcile("timer", "error")
	} else {
		r.current = version
		r.lastErr = nil
		metrics.RecordReconcile("timer", "ok")
	}

	r.toIdle()
}

// Refresh re-reads the slot right away. It is always accepted: a pending
// upload is dropped at once and outstanding timers become no-ops.
func (r *Reconciler) Refresh(ctx context.Context) (*media.RemoteImageVersion, error) {
	r.mu.Lock()
	r.epoch++
	epoch := r.epoch
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.toIdle()
	r.mu.Unlock()

	version, err := r.fetcher.Fetch(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()

	// a write that started while fetching owns the state from now on
	if err != nil {
		if epoch == r.epoch {
			r.lastErr = err
		}

		metrics.RecordReconcile("manual", "error")
		return nil, err
	}

	if epoch == r.epoch {
		r.current = version
		r.lastErr = nil
	}

	metrics.RecordReconcile("manual", "ok")

	return version, nil
}

func (r *Reconciler) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Snapshot{
		State:   r.state,
		Epoch:   r.epoch,
		Pending: r.pending,
		Current: r.current,
	}

	if r.lastErr != nil {
		s.LastError = r.lastErr.Error()
	}

	return s
}

// WaitIdle blocks until the reconciler leaves Pending or ctx is done.
func (r *Reconciler) WaitIdle(ctx context.Context) (Snapshot, error) {
	r.mu.Lock()
	ch := r.idle
	pending := r.state == Pending
	r.mu.Unlock()

	if pending {
		select {
		case <-ch:
		case <-ctx.Done():
			return r.Snapshot(), ctx.Err()
		}
	}

	return r.Snapshot(), nil
}

// Stop disarms the outstanding timer, if any.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

// toIdle must be called with mu held.
func (r *Reconciler) toIdle() {
	if r.state == Pending && r.idle != nil {
		close(r.idle)
	}

	r.state = Idle
	r.pending = nil
	r.timer = nil
}
