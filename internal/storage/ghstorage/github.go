package ghstorage

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/denismitr/imgslot/internal/media"
	"github.com/denismitr/imgslot/internal/storage"
	"github.com/google/go-github/v66/github"
	"github.com/pkg/errors"
)

const DefaultPublicHost = "https://raw.githubusercontent.com"

type Config struct {
	// APIURL overrides https://api.github.com/, used for GitHub Enterprise and tests
	APIURL     string
	PublicHost string
	Timeout    time.Duration
}

// RemoteStorage keeps the slot as a file in a GitHub repository through the contents API.
type RemoteStorage struct {
	cfg    Config
	client *github.Client
}

func New(token string, cfg Config) (*RemoteStorage, error) {
	if cfg.PublicHost == "" {
		cfg.PublicHost = DefaultPublicHost
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}

	client := github.NewClient(&http.Client{Timeout: cfg.Timeout})
	if token != "" {
		client = client.WithAuthToken(token)
	}

	if cfg.APIURL != "" {
		baseURL, err := url.Parse(strings.TrimRight(cfg.APIURL, "/") + "/")
		if err != nil {
			return nil, errors.Wrapf(storage.ErrStorageFailed, "invalid github api url %s: %v", cfg.APIURL, err)
		}

		client.BaseURL = baseURL
	}

	return &RemoteStorage{cfg: cfg, client: client}, nil
}

func NewOpener(cfg Config) storage.OpenerFunc {
	return func(token string) (storage.Storage, error) {
		return New(token, cfg)
	}
}

func (rs *RemoteStorage) Stat(ctx context.Context, slot media.Slot) (*media.RemoteImageVersion, error) {
	var opts *github.RepositoryContentGetOptions
	if slot.Ref != "" {
		opts = &github.RepositoryContentGetOptions{Ref: slot.Ref}
	}

	file, _, resp, err := rs.client.Repositories.GetContents(ctx, slot.Owner(), slot.Repo(), slot.Filename, opts)
	if err != nil {
		return nil, mapError(err, resp, "could not read %s", slot.String())
	}

	if file == nil {
		return nil, errors.Wrapf(storage.ErrStorageFailed, "%s is a directory", slot.String())
	}

	return &media.RemoteImageVersion{
		Token:     file.GetSHA(),
		Size:      int64(file.GetSize()),
		ReadURL:   slot.PublicURL(rs.cfg.PublicHost),
		Path:      slot.String(),
		FetchedAt: time.Now(),
	}, nil
}

func (rs *RemoteStorage) Put(
	ctx context.Context,
	slot media.Slot,
	content []byte,
	comment, token string,
) (*storage.Item, error) {
	opts := &github.RepositoryContentFileOptions{
		Message: github.String(comment),
		Content: content,
	}

	if token != "" {
		opts.SHA = github.String(token)
	}

	if slot.Ref != "" {
		opts.Branch = github.String(slot.Ref)
	}

	result, resp, err := rs.client.Repositories.UpdateFile(ctx, slot.Owner(), slot.Repo(), slot.Filename, opts)
	if err != nil {
		return nil, mapError(err, resp, "could not write %s", slot.String())
	}

	item := &storage.Item{
		Path:      slot.String(),
		URL:       slot.PublicURL(rs.cfg.PublicHost),
		CommitSHA: result.Commit.GetSHA(),
		Size:      int64(len(content)),
	}

	if result.Content != nil {
		item.Token = result.Content.GetSHA()
	}

	return item, nil
}

// mapError keeps the message of the store so it can be shown to the operator.
func mapError(err error, resp *github.Response, format string, args ...interface{}) error {
	message := err.Error()

	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Message != "" {
		message = ghErr.Message
	}

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}

	var target error
	switch status {
	case http.StatusNotFound:
		target = storage.ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		target = storage.ErrUnauthorized
	case http.StatusConflict, http.StatusUnprocessableEntity:
		target = storage.ErrConflict
	default:
		target = storage.ErrStorageFailed
	}

	return errors.Wrapf(target, format+": %s", append(args, message)...)
}
