package settings

import (
	"context"
	"strings"

	"github.com/denismitr/goenv"
	"github.com/denismitr/imgslot/internal/media"
	"github.com/pkg/errors"
)

var ErrMissingToken = errors.New("access token is not configured")
var ErrMissingPath = errors.New("resource path is not configured")

// Credentials are everything the coordinator needs to address and write the slot.
type Credentials struct {
	Token    string
	RepoPath string
	Filename string
	Ref      string
}

// Validate reports missing credentials without inspecting their contents.
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.Token) == "" {
		return ErrMissingToken
	}

	if strings.TrimSpace(c.RepoPath) == "" {
		return ErrMissingPath
	}

	return nil
}

func (c Credentials) Slot() (media.Slot, error) {
	return media.NewSlot(c.RepoPath, c.Filename, c.Ref)
}

// Provider hands out the current credentials. Values may change between calls.
type Provider interface {
	Get(ctx context.Context) (Credentials, error)
}

// Static always returns the same credentials.
type Static Credentials

func (s Static) Get(context.Context) (Credentials, error) {
	return Credentials(s), nil
}

// EnvProvider re-reads the environment on every call so the token and
// resource path can be rotated without restarting the process.
type EnvProvider struct {
	TokenKey    string
	PathKey     string
	FilenameKey string
	RefKey      string
}

func NewEnvProvider() *EnvProvider {
	return &EnvProvider{
		TokenKey:    "GITHUB_TOKEN",
		PathKey:     "REPO_PATH",
		FilenameKey: "SLOT_FILENAME",
		RefKey:      "SLOT_REF",
	}
}

func (p *EnvProvider) Get(context.Context) (Credentials, error) {
	return Credentials{
		Token:    goenv.String(p.TokenKey),
		RepoPath: goenv.String(p.PathKey),
		Filename: strings.TrimSpace(goenv.StringOrDefault(p.FilenameKey, media.DefaultFilename)),
		Ref:      strings.TrimSpace(goenv.StringOrDefault(p.RefKey, "main")),
	}, nil
}
