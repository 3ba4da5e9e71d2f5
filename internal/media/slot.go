package media

import (
	"strings"

	"github.com/pkg/errors"
)

var ErrInvalidSlot = errors.New("invalid resource slot")

const DefaultFilename = "image1.jpg"

// Slot is the single logical image address: one canonical filename
// in one owner/repo resource path.
type Slot struct {
	Path     string `json:"repoPath"`
	Filename string `json:"filename"`
	Ref      string `json:"ref,omitempty"`
}

func NewSlot(path, filename, ref string) (Slot, error) {
	if filename == "" {
		filename = DefaultFilename
	}

	s := Slot{Path: strings.Trim(strings.TrimSpace(path), "/"), Filename: filename, Ref: ref}
	if _, _, err := s.split(); err != nil {
		return Slot{}, err
	}

	return s, nil
}

func (s Slot) Owner() string {
	owner, _, _ := s.split()
	return owner
}

func (s Slot) Repo() string {
	_, repo, _ := s.split()
	return repo
}

func (s Slot) String() string {
	return s.Path + "/" + s.Filename
}

// PublicURL is the display-only read location {host}/{owner}/{repo}/{ref}/{filename}.
func (s Slot) PublicURL(host string) string {
	segments := []string{strings.TrimRight(host, "/"), s.Owner(), s.Repo()}
	if s.Ref != "" {
		segments = append(segments, s.Ref)
	}

	return strings.Join(append(segments, s.Filename), "/")
}

func (s Slot) split() (string, string, error) {
	segments := strings.Split(s.Path, "/")
	if len(segments) != 2 || segments[0] == "" || segments[1] == "" {
		return "", "", errors.Wrapf(ErrInvalidSlot, "resource path [%s] must look like owner/repo", s.Path)
	}

	return segments[0], segments[1], nil
}
