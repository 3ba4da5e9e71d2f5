package media

import (
	"encoding/base64"
	"math"
	"time"
)

type ID string

func (id ID) String() string {
	return string(id)
}

func (id ID) None() bool {
	return id == ""
}

type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// SourceImage is a candidate file exactly as the operator supplied it.
// It is never mutated; re-transcoding on a policy change starts from it again.
type SourceImage struct {
	Name        string      `json:"name"`
	Content     []byte      `json:"-"`
	Mime        string      `json:"mime"`
	Disposition Disposition `json:"disposition"`
	Size        int64       `json:"size"`
}

func NewSourceImage(name, mime string, content []byte) *SourceImage {
	return &SourceImage{
		Name:        name,
		Content:     content,
		Mime:        mime,
		Disposition: DispositionFromMime(mime),
		Size:        int64(len(content)),
	}
}

type TranscodeResult struct {
	Content             []byte      `json:"-"`
	Mime                string      `json:"mime"`
	OriginalDimensions  Dimensions  `json:"originalDimensions"`
	Dimensions          Dimensions  `json:"dimensions"`
	EstimatedSize       int         `json:"estimatedSize"`
	Quality             float64     `json:"quality"`
	OriginalDisposition Disposition `json:"originalDisposition"`
	OutputDisposition   Disposition `json:"outputDisposition"`
	OriginalSize        int64       `json:"originalSize"`

	// Source is kept only to allow re-transcoding when the policy changes
	Source *SourceImage `json:"-"`
}

// DataURI renders the encoded output in the portable data URI form.
func (r *TranscodeResult) DataURI() string {
	return EncodeDataURI(r.Mime, r.Content)
}

// RemoteImageVersion is the authoritative state of the slot as last read from the store.
type RemoteImageVersion struct {
	Token     string    `json:"sha"`
	Size      int64     `json:"size"`
	ReadURL   string    `json:"url"`
	Path      string    `json:"path"`
	FetchedAt time.Time `json:"fetchedAt"`
}

type Origin string

const (
	Transcoded Origin = "transcoded"
	Reused     Origin = "reused"
)

// PendingUpload masks the stale RemoteImageVersion between a successful
// write and the confirmation re-read.
type PendingUpload struct {
	Content   []byte    `json:"-"`
	Mime      string    `json:"mime"`
	Size      int       `json:"size"`
	Origin    Origin    `json:"origin"`
	WrittenAt time.Time `json:"writtenAt"`
}

func (p *PendingUpload) DataURI() string {
	return EncodeDataURI(p.Mime, p.Content)
}

type RecentUpload struct {
	ID        ID        `json:"id"`
	Content   []byte    `json:"-"`
	Mime      string    `json:"mime"`
	Size      int       `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
}

func (r *RecentUpload) DataURI() string {
	return EncodeDataURI(r.Mime, r.Content)
}

// EstimateSize derives the byte length of a payload from the length of its
// base64 text form, the inverse of the 4:3 expansion.
func EstimateSize(content []byte) int {
	encodedLen := base64.StdEncoding.EncodedLen(len(content))
	return int(math.Round(float64(encodedLen) * 0.75))
}
