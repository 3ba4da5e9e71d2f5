package uploader

import (
	"github.com/denismitr/imgslot/internal/media"
)

// Payload is what gets written into the slot: either a fresh transcode
// result or the already encoded bytes of a recent upload.
type Payload interface {
	Bytes() []byte
	ContentType() string
	Origin() media.Origin
}

// RawBytes re-publishes previously encoded content without touching it.
type RawBytes struct {
	Content []byte
	Mime    string
}

func FromRecent(r *media.RecentUpload) RawBytes {
	return RawBytes{Content: r.Content, Mime: r.Mime}
}

func (p RawBytes) Bytes() []byte {
	return p.Content
}

func (p RawBytes) ContentType() string {
	if p.Mime == "" {
		return media.MimeJPEG
	}

	return p.Mime
}

func (p RawBytes) Origin() media.Origin {
	return media.Reused
}

// Transcoded publishes the output of the transcoder.
type Transcoded struct {
	Result *media.TranscodeResult
}

func (p Transcoded) Bytes() []byte {
	if p.Result == nil {
		return nil
	}

	return p.Result.Content
}

func (p Transcoded) ContentType() string {
	return media.MimeJPEG
}

func (p Transcoded) Origin() media.Origin {
	return media.Transcoded
}
