package manipulator

import (
	"image/color"
	"time"

	"github.com/denismitr/imgslot/internal/media"
	"github.com/denismitr/imgslot/internal/metrics"
	"github.com/disintegration/imaging"
)

// maximum distance into image to look for EXIF tags
const maxExifSize = 1 << 20

// MaxDimension is the largest edge an output image may have.
const MaxDimension = 2048

// MaxPixels bounds the decoded size of a source image.
const MaxPixels = 100_000_000

type Config struct {
	MaxDimension int
	MaxPixels    int64
	Filter       imaging.ResampleFilter
	// Background fills the canvas under transparent source pixels
	Background color.Color
}

func DefaultConfig() *Config {
	return &Config{
		MaxDimension: MaxDimension,
		MaxPixels:    MaxPixels,
		Filter:       imaging.Lanczos,
		Background:   color.Black,
	}
}

type Manipulator struct {
	transcoder *transcoder
}

func New(cfg *Config) *Manipulator {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	if cfg.MaxDimension <= 0 {
		cfg.MaxDimension = MaxDimension
	}

	if cfg.MaxPixels <= 0 {
		cfg.MaxPixels = MaxPixels
	}

	if cfg.Background == nil {
		cfg.Background = color.Black
	}

	if cfg.Filter.Support == 0 && cfg.Filter.Kernel == nil {
		cfg.Filter = imaging.Lanczos
	}

	return &Manipulator{transcoder: newTranscoder(cfg)}
}

// Transcode decodes the source, scales it down to fit the configured
// bounding box and re-encodes it as JPEG at the quality of the policy.
func (m *Manipulator) Transcode(src *media.SourceImage, p Policy) (*media.TranscodeResult, error) {
	started := time.Now()

	result, err := m.transcoder.transcode(src, p)
	if err != nil {
		metrics.RecordTranscode(dispositionLabel(src), "error", started)
		return nil, err
	}

	metrics.RecordTranscode(dispositionLabel(src), "ok", started)
	metrics.RecordOutput(result.EstimatedSize)

	return result, nil
}

func dispositionLabel(src *media.SourceImage) string {
	if src == nil {
		return string(media.Other)
	}

	return string(src.Disposition)
}
