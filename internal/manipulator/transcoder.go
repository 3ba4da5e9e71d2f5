package manipulator

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"

	"github.com/denismitr/imgslot/internal/media"
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/webp"
)

type transcoder struct {
	cfg *Config
}

func newTranscoder(cfg *Config) *transcoder {
	return &transcoder{cfg: cfg}
}

func (tc *transcoder) transcode(src *media.SourceImage, p Policy) (*media.TranscodeResult, error) {
	if src == nil || !media.IsImageMime(src.Mime) {
		return nil, errors.Wrap(media.ErrUnsupportedInput, "source has no image mime type")
	}

	if src.Size > media.MaxSourceSize {
		return nil, errors.Wrapf(media.ErrSizeLimit, "source is %s", media.FormatSize(int(src.Size)))
	}

	img, err := tc.decode(src.Content)
	if err != nil {
		return nil, err
	}

	original := media.Dimensions{Width: img.Bounds().Dx(), Height: img.Bounds().Dy()}
	target := targetDimensions(original, tc.cfg.MaxDimension)

	canvas := tc.draw(img, original, target)

	// every output is JPEG, lossless PNG input included
	quality := Quality(p)
	buf := &bytes.Buffer{}
	if err := imaging.Encode(buf, canvas, imaging.JPEG, imaging.JPEGQuality(JPEGQuality(p))); err != nil {
		return nil, errors.Wrapf(ErrTranscodeFailed, "could not encode jpeg: %v", err)
	}

	content := buf.Bytes()

	return &media.TranscodeResult{
		Content:             content,
		Mime:                media.MimeJPEG,
		OriginalDimensions:  original,
		Dimensions:          target,
		EstimatedSize:       media.EstimateSize(content),
		Quality:             quality,
		OriginalDisposition: src.Disposition,
		OutputDisposition:   media.JPEG,
		OriginalSize:        src.Size,
		Source:              src,
	}, nil
}

func (tc *transcoder) decode(content []byte) (image.Image, error) {
	// the header is checked first, a small file may declare a huge canvas
	header, _, err := image.DecodeConfig(bytes.NewReader(content))
	if err != nil {
		return nil, errors.Wrap(ErrBadImage, err.Error())
	}

	if int64(header.Width)*int64(header.Height) > tc.cfg.MaxPixels {
		return nil, errors.Wrapf(
			ErrBadImage,
			"%dx%d exceeds the limit of %d pixels", header.Width, header.Height, tc.cfg.MaxPixels,
		)
	}

	img, format, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, errors.Wrap(ErrBadImage, err.Error())
	}

	if format == "jpeg" || format == "tiff" {
		lr := io.LimitReader(bytes.NewReader(content), maxExifSize)
		img = applyOrientation(img, readOrientation(lr))
	}

	return img, nil
}

// draw paints the (possibly scaled) source onto an opaque canvas of the target size.
func (tc *transcoder) draw(img image.Image, original, target media.Dimensions) image.Image {
	if target != original {
		img = imaging.Resize(img, target.Width, target.Height, tc.cfg.Filter)
	}

	canvas := imaging.New(target.Width, target.Height, tc.cfg.Background)

	return imaging.Overlay(canvas, img, image.Pt(0, 0), 1.0)
}

// targetDimensions scales both axes by min(bound/w, bound/h) when either one
// exceeds bound. Smaller images are never touched.
func targetDimensions(d media.Dimensions, bound int) media.Dimensions {
	if d.Width <= bound && d.Height <= bound {
		return d
	}

	wRatio := float64(bound) / float64(d.Width)
	hRatio := float64(bound) / float64(d.Height)

	if wRatio <= hRatio {
		return media.Dimensions{Width: bound, Height: scaleDown(d.Height, wRatio)}
	}

	return media.Dimensions{Width: scaleDown(d.Width, hRatio), Height: bound}
}

func scaleDown(pixels int, ratio float64) int {
	scaled := int(math.Floor(float64(pixels) * ratio))
	if scaled < 1 {
		return 1
	}

	if scaled > pixels {
		return pixels
	}

	return scaled
}

// Exif Orientation Tag values
// http://sylvana.net/jpegcrop/exif_orientation.html
const (
	topLeftSide     = 1
	topRightSide    = 2
	bottomRightSide = 3
	bottomLeftSide  = 4
	leftSideTop     = 5
	rightSideTop    = 6
	rightSideBottom = 7
	leftSideBottom  = 8
)

func readOrientation(r io.Reader) int {
	exf, err := exif.Decode(r)
	if err != nil {
		return topLeftSide
	}

	tag, err := exf.Get(exif.Orientation)
	if err != nil {
		return topLeftSide
	}

	orient, err := tag.Int(0)
	if err != nil {
		return topLeftSide
	}

	return orient
}

func applyOrientation(img image.Image, orient int) image.Image {
	switch orient {
	case topRightSide:
		return imaging.FlipH(img)
	case bottomRightSide:
		return imaging.Rotate180(img)
	case bottomLeftSide:
		return imaging.FlipV(img)
	case leftSideTop:
		return imaging.Transpose(img)
	case rightSideTop:
		return imaging.Rotate270(img)
	case rightSideBottom:
		return imaging.Transverse(img)
	case leftSideBottom:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
