package manipulator

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
	"testing"

	"github.com/denismitr/imgslot/internal/media"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_targetDimensions(t *testing.T) {
	tt := []struct {
		in       media.Dimensions
		expected media.Dimensions
	}{
		{in: media.Dimensions{Width: 4000, Height: 3000}, expected: media.Dimensions{Width: 2048, Height: 1536}},
		{in: media.Dimensions{Width: 3000, Height: 4000}, expected: media.Dimensions{Width: 1536, Height: 2048}},
		{in: media.Dimensions{Width: 4096, Height: 4096}, expected: media.Dimensions{Width: 2048, Height: 2048}},
		{in: media.Dimensions{Width: 5000, Height: 2049}, expected: media.Dimensions{Width: 2048, Height: 839}},
		{in: media.Dimensions{Width: 2049, Height: 10}, expected: media.Dimensions{Width: 2048, Height: 9}},
		{in: media.Dimensions{Width: 10000, Height: 1}, expected: media.Dimensions{Width: 2048, Height: 1}},
		{in: media.Dimensions{Width: 2048, Height: 2048}, expected: media.Dimensions{Width: 2048, Height: 2048}},
		{in: media.Dimensions{Width: 2048, Height: 100}, expected: media.Dimensions{Width: 2048, Height: 100}},
		{in: media.Dimensions{Width: 640, Height: 480}, expected: media.Dimensions{Width: 640, Height: 480}},
		{in: media.Dimensions{Width: 1, Height: 1}, expected: media.Dimensions{Width: 1, Height: 1}},
	}

	for _, tc := range tt {
		t.Run(fmt.Sprintf("%dx%d", tc.in.Width, tc.in.Height), func(t *testing.T) {
			out := targetDimensions(tc.in, MaxDimension)
			assert.Equal(t, tc.expected, out)
			assert.LessOrEqual(t, out.Width, MaxDimension)
			assert.LessOrEqual(t, out.Height, MaxDimension)
		})
	}
}

func TestManipulator_Transcode_LargePNG(t *testing.T) {
	if testing.Short() {
		t.Skip("decodes a 4000x3000 image")
	}

	m := New(nil)
	src := media.NewSourceImage("big.png", "image/png", encodePNG(t, uniformImage(4000, 3000)))

	result, err := m.Transcode(src, PresetPolicy(Medium))
	require.NoError(t, err)

	assert.Equal(t, media.Dimensions{Width: 4000, Height: 3000}, result.OriginalDimensions)
	assert.Equal(t, media.Dimensions{Width: 2048, Height: 1536}, result.Dimensions)
	assert.Equal(t, media.JPEG, result.OutputDisposition)
	assert.Equal(t, media.PNG, result.OriginalDisposition)
	assert.Equal(t, 0.70, result.Quality)
	assert.Equal(t, media.MimeJPEG, result.Mime)
	assertJPEGOf(t, result.Content, 2048, 1536)
}

func TestManipulator_Transcode_KeepsSmallDimensions(t *testing.T) {
	m := New(nil)

	for _, tc := range []struct{ w, h int }{{800, 400}, {2048, 2048}, {1, 2048}, {333, 17}} {
		t.Run(fmt.Sprintf("%dx%d", tc.w, tc.h), func(t *testing.T) {
			src := media.NewSourceImage("in.jpg", "image/jpeg", encodeJPEG(t, photoImage(tc.w, tc.h), 95))

			result, err := m.Transcode(src, Lossless())
			require.NoError(t, err)

			assert.Equal(t, media.Dimensions{Width: tc.w, Height: tc.h}, result.Dimensions)
			assert.Equal(t, result.OriginalDimensions, result.Dimensions)
			assert.Equal(t, media.JPEG, result.OriginalDisposition)
			assert.Equal(t, 1.0, result.Quality)
			assertJPEGOf(t, result.Content, tc.w, tc.h)
		})
	}
}

func TestManipulator_Transcode_IsIdempotentOnDimensions(t *testing.T) {
	m := New(nil)
	src := media.NewSourceImage("wide.png", "image/png", encodePNG(t, photoImage(2500, 900)))

	first, err := m.Transcode(src, Manual(0.42))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		again, err := m.Transcode(first.Source, Manual(0.42))
		require.NoError(t, err)
		assert.Equal(t, first.Dimensions, again.Dimensions)
	}

	assert.Equal(t, media.Dimensions{Width: 2048, Height: 737}, first.Dimensions)
}

func TestManipulator_Transcode_LowerQualityIsSmaller(t *testing.T) {
	m := New(nil)
	src := media.NewSourceImage("photo.png", "image/png", encodePNG(t, photoImage(640, 480)))

	sizes := make(map[Tier]int)
	for _, tier := range []Tier{Low, Medium, High} {
		result, err := m.Transcode(src, PresetPolicy(tier))
		require.NoError(t, err)
		sizes[tier] = result.EstimatedSize
	}

	assert.Less(t, sizes[Low], sizes[Medium])
	assert.Less(t, sizes[Medium], sizes[High])

	manualLow, err := m.Transcode(src, Manual(0.2))
	require.NoError(t, err)
	manualHigh, err := m.Transcode(src, Manual(0.95))
	require.NoError(t, err)
	assert.Less(t, manualLow.EstimatedSize, manualHigh.EstimatedSize)
}

func TestManipulator_Transcode_EstimatedSize(t *testing.T) {
	m := New(nil)
	src := media.NewSourceImage("small.png", "image/png", encodePNG(t, photoImage(64, 48)))

	result, err := m.Transcode(src, DefaultPolicy())
	require.NoError(t, err)

	// the analytical estimate may only exceed the real length by base64 padding
	assert.GreaterOrEqual(t, result.EstimatedSize, len(result.Content))
	assert.LessOrEqual(t, result.EstimatedSize, len(result.Content)+2)
	assert.Equal(t, "data:image/jpeg;base64,", result.DataURI()[:23])
}

func TestManipulator_Transcode_Errors(t *testing.T) {
	m := New(nil)

	t.Run("not an image", func(t *testing.T) {
		_, err := m.Transcode(media.NewSourceImage("a.jpg", "image/jpeg", []byte("not an image")), DefaultPolicy())
		assert.True(t, errors.Is(err, ErrBadImage))
	})

	t.Run("missing mime", func(t *testing.T) {
		_, err := m.Transcode(media.NewSourceImage("a", "", encodePNG(t, uniformImage(2, 2))), DefaultPolicy())
		assert.True(t, errors.Is(err, media.ErrUnsupportedInput))
	})

	t.Run("nil source", func(t *testing.T) {
		_, err := m.Transcode(nil, DefaultPolicy())
		assert.True(t, errors.Is(err, media.ErrUnsupportedInput))
	})

	t.Run("too large", func(t *testing.T) {
		src := &media.SourceImage{Mime: "image/png", Size: media.MaxSourceSize + 1}
		_, err := m.Transcode(src, DefaultPolicy())
		assert.True(t, errors.Is(err, media.ErrSizeLimit))
	})

	t.Run("declared canvas above the pixel limit", func(t *testing.T) {
		content := pngHeader(12000, 12000)
		require.Less(t, len(content), 100)

		_, err := m.Transcode(media.NewSourceImage("bomb.png", "image/png", content), DefaultPolicy())
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrBadImage))
		assert.Contains(t, err.Error(), "12000x12000")
	})
}

func TestManipulator_Transcode_MaxPixels(t *testing.T) {
	m := New(&Config{MaxPixels: 100})
	content := encodePNG(t, uniformImage(10, 10))

	t.Run("at the limit", func(t *testing.T) {
		result, err := m.Transcode(media.NewSourceImage("a.png", "image/png", content), DefaultPolicy())
		require.NoError(t, err)
		assert.Equal(t, media.Dimensions{Width: 10, Height: 10}, result.Dimensions)
	})

	t.Run("one pixel over", func(t *testing.T) {
		content := encodePNG(t, uniformImage(11, 10))

		_, err := m.Transcode(media.NewSourceImage("a.png", "image/png", content), DefaultPolicy())
		assert.True(t, errors.Is(err, ErrBadImage))
	})

	t.Run("defaults", func(t *testing.T) {
		assert.Equal(t, int64(MaxPixels), New(&Config{}).transcoder.cfg.MaxPixels)
	})
}

// pngHeader is a PNG signature followed by a lone IHDR chunk declaring a
// grayscale canvas of the given size, enough for image.DecodeConfig.
func pngHeader(w, h uint32) []byte {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], w)
	binary.BigEndian.PutUint32(ihdr[4:8], h)
	ihdr[8] = 8 // bit depth, color type 0, compression, filter and interlace stay 0

	buf := &bytes.Buffer{}
	buf.WriteString("\x89PNG\r\n\x1a\n")

	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(ihdr)))
	buf.Write(length)

	chunk := append([]byte("IHDR"), ihdr...)
	buf.Write(chunk)

	crc := make([]byte, 4)
	binary.BigEndian.PutUint32(crc, crc32.ChecksumIEEE(chunk))
	buf.Write(crc)

	return buf.Bytes()
}

func Test_applyOrientation(t *testing.T) {
	img := uniformImage(30, 10)

	for orient := 1; orient <= 8; orient++ {
		t.Run(fmt.Sprintf("orientation %d", orient), func(t *testing.T) {
			out := applyOrientation(img, orient)
			if orient >= leftSideTop {
				assert.Equal(t, image.Rect(0, 0, 10, 30), out.Bounds())
			} else {
				assert.Equal(t, image.Rect(0, 0, 30, 10), out.Bounds())
			}
		})
	}
}

func assertJPEGOf(t *testing.T, content []byte, w, h int) {
	t.Helper()

	cfg, format, err := image.DecodeConfig(bytes.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, w, cfg.Width)
	assert.Equal(t, h, cfg.Height)
}

func uniformImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 40, 120, 200, 255
	}

	return img
}

// photoImage approximates a photograph: smooth gradients plus sensor-like noise.
func photoImage(w, h int) *image.NRGBA {
	rnd := rand.New(rand.NewSource(42))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			noise := rnd.Intn(48) - 24
			img.SetNRGBA(x, y, color.NRGBA{
				R: channel(x*255/max(w, 1) + noise),
				G: channel(y*255/max(h, 1) + noise),
				B: channel((x+y)*127/max(w+h, 1) + 64 + noise),
				A: 255,
			})
		}
	}

	return img
}

func channel(v int) uint8 {
	if v < 0 {
		return 0
	}

	if v > 255 {
		return 255
	}

	return uint8(v)
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()

	buf := &bytes.Buffer{}
	require.NoError(t, png.Encode(buf, img))

	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image, quality int) []byte {
	t.Helper()

	buf := &bytes.Buffer{}
	require.NoError(t, jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}))

	return buf.Bytes()
}
