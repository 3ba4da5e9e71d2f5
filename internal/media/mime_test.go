package media

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCandidate(t *testing.T) {
	tt := []struct {
		mime string
		size int64
		err  error
	}{
		{mime: "image/png", size: 1024, err: nil},
		{mime: "image/jpeg", size: MaxSourceSize, err: nil},
		{mime: "image/webp", size: 0, err: nil},
		{mime: "IMAGE/PNG; charset=binary", size: 10, err: nil},
		{mime: "image/jpeg", size: MaxSourceSize + 1, err: ErrSizeLimit},
		{mime: "application/pdf", size: 10, err: ErrUnsupportedInput},
		{mime: "", size: 10, err: ErrUnsupportedInput},
		{mime: "text/plain", size: MaxSourceSize + 1, err: ErrUnsupportedInput},
	}

	for _, tc := range tt {
		t.Run(fmt.Sprintf("%s:%d", tc.mime, tc.size), func(t *testing.T) {
			err := ValidateCandidate(tc.mime, tc.size)
			if tc.err == nil {
				assert.NoError(t, err)
				return
			}

			assert.True(t, errors.Is(err, tc.err), "expected %v, got %v", tc.err, err)
		})
	}
}

func TestMaxSourceSize_IsTwentyMebibytes(t *testing.T) {
	assert.Equal(t, 20971520, MaxSourceSize)
}

func TestDispositionFromMime(t *testing.T) {
	assert.Equal(t, JPEG, DispositionFromMime("image/jpeg"))
	assert.Equal(t, JPEG, DispositionFromMime("image/jpg"))
	assert.Equal(t, PNG, DispositionFromMime("image/png"))
	assert.Equal(t, Other, DispositionFromMime("image/gif"))
	assert.Equal(t, Other, DispositionFromMime(""))
}

func TestDataURI(t *testing.T) {
	t.Run("full data uri round trip", func(t *testing.T) {
		uri := EncodeDataURI(MimeJPEG, []byte("jpeg-bytes"))
		assert.Equal(t, "data:image/jpeg;base64,anBlZy1ieXRlcw==", uri)

		mime, content, err := DecodeDataURI(uri)
		require.NoError(t, err)
		assert.Equal(t, MimeJPEG, mime)
		assert.Equal(t, []byte("jpeg-bytes"), content)
	})

	t.Run("bare payload defaults to jpeg", func(t *testing.T) {
		mime, content, err := DecodeDataURI("anBlZy1ieXRlcw==")
		require.NoError(t, err)
		assert.Equal(t, MimeJPEG, mime)
		assert.Equal(t, []byte("jpeg-bytes"), content)
	})

	t.Run("malformed header", func(t *testing.T) {
		_, _, err := DecodeDataURI("data:image/png,abc")
		assert.True(t, errors.Is(err, ErrInvalidDataURI))
	})

	t.Run("malformed payload", func(t *testing.T) {
		_, _, err := DecodeDataURI("data:image/png;base64,!!!")
		assert.True(t, errors.Is(err, ErrInvalidDataURI))
	})
}

func TestEstimateSize(t *testing.T) {
	// 10 bytes -> 16 base64 chars -> 12
	assert.Equal(t, 12, EstimateSize(make([]byte, 10)))
	assert.Equal(t, 12, EstimateSize(make([]byte, 12)))
	assert.Equal(t, 0, EstimateSize(nil))
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", FormatSize(512))
	assert.Equal(t, "1.5 KB", FormatSize(1536))
	assert.Equal(t, "20.0 MB", FormatSize(MaxSourceSize))
}
