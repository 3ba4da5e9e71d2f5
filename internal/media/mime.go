package media

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var ErrUnsupportedInput = errors.New("unsupported input")
var ErrSizeLimit = errors.New("file too large")
var ErrInvalidDataURI = errors.New("invalid data uri")

// MaxSourceSize is the largest candidate file accepted, inclusive.
const MaxSourceSize = 20 * 1024 * 1024

const MimeJPEG = "image/jpeg"

type Disposition string

const (
	JPEG  Disposition = "jpeg"
	PNG   Disposition = "png"
	Other Disposition = "other"
)

var dispositions = map[string]Disposition{
	"image/jpeg": JPEG,
	"image/jpg":  JPEG,
	"image/png":  PNG,
}

func DispositionFromMime(mime string) Disposition {
	if d, ok := dispositions[normalizeMime(mime)]; ok {
		return d
	}

	return Other
}

// ValidateCandidate applies the input boundary checks a file has to pass before transcoding.
func ValidateCandidate(mime string, size int64) error {
	if !IsImageMime(mime) {
		return errors.Wrapf(ErrUnsupportedInput, "please select an image file, got [%s]", mime)
	}

	if size > MaxSourceSize {
		return errors.Wrapf(ErrSizeLimit, "%s exceeds the %s limit", FormatSize(int(size)), FormatSize(MaxSourceSize))
	}

	return nil
}

func IsImageMime(mime string) bool {
	return strings.HasPrefix(normalizeMime(mime), "image/")
}

func EncodeDataURI(mime string, content []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(content)
}

// DecodeDataURI accepts both a full data URI and a bare base64 payload,
// the latter being treated as JPEG.
func DecodeDataURI(uri string) (string, []byte, error) {
	mime := MimeJPEG
	payload := uri

	if strings.HasPrefix(uri, "data:") {
		segments := strings.SplitN(strings.TrimPrefix(uri, "data:"), ",", 2)
		if len(segments) != 2 || !strings.HasSuffix(segments[0], ";base64") {
			return "", nil, errors.Wrap(ErrInvalidDataURI, "expected data:<mime>;base64,<payload>")
		}

		mime = strings.TrimSuffix(segments[0], ";base64")
		payload = segments[1]
	}

	content, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, errors.Wrapf(ErrInvalidDataURI, "could not decode payload: %v", err)
	}

	return mime, content, nil
}

func FormatSize(bytes int) string {
	switch {
	case bytes < 1024:
		return fmt.Sprintf("%d B", bytes)
	case bytes < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(bytes)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(bytes)/(1024*1024))
	}
}

func normalizeMime(mime string) string {
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = mime[:i]
	}

	return strings.ToLower(strings.TrimSpace(mime))
}
