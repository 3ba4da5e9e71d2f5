package media

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSlot(t *testing.T) {
	t.Run("valid resource path", func(t *testing.T) {
		s, err := NewSlot(" /octocat/vrc-images/ ", "", "main")
		require.NoError(t, err)

		assert.Equal(t, "octocat", s.Owner())
		assert.Equal(t, "vrc-images", s.Repo())
		assert.Equal(t, DefaultFilename, s.Filename)
		assert.Equal(t, "octocat/vrc-images/image1.jpg", s.String())
	})

	invalid := []string{"", "octocat", "octocat/", "a/b/c", "/repo"}
	for _, p := range invalid {
		t.Run("invalid "+p, func(t *testing.T) {
			_, err := NewSlot(p, "image1.jpg", "")
			assert.True(t, errors.Is(err, ErrInvalidSlot))
		})
	}
}

func TestSlot_PublicURL(t *testing.T) {
	s, err := NewSlot("octocat/vrc-images", "image1.jpg", "main")
	require.NoError(t, err)

	assert.Equal(t,
		"https://raw.githubusercontent.com/octocat/vrc-images/main/image1.jpg",
		s.PublicURL("https://raw.githubusercontent.com/"),
	)

	s.Ref = ""
	assert.Equal(t, "https://cdn.example.com/octocat/vrc-images/image1.jpg", s.PublicURL("https://cdn.example.com"))
}
