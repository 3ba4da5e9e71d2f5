package mgoregistry

import (
	"testing"
	"time"

	"github.com/denismitr/imgslot/internal/media"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestMongoRegistry_recentMappers(t *testing.T) {
	strID := "5ff9dca506c37f6f5b95cd8a"
	id, _ := primitive.ObjectIDFromHex(strID)

	t.Run("new record is truncated to mongo precision in UTC", func(t *testing.T) {
		local := time.FixedZone("JST", 9*60*60)
		createdAt := time.Date(2024, 1, 15, 19, 30, 0, 123456789, local)

		record := newRecentRecord(id, []byte("jpeg"), "image/jpeg", 4, createdAt)

		assert.Equal(t, recentRecord{
			ID:        id,
			Content:   []byte("jpeg"),
			Mime:      "image/jpeg",
			Size:      4,
			CreatedAt: time.Date(2024, 1, 15, 10, 30, 0, 123000000, time.UTC),
		}, *record)
	})

	t.Run("map mongo records to recent uploads", func(t *testing.T) {
		now := time.Now().UTC()
		records := []recentRecord{
			{ID: id, Content: []byte("a"), Mime: "image/jpeg", Size: 1, CreatedAt: now},
		}

		uploads := mapMongoRecordsToRecentUploads(records)

		assert.Equal(t, []media.RecentUpload{
			{ID: media.ID(strID), Content: []byte("a"), Mime: "image/jpeg", Size: 1, CreatedAt: now},
		}, uploads)
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, mapMongoRecordsToRecentUploads(nil))
	})
}
