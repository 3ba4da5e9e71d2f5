package mgoregistry

import (
	"time"

	"github.com/denismitr/imgslot/internal/media"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type recentRecord struct {
	ID        primitive.ObjectID `bson:"_id"`
	Content   []byte             `bson:"content"`
	Mime      string             `bson:"mime"`
	Size      int                `bson:"size"`
	CreatedAt time.Time          `bson:"createdAt"`
}

func newRecentRecord(id primitive.ObjectID, content []byte, mime string, size int, createdAt time.Time) *recentRecord {
	return &recentRecord{
		ID:        id,
		Content:   content,
		Mime:      mime,
		Size:      size,
		CreatedAt: createdAt.UTC().Truncate(time.Millisecond),
	}
}

func mapMongoRecordToRecentUpload(r *recentRecord) media.RecentUpload {
	return media.RecentUpload{
		ID:        media.ID(r.ID.Hex()),
		Content:   r.Content,
		Mime:      r.Mime,
		Size:      r.Size,
		CreatedAt: r.CreatedAt,
	}
}

func mapMongoRecordsToRecentUploads(records []recentRecord) []media.RecentUpload {
	uploads := make([]media.RecentUpload, 0, len(records))
	for i := range records {
		uploads = append(uploads, mapMongoRecordToRecentUpload(&records[i]))
	}

	return uploads
}
