package entity

import (
	"time"
)

const EntityTypeMessage = "message"

// FileMetadata tracks every stored attachment object. EntityID is the id
// the message will get; Committed flips once the message row exists, so
// uncommitted rows past the grace period are orphans.
type FileMetadata struct {
	ID         string    `json:"id" firestore:"id" bson:"_id"`
	URL        string    `json:"url" firestore:"url" bson:"url"`
	ObjectName string    `json:"object_name" firestore:"objectName" bson:"objectName"`
	EntityType string    `json:"entity_type" firestore:"entityType" bson:"entityType"`
	EntityID   string    `json:"entity_id" firestore:"entityId" bson:"entityId"`
	UploadedBy string    `json:"uploaded_by" firestore:"uploadedBy" bson:"uploadedBy"`
	Filename   string    `json:"filename" firestore:"filename" bson:"filename"`
	FileType   string    `json:"file_type" firestore:"fileType" bson:"fileType"`
	FileSize   int64     `json:"file_size" firestore:"fileSize" bson:"fileSize"`
	Committed  bool      `json:"committed" firestore:"committed" bson:"committed"`
	CreatedAt  time.Time `json:"created_at" firestore:"createdAt" bson:"createdAt"`
	UpdatedAt  time.Time `json:"updated_at,omitempty" firestore:"updatedAt" bson:"updatedAt"`
}
