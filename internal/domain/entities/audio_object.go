package entities

import (
	"time"

	"github.com/google/uuid"
)

// AudioObject represents one stored blob of audio: either a live chunk
// captured during a call session (is_final=false) or the merged final
// recording of a session (is_final=true). Chunks are immutable after
// creation and are only ever deleted by the post-processing pipeline.
type AudioObject struct {
	ID          uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	SessionID   string     `json:"session_id" gorm:"type:varchar(64);not null;index"`
	MeetingID   *uuid.UUID `json:"meeting_id,omitempty" gorm:"type:uuid;index"`
	ObjectKey   string     `json:"object_key" gorm:"type:text;not null"`
	Role        Role       `json:"role" gorm:"type:varchar(20);not null;default:'candidate'"`
	DurationSec *float64   `json:"duration_sec,omitempty"`
	SizeBytes   int64      `json:"size_bytes" gorm:"not null"`
	IsFinal     bool       `json:"is_final" gorm:"not null;default:false;index"`
	CreatedAt   time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

// TableName specifies the table name for GORM
func (AudioObject) TableName() string {
	return "audio_objects"
}

// IsChunk reports whether the object is a live chunk rather than a final recording
func (a *AudioObject) IsChunk() bool {
	return !a.IsFinal
}
