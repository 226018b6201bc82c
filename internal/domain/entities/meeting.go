package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Meeting represents a scheduled interview. Creation and querying of
// meetings is owned by the resource-management service; the relay core only
// resolves meetings by invitation token and marks them finished.
type Meeting struct {
	ID                uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Token             string         `json:"token" gorm:"type:varchar(64);unique;not null;index"`
	ResumeID          *uuid.UUID     `json:"resume_id,omitempty" gorm:"type:uuid"`
	OrganizerUsername string         `json:"organizer_username" gorm:"type:varchar(255);not null"`
	CandidateUsername *string        `json:"candidate_username,omitempty" gorm:"type:varchar(255)"`
	IsFinished        bool           `json:"is_finished" gorm:"not null;default:false"`
	LastSessionID     *string        `json:"last_session_id,omitempty" gorm:"type:varchar(64);index"`
	EndedAt           *time.Time     `json:"ended_at,omitempty"`
	Metadata          datatypes.JSON `json:"metadata,omitempty" gorm:"type:jsonb;default:'{}'"`
	CreatedAt         time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt         time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (Meeting) TableName() string {
	return "meetings"
}

// CanStartSession reports whether a new call session may attach to the meeting
func (m *Meeting) CanStartSession() bool {
	return !m.IsFinished
}

// Finish marks the meeting finished and records the terminating session
func (m *Meeting) Finish(sessionID string) {
	m.IsFinished = true
	m.LastSessionID = &sessionID
	now := time.Now()
	m.EndedAt = &now
}
