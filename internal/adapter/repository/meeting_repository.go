package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/voicehire-team/voicehire/internal/domain/entities"
)

// MeetingRepository handles meeting data operations
type MeetingRepository struct {
	db *gorm.DB
}

// NewMeetingRepository creates a new meeting repository
func NewMeetingRepository(db *gorm.DB) *MeetingRepository {
	return &MeetingRepository{db: db}
}

// FindByToken retrieves a meeting by its invitation token
func (r *MeetingRepository) FindByToken(ctx context.Context, token string) (*entities.Meeting, error) {
	var meeting entities.Meeting
	if err := r.db.WithContext(ctx).Where("token = ?", token).First(&meeting).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &meeting, nil
}

// MarkFinished marks a meeting finished and stores the terminating session id.
// The is_finished guard makes a repeated call a no-op, so a meeting records
// only the session that actually ended it.
func (r *MeetingRepository) MarkFinished(ctx context.Context, token string, sessionID string) error {
	return r.db.WithContext(ctx).
		Model(&entities.Meeting{}).
		Where("token = ? AND is_finished = ?", token, false).
		Updates(map[string]interface{}{
			"is_finished":     true,
			"last_session_id": sessionID,
			"ended_at":        time.Now(),
		}).Error
}
