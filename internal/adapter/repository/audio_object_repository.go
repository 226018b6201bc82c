package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/voicehire-team/voicehire/internal/domain/entities"
)

// AudioObjectRepository handles audio object metadata operations
type AudioObjectRepository struct {
	db *gorm.DB
}

// NewAudioObjectRepository creates a new audio object repository
func NewAudioObjectRepository(db *gorm.DB) *AudioObjectRepository {
	return &AudioObjectRepository{db: db}
}

// Create registers a new audio object
func (r *AudioObjectRepository) Create(ctx context.Context, object *entities.AudioObject) error {
	if object == nil {
		return errors.New("audio object cannot be nil")
	}
	return r.db.WithContext(ctx).Create(object).Error
}

// FindChunksBySession retrieves all non-final chunks for a session ordered by
// creation time ascending. Ascending order is what the merge pipeline
// concatenates in; created_at holds the relay-side arrival time, not the
// insert time, and the object key breaks same-millisecond ties.
func (r *AudioObjectRepository) FindChunksBySession(ctx context.Context, sessionID string) ([]*entities.AudioObject, error) {
	var chunks []*entities.AudioObject
	if err := r.db.WithContext(ctx).
		Where("session_id = ? AND is_final = ?", sessionID, false).
		Order("created_at ASC, object_key ASC").
		Find(&chunks).Error; err != nil {
		return nil, err
	}
	return chunks, nil
}

// FindFinalBySession retrieves the final recording for a session, if any
func (r *AudioObjectRepository) FindFinalBySession(ctx context.Context, sessionID string) (*entities.AudioObject, error) {
	var object entities.AudioObject
	if err := r.db.WithContext(ctx).
		Where("session_id = ? AND is_final = ?", sessionID, true).
		First(&object).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &object, nil
}

// DeleteByIDs removes audio object rows in bulk
func (r *AudioObjectRepository) DeleteByIDs(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&entities.AudioObject{}).Error
}
