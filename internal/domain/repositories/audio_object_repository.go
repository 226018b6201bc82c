package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/voicehire-team/voicehire/internal/domain/entities"
)

// AudioObjectRepository defines data access for stored audio metadata
type AudioObjectRepository interface {
	// Create registers a new audio object (chunk or final recording)
	Create(ctx context.Context, object *entities.AudioObject) error

	// FindChunksBySession retrieves all non-final chunks for a session
	// ordered by creation time ascending
	FindChunksBySession(ctx context.Context, sessionID string) ([]*entities.AudioObject, error)

	// FindFinalBySession retrieves the final recording for a session, if any
	FindFinalBySession(ctx context.Context, sessionID string) (*entities.AudioObject, error)

	// DeleteByIDs removes audio object rows in bulk
	DeleteByIDs(ctx context.Context, ids []uuid.UUID) error
}
