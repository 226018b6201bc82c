package repositories

import (
	"context"

	"github.com/voicehire-team/voicehire/internal/domain/entities"
)

// MeetingRepository defines the narrow meeting contract the relay core needs.
// Full meeting CRUD lives in the resource-management service.
type MeetingRepository interface {
	// FindByToken retrieves a meeting by its invitation token
	FindByToken(ctx context.Context, token string) (*entities.Meeting, error)

	// MarkFinished marks a meeting finished and stores the terminating
	// session id. It is a no-op for meetings that are already finished.
	MarkFinished(ctx context.Context, token string, sessionID string) error
}
