package meeting

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/voicehire-team/voicehire/internal/domain/entities"
	"github.com/voicehire-team/voicehire/internal/domain/repositories"
	"github.com/voicehire-team/voicehire/internal/infrastructure/cache"
	usecaseErrors "github.com/voicehire-team/voicehire/internal/usecase/errors"
)

// tokenCacheTTL keeps resolved meetings hot for the duration of repeated
// connection attempts without letting stale finished-state linger.
const tokenCacheTTL = 30 * time.Second

// Service implements the two narrow meeting contracts the relay core needs:
// resolve an invitation token to an active meeting, and mark a meeting
// finished with the terminating session id.
type Service struct {
	meetingRepo repositories.MeetingRepository
	store       cache.Store
	logger      *zap.Logger
}

// NewService creates a meeting service
func NewService(meetingRepo repositories.MeetingRepository, store cache.Store, logger *zap.Logger) *Service {
	return &Service{
		meetingRepo: meetingRepo,
		store:       store,
		logger:      logger,
	}
}

// ResolveByToken looks a meeting up by its invitation token and confirms it
// can still accept a session. Returns ErrMeetingNotFound for unknown tokens
// and ErrMeetingFinished for meetings that already ended.
func (s *Service) ResolveByToken(ctx context.Context, token string) (*entities.Meeting, error) {
	if raw, ok := s.store.Get(ctx, tokenCacheKey(token)); ok {
		var m entities.Meeting
		if err := json.Unmarshal([]byte(raw), &m); err == nil {
			if m.IsFinished {
				return nil, usecaseErrors.ErrMeetingFinished
			}
			return &m, nil
		}
	}

	m, err := s.meetingRepo.FindByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("lookup meeting by token: %w", err)
	}
	if m == nil {
		return nil, usecaseErrors.ErrMeetingNotFound
	}
	if m.IsFinished {
		return nil, usecaseErrors.ErrMeetingFinished
	}

	if raw, err := json.Marshal(m); err == nil {
		s.store.Set(ctx, tokenCacheKey(token), string(raw), tokenCacheTTL)
	}

	return m, nil
}

// Finish marks the meeting finished and records the session that terminated
// it. Finishing an already-finished meeting is a no-op.
func (s *Service) Finish(ctx context.Context, token string, sessionID string) error {
	if err := s.meetingRepo.MarkFinished(ctx, token, sessionID); err != nil {
		return fmt.Errorf("mark meeting finished: %w", err)
	}

	// drop the cached copy only once the row is finished; deleting first
	// would let a concurrent resolve re-cache the stale unfinished meeting
	s.store.Delete(ctx, tokenCacheKey(token))

	s.logger.Info("meeting marked finished",
		zap.String("token", token),
		zap.String("session_id", sessionID))
	return nil
}

func tokenCacheKey(token string) string {
	return "meeting:token:" + token
}
