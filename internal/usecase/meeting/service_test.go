package meeting

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voicehire-team/voicehire/internal/domain/entities"
	"github.com/voicehire-team/voicehire/internal/infrastructure/cache"
	usecaseErrors "github.com/voicehire-team/voicehire/internal/usecase/errors"
)

// fakeMeetingRepo serves a single meeting by token and counts lookups
type fakeMeetingRepo struct {
	meeting    *entities.Meeting
	findCalls  int
	markCalls  int
	findErr    error
	lastMarked string
	events     *[]string
}

func (r *fakeMeetingRepo) FindByToken(_ context.Context, token string) (*entities.Meeting, error) {
	r.findCalls++
	if r.findErr != nil {
		return nil, r.findErr
	}
	if r.meeting != nil && r.meeting.Token == token {
		return r.meeting, nil
	}
	return nil, nil
}

func (r *fakeMeetingRepo) MarkFinished(_ context.Context, token string, sessionID string) error {
	r.markCalls++
	r.lastMarked = sessionID
	if r.events != nil {
		*r.events = append(*r.events, "mark_finished")
	}
	if r.meeting != nil && r.meeting.Token == token {
		r.meeting.Finish(sessionID)
	}
	return nil
}

func activeMeeting(token string) *entities.Meeting {
	return &entities.Meeting{
		ID:                uuid.New(),
		Token:             token,
		OrganizerUsername: "organizer",
	}
}

func TestResolveByTokenUnknown(t *testing.T) {
	repo := &fakeMeetingRepo{}
	svc := NewService(repo, cache.NewMemoryStore(), zap.NewNop())

	_, err := svc.ResolveByToken(context.Background(), "no-such-token")
	if !errors.Is(err, usecaseErrors.ErrMeetingNotFound) {
		t.Fatalf("expected ErrMeetingNotFound, got %v", err)
	}
}

func TestResolveByTokenFinished(t *testing.T) {
	m := activeMeeting("token-1")
	m.Finish("session-old")
	repo := &fakeMeetingRepo{meeting: m}
	svc := NewService(repo, cache.NewMemoryStore(), zap.NewNop())

	_, err := svc.ResolveByToken(context.Background(), "token-1")
	if !errors.Is(err, usecaseErrors.ErrMeetingFinished) {
		t.Fatalf("expected ErrMeetingFinished, got %v", err)
	}
}

func TestResolveByTokenCachesLookup(t *testing.T) {
	repo := &fakeMeetingRepo{meeting: activeMeeting("token-1")}
	svc := NewService(repo, cache.NewMemoryStore(), zap.NewNop())

	for i := 0; i < 3; i++ {
		m, err := svc.ResolveByToken(context.Background(), "token-1")
		if err != nil {
			t.Fatalf("resolve %d: %v", i, err)
		}
		if m.Token != "token-1" {
			t.Fatalf("resolved wrong meeting %q", m.Token)
		}
	}
	if repo.findCalls != 1 {
		t.Fatalf("expected 1 repository lookup, got %d", repo.findCalls)
	}
}

func TestResolveByTokenRepositoryError(t *testing.T) {
	repo := &fakeMeetingRepo{findErr: errors.New("db down")}
	svc := NewService(repo, cache.NewMemoryStore(), zap.NewNop())

	_, err := svc.ResolveByToken(context.Background(), "token-1")
	if err == nil || errors.Is(err, usecaseErrors.ErrMeetingNotFound) {
		t.Fatalf("infrastructure error must not masquerade as not-found, got %v", err)
	}
}

func TestFinishInvalidatesCache(t *testing.T) {
	repo := &fakeMeetingRepo{meeting: activeMeeting("token-1")}
	svc := NewService(repo, cache.NewMemoryStore(), zap.NewNop())

	if _, err := svc.ResolveByToken(context.Background(), "token-1"); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if err := svc.Finish(context.Background(), "token-1", "session-1"); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if repo.markCalls != 1 || repo.lastMarked != "session-1" {
		t.Fatalf("meeting not marked finished with session id")
	}

	// the cached active copy must not shadow the finished state
	_, err := svc.ResolveByToken(context.Background(), "token-1")
	if !errors.Is(err, usecaseErrors.ErrMeetingFinished) {
		t.Fatalf("expected ErrMeetingFinished after finish, got %v", err)
	}
}

// trackingStore records cache deletions into a shared event log
type trackingStore struct {
	cache.Store
	events *[]string
}

func (s *trackingStore) Delete(ctx context.Context, key string) {
	*s.events = append(*s.events, "cache_delete")
	s.Store.Delete(ctx, key)
}

func TestFinishInvalidatesCacheAfterMarking(t *testing.T) {
	var events []string
	repo := &fakeMeetingRepo{meeting: activeMeeting("token-1"), events: &events}
	store := &trackingStore{Store: cache.NewMemoryStore(), events: &events}
	svc := NewService(repo, store, zap.NewNop())

	if err := svc.Finish(context.Background(), "token-1", "session-1"); err != nil {
		t.Fatalf("finish: %v", err)
	}

	// the row must be finished before the cached copy is dropped, or a
	// concurrent resolve can re-cache the stale unfinished meeting
	want := []string{"mark_finished", "cache_delete"}
	if len(events) != len(want) {
		t.Fatalf("expected events %v, got %v", want, events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("expected events %v, got %v", want, events)
		}
	}
}
