package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/voicehire-team/voicehire/internal/domain/entities"
	usecaseErrors "github.com/voicehire-team/voicehire/internal/usecase/errors"
	"github.com/voicehire-team/voicehire/internal/usecase/relay"
)

// fakeResolver serves one meeting and records finish calls
type fakeResolver struct {
	mu         sync.Mutex
	meeting    *entities.Meeting
	resolveErr error
	finishes   []string
}

func (r *fakeResolver) ResolveByToken(_ context.Context, token string) (*entities.Meeting, error) {
	if r.resolveErr != nil {
		return nil, r.resolveErr
	}
	if r.meeting != nil && r.meeting.Token == token {
		return r.meeting, nil
	}
	return nil, usecaseErrors.ErrMeetingNotFound
}

func (r *fakeResolver) Finish(_ context.Context, _ string, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finishes = append(r.finishes, sessionID)
	return nil
}

func (r *fakeResolver) finishCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.finishes)
}

// fakeScheduler records scheduled merge jobs
type fakeScheduler struct {
	mu   sync.Mutex
	jobs []uuid.UUID
}

func (s *fakeScheduler) Schedule(meetingID uuid.UUID, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, meetingID)
}

func (s *fakeScheduler) scheduled() []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]uuid.UUID, len(s.jobs))
	copy(out, s.jobs)
	return out
}

// fakeStorage and fakeAudioRepo back the persister in-memory
type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (s *fakeStorage) PutObject(_ context.Context, key string, data []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.objects == nil {
		s.objects = make(map[string][]byte)
	}
	s.objects[key] = append([]byte(nil), data...)
	return nil
}

func (s *fakeStorage) GetObject(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

func (s *fakeStorage) DeleteObjects(_ context.Context, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.objects, k)
	}
	return nil
}

func (s *fakeStorage) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

type fakeAudioRepo struct {
	mu      sync.Mutex
	created []*entities.AudioObject
}

func (r *fakeAudioRepo) Create(_ context.Context, object *entities.AudioObject) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, object)
	return nil
}

func (r *fakeAudioRepo) FindChunksBySession(_ context.Context, _ string) ([]*entities.AudioObject, error) {
	return nil, nil
}

func (r *fakeAudioRepo) FindFinalBySession(_ context.Context, _ string) (*entities.AudioObject, error) {
	return nil, nil
}

func (r *fakeAudioRepo) DeleteByIDs(_ context.Context, _ []uuid.UUID) error {
	return nil
}

func (r *fakeAudioRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.created)
}

// speechServer is a stand-in speech service: it accepts the upstream
// connection and reads frames until the relay closes it
func speechServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// wsDialer dials the stand-in speech server for every session
type wsDialer struct {
	url     string
	dialErr error
}

func (d *wsDialer) Connect(ctx context.Context, _ string) (*websocket.Conn, error) {
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, d.url, nil)
	return conn, err
}

type callFixture struct {
	server    *httptest.Server
	resolver  *fakeResolver
	scheduler *fakeScheduler
	storage   *fakeStorage
	audioRepo *fakeAudioRepo
	persister *relay.ChunkPersister
}

func newCallFixture(t *testing.T, resolver *fakeResolver, dialer *wsDialer) *callFixture {
	t.Helper()
	logger := zap.NewNop()
	storage := &fakeStorage{}
	audioRepo := &fakeAudioRepo{}
	persister := relay.NewChunkPersister(storage, audioRepo, logger, 4, 5*time.Second)
	scheduler := &fakeScheduler{}
	h := NewCallHandler(resolver, dialer, relay.NewConnectionRegistry(logger), persister, scheduler, logger)

	e := echo.New()
	e.GET("/v1/call/:token", h.HandleCall)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	return &callFixture{
		server:    srv,
		resolver:  resolver,
		scheduler: scheduler,
		storage:   storage,
		audioRepo: audioRepo,
		persister: persister,
	}
}

func (f *callFixture) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/v1/call/" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial relay: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readCloseCode(t *testing.T, conn *websocket.Conn) int {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}
		var closeErr *websocket.CloseError
		if errors.As(err, &closeErr) {
			return closeErr.Code
		}
		t.Fatalf("expected close frame, got %v", err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestHandleCallInvalidToken(t *testing.T) {
	speech := speechServer(t)
	dialer := &wsDialer{url: "ws" + strings.TrimPrefix(speech.URL, "http")}
	f := newCallFixture(t, &fakeResolver{}, dialer)

	conn := f.dial(t, "bogus-token")
	if code := readCloseCode(t, conn); code != CloseInvalidToken {
		t.Fatalf("expected close code %d, got %d", CloseInvalidToken, code)
	}

	f.persister.Wait()
	if f.storage.count() != 0 || f.audioRepo.count() != 0 {
		t.Fatalf("rejected session persisted chunks")
	}
	if f.resolver.finishCount() != 0 {
		t.Fatalf("rejected session finished a meeting")
	}
}

func TestHandleCallFinishedMeeting(t *testing.T) {
	speech := speechServer(t)
	dialer := &wsDialer{url: "ws" + strings.TrimPrefix(speech.URL, "http")}
	resolver := &fakeResolver{resolveErr: usecaseErrors.ErrMeetingFinished}
	f := newCallFixture(t, resolver, dialer)

	conn := f.dial(t, "token-1")
	if code := readCloseCode(t, conn); code != CloseMeetingFinished {
		t.Fatalf("expected close code %d, got %d", CloseMeetingFinished, code)
	}
}

func TestHandleCallSpeechUnavailable(t *testing.T) {
	resolver := &fakeResolver{meeting: &entities.Meeting{
		ID:                uuid.New(),
		Token:             "token-1",
		OrganizerUsername: "organizer",
	}}
	f := newCallFixture(t, resolver, &wsDialer{dialErr: errors.New("speech service down")})

	conn := f.dial(t, "token-1")
	if code := readCloseCode(t, conn); code != websocket.CloseInternalServerErr {
		t.Fatalf("expected close code %d, got %d", websocket.CloseInternalServerErr, code)
	}
	if len(f.scheduler.scheduled()) != 0 {
		t.Fatalf("merge scheduled for a session that never started")
	}
}

func TestHandleCallRelaysAndFinishes(t *testing.T) {
	speech := speechServer(t)
	dialer := &wsDialer{url: "ws" + strings.TrimPrefix(speech.URL, "http")}
	meetingID := uuid.New()
	resolver := &fakeResolver{meeting: &entities.Meeting{
		ID:                meetingID,
		Token:             "token-1",
		OrganizerUsername: "organizer",
	}}
	f := newCallFixture(t, resolver, dialer)

	conn := f.dial(t, "token-1")
	if err := conn.WriteMessage(websocket.BinaryMessage, []byte("frame-1")); err != nil {
		t.Fatalf("send frame: %v", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, []byte("frame-2")); err != nil {
		t.Fatalf("send frame: %v", err)
	}
	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := conn.WriteMessage(websocket.CloseMessage, closeMsg); err != nil {
		t.Fatalf("send close: %v", err)
	}

	waitFor(t, "meeting finish", func() bool { return f.resolver.finishCount() == 1 })
	waitFor(t, "merge scheduling", func() bool { return len(f.scheduler.scheduled()) == 1 })

	if got := f.scheduler.scheduled()[0]; got != meetingID {
		t.Fatalf("merge scheduled for meeting %s, want %s", got, meetingID)
	}

	f.persister.Wait()
	if f.audioRepo.count() != 2 {
		t.Fatalf("expected 2 persisted chunks, got %d", f.audioRepo.count())
	}
	for _, row := range f.audioRepo.created {
		if row.Role != entities.RoleCandidate {
			t.Fatalf("chunk tagged %q, want %q", row.Role, entities.RoleCandidate)
		}
	}
}
