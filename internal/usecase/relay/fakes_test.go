package relay

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/voicehire-team/voicehire/internal/domain/entities"
)

// fakeStorage is an in-memory ObjectStorage
type fakeStorage struct {
	mu            sync.Mutex
	objects       map[string][]byte
	putErr        error
	firstPutDelay time.Duration // stalls the first PutObject only
	puts          int
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (s *fakeStorage) PutObject(_ context.Context, key string, data []byte, _ string) error {
	if s.putErr != nil {
		return s.putErr
	}
	s.mu.Lock()
	s.puts++
	stall := s.puts == 1 && s.firstPutDelay > 0
	s.mu.Unlock()
	if stall {
		time.Sleep(s.firstPutDelay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	s.objects[key] = buf
	return nil
}

func (s *fakeStorage) GetObject(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, errors.New("object not found: " + key)
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

// fakeAudioRepo is an in-memory AudioObjectRepository
type fakeAudioRepo struct {
	mu        sync.Mutex
	created   []*entities.AudioObject
	createErr error
}

func (r *fakeAudioRepo) Create(_ context.Context, object *entities.AudioObject) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, object)
	return nil
}

func (r *fakeAudioRepo) FindChunksBySession(_ context.Context, sessionID string) ([]*entities.AudioObject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var chunks []*entities.AudioObject
	for _, o := range r.created {
		if o.SessionID == sessionID && !o.IsFinal {
			chunks = append(chunks, o)
		}
	}
	return chunks, nil
}

func (r *fakeAudioRepo) FindFinalBySession(_ context.Context, sessionID string) (*entities.AudioObject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.created {
		if o.SessionID == sessionID && o.IsFinal {
			return o, nil
		}
	}
	return nil, nil
}

func (r *fakeAudioRepo) DeleteByIDs(_ context.Context, _ []uuid.UUID) error {
	return nil
}

func (r *fakeAudioRepo) rows() []*entities.AudioObject {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entities.AudioObject, len(r.created))
	copy(out, r.created)
	return out
}

// wsFrame is one message delivered through a fakeConn
type wsFrame struct {
	messageType int
	data        []byte
}

// fakeConn is an in-process duplex websocket stand-in. ReadMessage blocks on
// the in channel until a frame arrives, the input ends, or the conn closes.
type fakeConn struct {
	mu         sync.Mutex
	in         chan wsFrame
	writes     []wsFrame
	failWrites bool
	closed     chan struct{}
	closeOnce  sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan wsFrame, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case f, ok := <-c.in:
		if !ok {
			return 0, nil, &websocket.CloseError{Code: websocket.CloseNormalClosure}
		}
		return f.messageType, f.data, nil
	case <-c.closed:
		return 0, nil, errors.New("use of closed connection")
	}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	select {
	case <-c.closed:
		return errors.New("write to closed connection")
	default:
	}
	if c.failWrites {
		return errors.New("write failed")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	c.writes = append(c.writes, wsFrame{messageType: messageType, data: buf})
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// deliver queues a frame for ReadMessage
func (c *fakeConn) deliver(messageType int, data []byte) {
	c.in <- wsFrame{messageType: messageType, data: data}
}

// endInput simulates the peer closing the connection normally
func (c *fakeConn) endInput() {
	close(c.in)
}

func (c *fakeConn) written() []wsFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]wsFrame, len(c.writes))
	copy(out, c.writes)
	return out
}
