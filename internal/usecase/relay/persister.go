package relay

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voicehire-team/voicehire/internal/domain/entities"
	"github.com/voicehire-team/voicehire/internal/domain/repositories"
)

// chunkContentType is the MIME type of the audio frames both sides send
const chunkContentType = "audio/webm"

// ChunkPersister durably stores audio frames off the relay hot path. Each
// frame becomes one object in the store plus one metadata row. Saves run on
// a bounded worker pool so a slow store backs pressure onto goroutines, not
// onto the frame-forwarding loop.
type ChunkPersister struct {
	storage   repositories.ObjectStorage
	audioRepo repositories.AudioObjectRepository
	logger    *zap.Logger

	saveTimeout time.Duration
	sem         chan struct{} // bounds concurrent saves
	wg          sync.WaitGroup
}

// NewChunkPersister creates a persister with a bounded worker pool
func NewChunkPersister(
	storage repositories.ObjectStorage,
	audioRepo repositories.AudioObjectRepository,
	logger *zap.Logger,
	maxConcurrent int,
	saveTimeout time.Duration,
) *ChunkPersister {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &ChunkPersister{
		storage:     storage,
		audioRepo:   audioRepo,
		logger:      logger,
		saveTimeout: saveTimeout,
		sem:         make(chan struct{}, maxConcurrent),
	}
}

// PersistAsync schedules a chunk save and returns immediately. Empty
// payloads are dropped. Failures are logged, never propagated: durability is
// best-effort and must not degrade the live call.
//
// The arrival timestamp is taken here on the hot path and carried into both
// the storage key and the metadata row, so ordering stays correct even when
// worker goroutines complete out of order.
func (p *ChunkPersister) PersistAsync(sessionID string, role entities.Role, data []byte) {
	if len(data) == 0 {
		p.logger.Warn("skipping empty audio chunk",
			zap.String("session_id", sessionID),
			zap.String("role", role.String()))
		return
	}

	arrivedAt := time.Now()
	key := chunkKey(sessionID, role, arrivedAt)

	// the relay loop may reuse the frame buffer for the next read
	buf := make([]byte, len(data))
	copy(buf, data)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.sem <- struct{}{}
		defer func() { <-p.sem }()

		ctx, cancel := context.WithTimeout(context.Background(), p.saveTimeout)
		defer cancel()

		if err := p.Persist(ctx, sessionID, role, key, arrivedAt, buf); err != nil {
			p.logger.Error("failed to save audio chunk",
				zap.String("session_id", sessionID),
				zap.String("role", role.String()),
				zap.String("object_key", key),
				zap.Error(err))
		}
	}()
}

// Persist writes the object first and registers metadata only on success.
// If the metadata write fails the orphaned object is left inert; the error
// tells the caller which key it was.
//
// CreatedAt is set to the arrival time explicitly. Leaving it to the
// database would stamp the INSERT instead, and concurrent workers land their
// inserts out of arrival order; the merge pipeline lists by created_at.
func (p *ChunkPersister) Persist(ctx context.Context, sessionID string, role entities.Role, key string, arrivedAt time.Time, data []byte) error {
	if err := p.storage.PutObject(ctx, key, data, chunkContentType); err != nil {
		return fmt.Errorf("object store put: %w", err)
	}

	object := &entities.AudioObject{
		SessionID: sessionID,
		ObjectKey: key,
		Role:      role,
		SizeBytes: int64(len(data)),
		IsFinal:   false,
		CreatedAt: arrivedAt,
	}
	if err := p.audioRepo.Create(ctx, object); err != nil {
		return fmt.Errorf("metadata write for orphaned object %s: %w", key, err)
	}

	p.logger.Debug("audio chunk saved",
		zap.String("session_id", sessionID),
		zap.String("object_key", key),
		zap.Int("size_bytes", len(data)))
	return nil
}

// Wait blocks until all scheduled saves have completed. Used on shutdown so
// in-flight chunks are not lost.
func (p *ChunkPersister) Wait() {
	p.wg.Wait()
}

// chunkKey builds a session-scoped storage key embedding role, millisecond
// arrival timestamp and a random suffix. The zero-padded timestamp makes a
// sort on the embedded timestamp (lexical within one role) equal arrival
// order; the suffix keeps concurrent chunks collision-free.
func chunkKey(sessionID string, role entities.Role, arrivedAt time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("calls/%s/%s_%013d_%s.webm", sessionID, role, arrivedAt.UnixMilli(), suffix)
}
