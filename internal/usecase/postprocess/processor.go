package postprocess

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/voicehire-team/voicehire/internal/domain/entities"
	"github.com/voicehire-team/voicehire/internal/domain/repositories"
)

// maxConcurrentDownloads bounds parallel chunk fetches per role
const maxConcurrentDownloads = 4

// finalContentType is the MIME type of the merged recording
const finalContentType = "audio/ogg"

// Mixer mixes per-role track files into one output file. The ffmpeg encoder
// in internal/infrastructure/media is the production implementation.
type Mixer interface {
	MixTracks(ctx context.Context, inputs []string, output string) error
}

// Processor converts the chunk set of a finished session into one merged,
// per-role-mixed recording and reclaims the source storage. Any failure
// before the final recording is durably stored leaves every source chunk
// intact, so a failed run can simply be retried from the start.
type Processor struct {
	audioRepo repositories.AudioObjectRepository
	storage   repositories.ObjectStorage
	mixer     Mixer
	logger    *zap.Logger
	tempDir   string
}

// NewProcessor creates a post-processor. tempDir may be empty to use the
// system default.
func NewProcessor(
	audioRepo repositories.AudioObjectRepository,
	storage repositories.ObjectStorage,
	mixer Mixer,
	logger *zap.Logger,
	tempDir string,
) *Processor {
	return &Processor{
		audioRepo: audioRepo,
		storage:   storage,
		mixer:     mixer,
		logger:    logger,
		tempDir:   tempDir,
	}
}

// Process merges all non-final chunks of a session into the meeting's final
// recording. Running it against a session with no chunks, including one that
// was already processed and cleaned, is a safe no-op.
func (p *Processor) Process(ctx context.Context, meetingID uuid.UUID, sessionID string) error {
	logger := p.logger.With(
		zap.String("session_id", sessionID),
		zap.String("meeting_id", meetingID.String()))
	logger.Info("starting post-processing")

	// an existing final recording means a previous run already completed;
	// re-merging would concatenate on top of whatever cleanup left behind
	existing, err := p.audioRepo.FindFinalBySession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("check for final recording: %w", err)
	}
	if existing != nil {
		logger.Warn("final recording already exists, skipping merge",
			zap.String("object_key", existing.ObjectKey))
		return nil
	}

	chunks, err := p.audioRepo.FindChunksBySession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("list chunks: %w", err)
	}
	if len(chunks) == 0 {
		logger.Warn("no audio chunks found, nothing to merge")
		return nil
	}
	logger.Info("found audio chunks", zap.Int("count", len(chunks)))

	var tempFiles []string
	defer func() {
		// temp files must never outlive a run, success or failure
		for _, path := range tempFiles {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				logger.Warn("could not delete temp file", zap.String("path", path), zap.Error(err))
			}
		}
	}()

	// one concatenated track per role, in first-appearance order
	trackFiles := make([]string, 0, len(entities.ParticipantRoles()))
	for _, group := range partitionByRole(chunks) {
		trackPath, err := p.buildRoleTrack(ctx, group.role, group.chunks)
		if err != nil {
			return fmt.Errorf("build %s track: %w", group.role, err)
		}
		tempFiles = append(tempFiles, trackPath)
		trackFiles = append(trackFiles, trackPath)
	}

	outFile, err := os.CreateTemp(p.tempDir, "voicehire_final_mixed_*.ogg")
	if err != nil {
		return fmt.Errorf("create output temp file: %w", err)
	}
	outPath := outFile.Name()
	outFile.Close()
	tempFiles = append(tempFiles, outPath)

	if err := p.mixer.MixTracks(ctx, trackFiles, outPath); err != nil {
		return fmt.Errorf("mix tracks: %w", err)
	}

	final, err := os.ReadFile(outPath)
	if err != nil {
		return fmt.Errorf("read mixed output: %w", err)
	}

	finalKey := fmt.Sprintf("recordings/meeting_%s/final_recording.ogg", meetingID)
	if err := p.storage.PutObject(ctx, finalKey, final, finalContentType); err != nil {
		return fmt.Errorf("store final recording: %w", err)
	}

	finalObject := &entities.AudioObject{
		SessionID: sessionID,
		MeetingID: &meetingID,
		ObjectKey: finalKey,
		Role:      entities.RoleMerged,
		SizeBytes: int64(len(final)),
		IsFinal:   true,
	}
	if err := p.audioRepo.Create(ctx, finalObject); err != nil {
		return fmt.Errorf("register final recording: %w", err)
	}
	logger.Info("final recording stored",
		zap.String("object_key", finalKey),
		zap.Int("size_bytes", len(final)))

	// source cleanup happens strictly after the final recording is durable;
	// cleanup failures leave orphans but never lose the recording
	keys := make([]string, len(chunks))
	ids := make([]uuid.UUID, len(chunks))
	for i, c := range chunks {
		keys[i] = c.ObjectKey
		ids[i] = c.ID
	}
	if err := p.storage.DeleteObjects(ctx, keys); err != nil {
		logger.Error("failed deleting source chunk objects", zap.Error(err))
	}
	if err := p.audioRepo.DeleteByIDs(ctx, ids); err != nil {
		logger.Error("failed deleting source chunk records", zap.Error(err))
	}

	logger.Info("post-processing complete", zap.Int("chunks_merged", len(chunks)))
	return nil
}

// buildRoleTrack downloads all chunks of one role concurrently and
// concatenates their bytes, in arrival order, into a single temp track file.
// The chunks share a codec, so a byte-level append is a valid concatenation
// and a single-chunk track is byte-identical to its chunk.
func (p *Processor) buildRoleTrack(ctx context.Context, role entities.Role, chunks []*entities.AudioObject) (string, error) {
	data := make([][]byte, len(chunks))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentDownloads)
	for i, chunk := range chunks {
		g.Go(func() error {
			b, err := p.storage.GetObject(ctx, chunk.ObjectKey)
			if err != nil {
				return fmt.Errorf("download %s: %w", chunk.ObjectKey, err)
			}
			data[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	track, err := os.CreateTemp(p.tempDir, fmt.Sprintf("voicehire_%s_track_*.webm", role))
	if err != nil {
		return "", fmt.Errorf("create track temp file: %w", err)
	}
	defer track.Close()

	for _, b := range data {
		if _, err := track.Write(b); err != nil {
			// the caller never learns this path, so remove the partial file here
			os.Remove(track.Name())
			return "", fmt.Errorf("write track file: %w", err)
		}
	}

	return track.Name(), nil
}

type roleGroup struct {
	role   entities.Role
	chunks []*entities.AudioObject
}

// partitionByRole splits chunks by role, preserving arrival order within
// each role and ordering the groups by first appearance
func partitionByRole(chunks []*entities.AudioObject) []roleGroup {
	index := make(map[entities.Role]int)
	var groups []roleGroup
	for _, c := range chunks {
		i, ok := index[c.Role]
		if !ok {
			i = len(groups)
			index[c.Role] = i
			groups = append(groups, roleGroup{role: c.Role})
		}
		groups[i].chunks = append(groups[i].chunks, c)
	}
	return groups
}
