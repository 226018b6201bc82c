package postprocess

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voicehire-team/voicehire/pkg/jobcontext"
)

// jobTimeout bounds one merge run, retries included
const jobTimeout = 10 * time.Minute

// Scheduler runs merge jobs as detached background tasks. It supervises
// them: panics are recovered, transient failures retried, and errors logged
// and contained so a merge problem can never reach the closing client.
type Scheduler struct {
	processor *Processor
	logger    *zap.Logger
	wg        sync.WaitGroup
}

// NewScheduler creates a merge job scheduler
func NewScheduler(processor *Processor, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		processor: processor,
		logger:    logger,
	}
}

// Schedule queues one merge job for a finished session and returns
// immediately. The job derives its context from the background context, not
// from the websocket request, so the disconnecting client cannot cancel it.
func (s *Scheduler) Schedule(meetingID uuid.UUID, sessionID string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := jobcontext.Begin(context.Background(), "audio_merge", jobTimeout)
		defer cancel()

		err := jobcontext.Run(ctx, func(ctx context.Context) error {
			return s.processor.Process(ctx, meetingID, sessionID)
		})
		if err != nil {
			meta := jobcontext.GetMetadata(ctx)
			s.logger.Error("audio merge job failed, source chunks left intact",
				zap.String("job_id", meta.JobID.String()),
				zap.String("session_id", sessionID),
				zap.String("meeting_id", meetingID.String()),
				zap.Error(err))
		}
	}()

	s.logger.Info("audio merge job scheduled",
		zap.String("session_id", sessionID),
		zap.String("meeting_id", meetingID.String()))
}

// Wait blocks until all scheduled jobs have completed. Used on shutdown.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
