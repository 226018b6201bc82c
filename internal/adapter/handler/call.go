package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/voicehire-team/voicehire/internal/domain/entities"
	usecaseErrors "github.com/voicehire-team/voicehire/internal/usecase/errors"
	"github.com/voicehire-team/voicehire/internal/usecase/relay"
)

// Close codes of the relay protocol. 4001/4002 mirror what the browser
// client and the speech service already expect.
const (
	CloseInvalidToken    = 4001
	CloseMeetingFinished = 4002
)

// closeWriteWait bounds the close-frame write on teardown
const closeWriteWait = 5 * time.Second

// MeetingResolver is the narrow meeting contract the call handler needs
type MeetingResolver interface {
	ResolveByToken(ctx context.Context, token string) (*entities.Meeting, error)
	Finish(ctx context.Context, token string, sessionID string) error
}

// SpeechDialer opens the per-session connection to the speech service
type SpeechDialer interface {
	Connect(ctx context.Context, token string) (*websocket.Conn, error)
}

// MergeScheduler queues post-processing for a finished session
type MergeScheduler interface {
	Schedule(meetingID uuid.UUID, sessionID string)
}

// Call handles the websocket relay endpoint
type Call struct {
	meetings  MeetingResolver
	speech    SpeechDialer
	registry  *relay.ConnectionRegistry
	persister *relay.ChunkPersister
	scheduler MergeScheduler
	logger    *zap.Logger
	upgrader  websocket.Upgrader
}

// NewCallHandler creates a new call handler
func NewCallHandler(
	meetings MeetingResolver,
	speech SpeechDialer,
	registry *relay.ConnectionRegistry,
	persister *relay.ChunkPersister,
	scheduler MergeScheduler,
	logger *zap.Logger,
) *Call {
	return &Call{
		meetings:  meetings,
		speech:    speech,
		registry:  registry,
		persister: persister,
		scheduler: scheduler,
		logger:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  32 * 1024,
			WriteBufferSize: 32 * 1024,
			// origin policy is enforced by the CORS middleware in front
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// HandleCall handles GET /v1/call/:token. It upgrades the connection,
// validates the invitation token, bridges the client to the speech service
// for the lifetime of the call, and on disconnect marks the meeting finished
// and schedules the merge pipeline.
func (h *Call) HandleCall(c echo.Context) error {
	token := c.Param("token")

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return err
	}
	defer conn.Close()

	// session id: opaque, distinct from the invitation token
	sessionID := strings.ReplaceAll(uuid.NewString(), "-", "")
	logger := h.logger.With(zap.String("session_id", sessionID))

	ctx := c.Request().Context()

	meeting, err := h.meetings.ResolveByToken(ctx, token)
	switch {
	case errors.Is(err, usecaseErrors.ErrMeetingNotFound):
		logger.Warn("invalid token attempted", zap.String("token", token))
		closeWith(conn, CloseInvalidToken, "Invalid token")
		return nil
	case errors.Is(err, usecaseErrors.ErrMeetingFinished):
		logger.Warn("attempt to use finished meeting token", zap.String("token", token))
		closeWith(conn, CloseMeetingFinished, "Meeting already finished")
		return nil
	case err != nil:
		logger.Error("meeting resolution failed", zap.Error(err))
		closeWith(conn, websocket.CloseInternalServerErr, "Internal server error")
		return nil
	}

	role := participantRole(c.QueryParam("role"))
	logger.Info("new call session",
		zap.String("meeting_id", meeting.ID.String()),
		zap.String("role", role.String()))

	upstream, err := h.speech.Connect(ctx, token)
	if err != nil {
		logger.Error("failed to connect to speech service", zap.Error(err))
		closeWith(conn, websocket.CloseInternalServerErr, "Speech service unavailable")
		return nil
	}

	bridge := relay.NewBridge(sessionID, token, role, conn, upstream, h.persister, h.registry, logger)
	bridge.Run()

	// teardown uses a fresh context: the request context died with the socket
	finishCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := h.meetings.Finish(finishCtx, token, sessionID); err != nil {
		logger.Error("failed to mark meeting finished", zap.Error(err))
	}

	h.scheduler.Schedule(meeting.ID, sessionID)
	return nil
}

// participantRole maps the optional role query parameter onto the closed
// role set; unknown or absent values default to candidate.
func participantRole(raw string) entities.Role {
	role := entities.Role(raw)
	if role.IsParticipant() && role != entities.RoleSpeechService {
		return role
	}
	return entities.RoleCandidate
}

// closeWith sends a close frame with a code and reason, best effort
func closeWith(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteWait))
}
