package relay

import (
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/voicehire-team/voicehire/internal/domain/entities"
	"github.com/voicehire-team/voicehire/internal/infrastructure/external/speech"
)

// WebsocketConn is the duplex connection surface the bridge relays between.
// Both the participant socket and the speech-service socket satisfy it.
type WebsocketConn interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Bridge relays binary audio frames bidirectionally between one participant
// connection and the speech-service connection of a single call session.
// Every binary frame is persisted exactly once per direction.
type Bridge struct {
	sessionID  string
	meetingKey string
	role       entities.Role

	client   WebsocketConn
	upstream WebsocketConn

	persister *ChunkPersister
	registry  *ConnectionRegistry
	logger    *zap.Logger
}

// NewBridge creates a relay bridge for one call session. role is the
// participant-side role chunks from the client are tagged with; frames
// coming back from the speech service are always tagged RoleSpeechService.
func NewBridge(
	sessionID string,
	meetingKey string,
	role entities.Role,
	client WebsocketConn,
	upstream WebsocketConn,
	persister *ChunkPersister,
	registry *ConnectionRegistry,
	logger *zap.Logger,
) *Bridge {
	return &Bridge{
		sessionID:  sessionID,
		meetingKey: meetingKey,
		role:       role,
		client:     client,
		upstream:   upstream,
		persister:  persister,
		registry:   registry,
		logger:     logger.With(zap.String("session_id", sessionID)),
	}
}

// Run relays frames until either direction terminates, then tears the
// session down: best-effort end_session upstream, close both sockets, and
// wait for the losing loop to unwind before returning. Marking the meeting
// finished and scheduling post-processing are the caller's job.
func (b *Bridge) Run() {
	b.registry.Register(b.meetingKey, b.client)
	defer b.registry.Unregister(b.meetingKey, b.client)

	done := make(chan error, 2)
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		done <- b.clientToSpeech()
	}()
	go func() {
		defer wg.Done()
		done <- b.speechToClient()
	}()

	// first loop to exit decides the session is over
	if err := <-done; err != nil && !isExpectedClose(err) {
		b.logger.Warn("relay loop terminated with error", zap.Error(err))
	}

	// tell the speech service the session is over; it may already be gone
	if err := b.upstream.WriteMessage(websocket.TextMessage, []byte(speech.EndSessionMessage)); err != nil {
		b.logger.Warn("could not send end_session to speech service", zap.Error(err))
	}

	// closing both sockets unblocks the still-running loop; it must finish
	// before the caller starts tearing down session state
	b.upstream.Close()
	b.client.Close()
	wg.Wait()

	b.logger.Info("relay bridge closed")
}

// clientToSpeech reads frames from the participant, persists them and
// forwards them upstream. Once an upstream write fails the forward side is
// treated as closed, but incoming frames keep being persisted.
func (b *Bridge) clientToSpeech() error {
	upstreamDown := false
	for {
		msgType, data, err := b.client.ReadMessage()
		if err != nil {
			return err
		}
		if msgType != websocket.BinaryMessage || len(data) == 0 {
			continue
		}

		b.persister.PersistAsync(b.sessionID, b.role, data)

		if !upstreamDown {
			if err := b.upstream.WriteMessage(websocket.BinaryMessage, data); err != nil {
				b.logger.Debug("upstream forward failed, still persisting", zap.Error(err))
				upstreamDown = true
			}
		}
	}
}

// speechToClient reads frames from the speech service. Binary frames are
// persisted under the speech-service role and forwarded; text frames are
// passed through verbatim. A close or read error from upstream ends the loop.
func (b *Bridge) speechToClient() error {
	for {
		msgType, data, err := b.upstream.ReadMessage()
		if err != nil {
			return err
		}

		switch msgType {
		case websocket.BinaryMessage:
			if len(data) == 0 {
				continue
			}
			b.persister.PersistAsync(b.sessionID, entities.RoleSpeechService, data)
			if err := b.client.WriteMessage(websocket.BinaryMessage, data); err != nil {
				return err
			}
			// other participants of the same meeting hear the bot too
			b.registry.BroadcastExcept(b.meetingKey, websocket.BinaryMessage, data, b.client)

		case websocket.TextMessage:
			b.logger.Info("text message from speech service", zap.ByteString("payload", data))
			if err := b.client.WriteMessage(websocket.TextMessage, data); err != nil {
				return err
			}
			b.registry.BroadcastExcept(b.meetingKey, websocket.TextMessage, data, b.client)
		}
	}
}

// isExpectedClose reports whether the error is an ordinary peer disconnect
func isExpectedClose(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived)
}
