package speech

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/voicehire-team/voicehire/pkg/config"
)

// EndSessionMessage is the reserved control frame the relay sends to the
// speech service when a call session terminates.
const EndSessionMessage = "end_session"

// Client dials the external speech (STT/TTS) service. One outbound websocket
// connection is opened per call session, addressed as <base-url>/<token>.
type Client struct {
	baseURL     string
	dialTimeout time.Duration
	dialer      *websocket.Dialer
}

// NewClient creates a speech-service client
func NewClient(cfg *config.SpeechConfig) *Client {
	return &Client{
		baseURL:     strings.TrimRight(cfg.URL, "/"),
		dialTimeout: cfg.DialTimeout,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.DialTimeout,
		},
	}
}

// Connect opens a websocket connection for one meeting token. The whole
// attempt, retries included, is bounded by the configured dial timeout so a
// dead speech service cannot hang the client indefinitely.
func (c *Client) Connect(ctx context.Context, token string) (*websocket.Conn, error) {
	url := fmt.Sprintf("%s/%s", c.baseURL, token)

	ctx, cancel := context.WithTimeout(ctx, c.dialTimeout)
	defer cancel()

	var conn *websocket.Conn
	dial := func() error {
		var resp *http.Response
		var err error
		conn, resp, err = c.dialer.DialContext(ctx, url, nil)
		if err != nil {
			if resp != nil {
				return fmt.Errorf("dial %s: %w (status %d)", url, err, resp.StatusCode)
			}
			return fmt.Errorf("dial %s: %w", url, err)
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 5 * time.Second

	if err := backoff.Retry(dial, backoff.WithContext(bo, ctx)); err != nil {
		return nil, fmt.Errorf("failed to connect to speech service: %w", err)
	}

	return conn, nil
}
