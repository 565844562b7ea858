package indexer

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/stakeview/internal/errors"
	"github.com/vango-dev/stakeview/pkg/era"
)

// DefaultReconnectDelay is the pause between feed connection attempts.
const DefaultReconnectDelay = 5 * time.Second

// FeedMessage is one message of the indexer's websocket stream. Only
// messages of type "era" are acted on.
type FeedMessage struct {
	Type string `json:"type"`
	Era  uint64 `json:"era"`
}

// Feed follows the indexer's websocket stream and pushes era index changes
// into a Provider.
type Feed struct {
	url      string
	provider *era.Provider
	dialer   *websocket.Dialer
	delay    time.Duration
	logger   *slog.Logger
}

// NewFeed creates a Feed for the stream at wsURL.
func NewFeed(wsURL string, provider *era.Provider, logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{
		url:      wsURL,
		provider: provider,
		dialer:   websocket.DefaultDialer,
		delay:    DefaultReconnectDelay,
		logger:   logger.With("component", "indexer-feed"),
	}
}

// SetReconnectDelay changes the pause between connection attempts.
func (f *Feed) SetReconnectDelay(d time.Duration) {
	f.delay = d
}

// Run follows the stream until ctx is done, reconnecting after failures.
func (f *Feed) Run(ctx context.Context) error {
	for {
		err := f.follow(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.Warn("era feed disconnected", "error", err, "retry_in", f.delay)

		timer := time.NewTimer(f.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// follow reads one connection until it fails or ctx is done.
func (f *Feed) follow(ctx context.Context) error {
	conn, _, err := f.dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return errors.New(errors.CodeIndexerRequest).WithDetailf("dial %s", f.url).Wrap(err)
	}
	defer conn.Close()
	f.logger.Info("era feed connected", "url", f.url)

	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var msg FeedMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			f.logger.Debug("ignoring malformed feed message", "error", err)
			continue
		}
		if msg.Type != "era" {
			continue
		}
		f.provider.Set(msg.Era)
	}
}
