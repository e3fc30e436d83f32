package signal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nextlevelbuilder/sigclaw/internal/bus"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 60 * time.Second
)

// Listener streams inbound envelopes from the transport's receive
// endpoint and forwards qualifying events to a handler. Each event runs
// on its own goroutine so one slow backend call never blocks receipt of
// other senders' messages.
type Listener struct {
	apiURL  string
	account string
	dialer  *websocket.Dialer
	handler func(bus.InboundMessage)
}

func NewListener(apiURL, account string, handler func(bus.InboundMessage)) *Listener {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second
	return &Listener{
		apiURL:  apiURL,
		account: account,
		dialer:  &dialer,
		handler: handler,
	}
}

func (l *Listener) receiveURL() string {
	ws := l.apiURL
	if strings.HasPrefix(ws, "http") {
		ws = "ws" + strings.TrimPrefix(ws, "http")
	}
	return fmt.Sprintf("%s/v1/receive/%s", ws, l.account)
}

// Run connects, streams, and reconnects until ctx is cancelled. A clean
// stream closure reconnects immediately and resets the backoff; any
// connection error doubles the delay from 1s up to the 60s cap, and a
// successful connection resets it back to 1s.
func (l *Listener) Run(ctx context.Context) {
	backoff := initialBackoff

	for {
		if ctx.Err() != nil {
			return
		}

		connected, clean, err := l.connectAndStream(ctx)
		if connected {
			backoff = initialBackoff
		}
		switch {
		case ctx.Err() != nil:
			return
		case clean:
			slog.Info("stream closed cleanly, reconnecting")
			continue
		default:
			slog.Error("stream error, reconnecting", "error", err, "backoff", backoff)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

// connectAndStream holds one WebSocket connection open and pumps frames.
// connected is true once the dial succeeded; clean is true when the peer
// closed the stream normally.
func (l *Listener) connectAndStream(ctx context.Context) (connected, clean bool, err error) {
	url := l.receiveURL()
	slog.Info("connecting to transport stream", "url", url)

	conn, _, err := l.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return false, false, fmt.Errorf("dial %s: %w", url, err)
	}
	defer conn.Close()
	slog.Info("transport stream connected")

	// Unblock ReadMessage when the process is shutting down.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) && (ce.Code == websocket.CloseNormalClosure || ce.Code == websocket.CloseGoingAway) {
				return true, true, nil
			}
			return true, false, err
		}
		if kind != websocket.TextMessage {
			continue
		}

		msg, ok := decodeEnvelope(data)
		if !ok {
			slog.Debug("skipping non-message frame", "size", len(data))
			continue
		}

		slog.Debug("inbound message",
			"sender", msg.SenderID,
			"preview", preview(msg.Content, 80),
			"attachments", len(msg.Attachments),
		)
		go l.handler(msg)
	}
}

func preview(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
