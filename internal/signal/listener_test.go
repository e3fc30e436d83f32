package signal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nextlevelbuilder/sigclaw/internal/bus"
)

func TestDecodeEnvelopeTextMessage(t *testing.T) {
	frame := `{"envelope": {"source": "+2000", "sourceName": "Alice",
		"dataMessage": {"message": "hi there", "attachments": [{"id": "a1", "contentType": "image/jpeg"}]}}}`
	msg, ok := decodeEnvelope([]byte(frame))
	if !ok {
		t.Fatal("expected a qualifying message")
	}
	if msg.SenderID != "+2000" || msg.SenderName != "Alice" || msg.Content != "hi there" {
		t.Fatalf("decoded = %+v", msg)
	}
	if len(msg.Attachments) != 1 || msg.Attachments[0].ID != "a1" {
		t.Fatalf("attachments = %+v", msg.Attachments)
	}
}

func TestDecodeEnvelopeSkipsNonTextEvents(t *testing.T) {
	tests := []struct {
		name  string
		frame string
	}{
		{"receipt", `{"envelope": {"source": "+2000", "receiptMessage": {"isDelivery": true}}}`},
		{"typing", `{"envelope": {"source": "+2000", "typingMessage": {"action": "STARTED"}}}`},
		{"empty text", `{"envelope": {"source": "+2000", "dataMessage": {"message": ""}}}`},
		{"no source", `{"envelope": {"dataMessage": {"message": "orphan"}}}`},
		{"malformed", `{not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := decodeEnvelope([]byte(tt.frame)); ok {
				t.Fatalf("frame %q should be skipped", tt.frame)
			}
		})
	}
}

func TestReceiveURL(t *testing.T) {
	l := NewListener("http://127.0.0.1:8080", "+1000", nil)
	if got := l.receiveURL(); got != "ws://127.0.0.1:8080/v1/receive/+1000" {
		t.Fatalf("receiveURL = %q", got)
	}
	l = NewListener("https://signal.example.com", "+1000", nil)
	if got := l.receiveURL(); got != "wss://signal.example.com/v1/receive/+1000" {
		t.Fatalf("receiveURL = %q", got)
	}
}

// wsServer upgrades connections and feeds each a fixed set of frames.
func wsServer(t *testing.T, frames []string) *httptest.Server {
	t.Helper()
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		time.Sleep(50 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestListenerForwardsQualifyingEvents(t *testing.T) {
	srv := wsServer(t, []string{
		`{"envelope": {"source": "+2000", "dataMessage": {"message": "first"}}}`,
		`{"envelope": {"source": "+2000", "receiptMessage": {}}}`,
		`{"envelope": {"source": "+3000", "dataMessage": {"message": "second"}}}`,
	})

	var mu sync.Mutex
	var got []bus.InboundMessage
	l := NewListener(srv.URL, "+1000", func(m bus.InboundMessage) {
		mu.Lock()
		got = append(got, m)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	connected, clean, err := l.connectAndStream(ctx)
	if err != nil {
		t.Fatalf("connectAndStream: %v", err)
	}
	if !connected || !clean {
		t.Fatalf("normal close should report connected and clean, got %v %v", connected, clean)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n == 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 {
		t.Fatalf("forwarded %d events, want 2", len(got))
	}
	senders := map[string]bool{}
	for _, m := range got {
		senders[m.SenderID] = true
	}
	if !senders["+2000"] || !senders["+3000"] {
		t.Fatalf("senders = %v", senders)
	}
}

func TestConnectFailureIsError(t *testing.T) {
	l := NewListener("http://127.0.0.1:1", "+1000", func(bus.InboundMessage) {})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	connected, clean, err := l.connectAndStream(ctx)
	if err == nil || connected || clean {
		t.Fatalf("expected dial error, got connected=%v clean=%v err=%v", connected, clean, err)
	}
	if !strings.Contains(err.Error(), "dial") {
		t.Fatalf("error %q should mention dial", err)
	}
}

func TestFindFreePortPrefersRequested(t *testing.T) {
	port := FindFreePort(0)
	if port <= 0 || port > 65535 {
		t.Fatalf("port = %d", port)
	}
}
