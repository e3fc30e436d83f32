package signal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/nextlevelbuilder/sigclaw/internal/bus"
)

type recordedRequest struct {
	method string
	path   string
	body   map[string]any
}

func newFakeAPI(t *testing.T, status int, respond string) (*httptest.Server, *[]recordedRequest) {
	t.Helper()
	var mu sync.Mutex
	var reqs []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		reqs = append(reqs, recordedRequest{method: r.Method, path: r.URL.Path, body: body})
		mu.Unlock()
		w.WriteHeader(status)
		w.Write([]byte(respond))
	}))
	t.Cleanup(srv.Close)
	return srv, &reqs
}

func TestSendTextPostsToV2Send(t *testing.T) {
	srv, reqs := newFakeAPI(t, http.StatusOK, "{}")
	c := NewClient(srv.URL, "+1000", t.TempDir())

	if err := c.SendText(context.Background(), "+2000", "hello"); err != nil {
		t.Fatalf("SendText: %v", err)
	}

	got := (*reqs)[0]
	if got.method != http.MethodPost || got.path != "/v2/send" {
		t.Fatalf("request = %s %s", got.method, got.path)
	}
	if got.body["message"] != "hello" || got.body["number"] != "+1000" {
		t.Fatalf("body = %v", got.body)
	}
	recipients, _ := got.body["recipients"].([]any)
	if len(recipients) != 1 || recipients[0] != "+2000" {
		t.Fatalf("recipients = %v", recipients)
	}
}

func TestSendTextSurfacesHTTPError(t *testing.T) {
	srv, _ := newFakeAPI(t, http.StatusBadGateway, "transport down")
	c := NewClient(srv.URL, "+1000", t.TempDir())

	if err := c.SendText(context.Background(), "+2000", "hello"); err == nil {
		t.Fatal("expected error on non-2xx send")
	}
}

func TestSetTypingUsesPutAndDelete(t *testing.T) {
	srv, reqs := newFakeAPI(t, http.StatusNoContent, "")
	c := NewClient(srv.URL, "+1000", t.TempDir())

	if err := c.SetTyping(context.Background(), "+2000", true); err != nil {
		t.Fatalf("SetTyping(true): %v", err)
	}
	if err := c.SetTyping(context.Background(), "+2000", false); err != nil {
		t.Fatalf("SetTyping(false): %v", err)
	}

	if (*reqs)[0].method != http.MethodPut || (*reqs)[1].method != http.MethodDelete {
		t.Fatalf("methods = %s, %s", (*reqs)[0].method, (*reqs)[1].method)
	}
	if (*reqs)[0].path != "/v1/typing-indicator/+1000" {
		t.Fatalf("path = %s", (*reqs)[0].path)
	}
}

func TestFetchAttachmentSavesFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/attachments/att-1" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("attachment bytes"))
	}))
	t.Cleanup(srv.Close)

	tmp := t.TempDir()
	c := NewClient(srv.URL, "+1000", tmp)

	path, err := c.FetchAttachment(context.Background(), bus.Attachment{ID: "att-1", Filename: "photo.jpg"})
	if err != nil {
		t.Fatalf("FetchAttachment: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	if string(data) != "attachment bytes" {
		t.Fatalf("content = %q", data)
	}
}

func TestFetchAttachmentFailure(t *testing.T) {
	srv, _ := newFakeAPI(t, http.StatusNotFound, "")
	c := NewClient(srv.URL, "+1000", t.TempDir())

	if _, err := c.FetchAttachment(context.Background(), bus.Attachment{ID: "missing"}); err == nil {
		t.Fatal("expected error for missing attachment")
	}
}
