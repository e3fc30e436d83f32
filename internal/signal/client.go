// Package signal is the transport side of the gateway: an HTTP client
// for the signal-cli-api send/typing/attachment endpoints, a WebSocket
// listener streaming inbound envelopes, and an optional managed
// signal-cli-api child process.
package signal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/nextlevelbuilder/sigclaw/internal/bus"
)

// Client talks to a signal-cli-api instance.
type Client struct {
	apiURL  string
	account string
	tmpDir  string
	http    *http.Client
}

func NewClient(apiURL, account, tmpDir string) *Client {
	return &Client{
		apiURL:  apiURL,
		account: account,
		tmpDir:  tmpDir,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// SendText delivers one message to recipient.
func (c *Client) SendText(ctx context.Context, recipient, text string) error {
	body, err := json.Marshal(map[string]any{
		"message":    text,
		"number":     c.account,
		"recipients": []string{recipient},
	})
	if err != nil {
		return fmt.Errorf("marshal send body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/v2/send", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("send failed (%d): %s", resp.StatusCode, detail)
	}
	return nil
}

// SetTyping toggles the composing indicator for recipient. Best-effort:
// callers log failures rather than propagating them.
func (c *Client) SetTyping(ctx context.Context, recipient string, typing bool) error {
	method := http.MethodPut
	if !typing {
		method = http.MethodDelete
	}

	body, err := json.Marshal(map[string]string{"recipient": recipient})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/v1/typing-indicator/%s", c.apiURL, c.account)
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("typing indicator: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("typing indicator failed (%d)", resp.StatusCode)
	}
	return nil
}

// FetchAttachment downloads an attachment to the tmp dir and returns the
// local file path.
func (c *Client) FetchAttachment(ctx context.Context, att bus.Attachment) (string, error) {
	url := fmt.Sprintf("%s/v1/attachments/%s", c.apiURL, att.ID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch attachment %s: %w", att.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("fetch attachment %s failed (%d)", att.ID, resp.StatusCode)
	}

	if err := os.MkdirAll(c.tmpDir, 0o755); err != nil {
		return "", err
	}
	name := att.Filename
	if name == "" {
		name = att.ID
	}
	path := filepath.Join(c.tmpDir, filepath.Base(name))

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		return "", fmt.Errorf("write attachment %s: %w", att.ID, err)
	}
	return path, nil
}
