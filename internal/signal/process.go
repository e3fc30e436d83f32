package signal

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/exec"
	"time"
)

// FindFreePort returns a free TCP port, preferring the given one and
// scanning upward before falling back to an OS-assigned port.
func FindFreePort(preferred int) int {
	if preferred > 0 {
		for port := preferred; port <= preferred+100 && port <= 65535; port++ {
			ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
			if err != nil {
				continue
			}
			ln.Close()
			return port
		}
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return preferred
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

// ManagedAPI is a signal-cli-api child process owned by this gateway.
type ManagedAPI struct {
	cmd *exec.Cmd
	// URL is the base API URL of the running instance.
	URL string
}

// StartManagedAPI locates the signal-cli-api binary, spawns it on a free
// port, and polls its health endpoint until ready. Failure here is fatal
// to the caller: the gateway cannot run without its transport.
func StartManagedAPI(ctx context.Context, preferredPort int) (*ManagedAPI, error) {
	binary, err := exec.LookPath("signal-cli-api")
	if err != nil {
		return nil, fmt.Errorf("signal-cli-api not found in PATH: %w", err)
	}

	port := FindFreePort(preferredPort)
	if port != preferredPort {
		slog.Warn("preferred port unavailable", "preferred", preferredPort, "using", port)
	}
	listenAddr := fmt.Sprintf("127.0.0.1:%d", port)
	apiURL := "http://" + listenAddr

	slog.Info("starting managed signal-cli-api", "binary", binary, "addr", listenAddr)
	cmd := exec.CommandContext(ctx, binary, "--listen", listenAddr)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start signal-cli-api: %w", err)
	}

	if err := waitHealthy(ctx, apiURL, 10*time.Second); err != nil {
		_ = cmd.Process.Kill()
		return nil, err
	}

	slog.Info("signal-cli-api ready", "url", apiURL)
	return &ManagedAPI{cmd: cmd, URL: apiURL}, nil
}

// Stop terminates the child process.
func (m *ManagedAPI) Stop() {
	if m.cmd != nil && m.cmd.Process != nil {
		_ = m.cmd.Process.Kill()
	}
}

// waitHealthy polls {api}/v1/health until it answers 2xx or the limit
// elapses.
func waitHealthy(ctx context.Context, apiURL string, limit time.Duration) error {
	client := &http.Client{Timeout: 2 * time.Second}
	deadline := time.Now().Add(limit)
	attempt := 0

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
		attempt++

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+"/v1/health", nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			slog.Debug("health check not ready", "attempt", attempt)
			continue
		}
		resp.Body.Close()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		slog.Debug("health check rejected", "attempt", attempt, "status", resp.StatusCode)
	}

	return fmt.Errorf("signal-cli-api did not become healthy within %s", limit)
}
