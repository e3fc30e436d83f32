// Package claude invokes the claude CLI as the backend assistant. Each
// invocation carries the prompt, a session ID for conversational
// continuity, the model selector, and a per-message budget cap, and
// returns the reply text with the reported cost.
package claude

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Result is one backend reply.
type Result struct {
	Text string
	// CostUSD is nil when the CLI reports no cost for the call.
	CostUSD *float64
}

// Runner executes the claude binary.
type Runner struct {
	binary string
}

func NewRunner(binary string) *Runner {
	if binary == "" {
		binary = "claude"
	}
	return &Runner{binary: binary}
}

// Invoke runs one prompt through the CLI and parses its JSON output.
// The call completes or fails on its own; there is no timeout beyond ctx.
func (r *Runner) Invoke(ctx context.Context, prompt, sessionID, model string, budgetUSD float64) (*Result, error) {
	cmd := exec.CommandContext(ctx, r.binary,
		"-p", prompt,
		"--session-id", sessionID,
		"--output-format", "json",
		"--model", model,
		"--max-budget-usd", strconv.FormatFloat(budgetUSD, 'f', -1, 64),
	)
	// The CLI changes behavior when it thinks it is nested inside itself.
	cmd.Env = scrubEnv(os.Environ(), "CLAUDE_CODE_ENTRYPOINT")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("claude exited: %s", msg)
	}

	return ParseOutput(stdout.String()), nil
}

// ParseOutput extracts the reply and cost from the CLI's stdout. Output
// that is not valid JSON is taken verbatim as the reply text.
func ParseOutput(stdout string) *Result {
	var parsed struct {
		Result       string   `json:"result"`
		CostUSD      *float64 `json:"cost_usd"`
		TotalCostUSD *float64 `json:"total_cost_usd"`
	}
	if err := json.Unmarshal([]byte(stdout), &parsed); err != nil {
		return &Result{Text: strings.TrimSpace(stdout)}
	}

	text := parsed.Result
	if text == "" {
		text = strings.TrimSpace(stdout)
	}
	cost := parsed.CostUSD
	if cost == nil {
		cost = parsed.TotalCostUSD
	}
	return &Result{Text: text, CostUSD: cost}
}

func scrubEnv(env []string, key string) []string {
	out := env[:0]
	prefix := key + "="
	for _, kv := range env {
		if !strings.HasPrefix(kv, prefix) {
			out = append(out, kv)
		}
	}
	return out
}
