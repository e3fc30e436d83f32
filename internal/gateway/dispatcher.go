// Package gateway orchestrates inbound message traffic: allow-listing,
// echo suppression, burst debouncing, rate limiting, in-band commands,
// per-sender backend serialization, and chunked reply delivery.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/sigclaw/internal/bus"
	"github.com/nextlevelbuilder/sigclaw/internal/claude"
	"github.com/nextlevelbuilder/sigclaw/internal/config"
	"github.com/nextlevelbuilder/sigclaw/internal/guard"
	"github.com/nextlevelbuilder/sigclaw/internal/metrics"
	"github.com/nextlevelbuilder/sigclaw/internal/ratelimit"
	"github.com/nextlevelbuilder/sigclaw/internal/sessions"
)

// Transport is the messaging side the dispatcher sends through.
type Transport interface {
	SendText(ctx context.Context, recipient, text string) error
	SetTyping(ctx context.Context, recipient string, typing bool) error
	FetchAttachment(ctx context.Context, att bus.Attachment) (string, error)
}

// Runner is the backend assistant the dispatcher invokes.
type Runner interface {
	Invoke(ctx context.Context, prompt, sessionID, model string, budgetUSD float64) (*claude.Result, error)
}

// pendingSender tracks a correspondent who is not on the allow list, so
// an operator can approve them out of band. Advisory state only.
type pendingSender struct {
	Name    string
	ShortID uint64
}

// Dispatcher ties the orchestration pieces together. Safe for concurrent
// use; every inbound event may arrive on its own goroutine.
type Dispatcher struct {
	transport Transport
	runner    Runner

	sessions  *sessions.Manager
	limiter   *ratelimit.Limiter
	echoGuard *guard.EchoGuard
	debouncer *bus.Debouncer
	metrics   *metrics.Metrics
	tracer    trace.Tracer

	model        string
	maxBudgetUSD float64
	maxMsgLen    int
	truncation   int
	chunkDelay   time.Duration
	version      string

	allowMu sync.RWMutex
	allowed map[string]struct{}

	pending    sync.Map // sender id → pendingSender
	pendingSeq atomic.Uint64

	ctx context.Context
}

// New builds a Dispatcher from config and collaborators. ctx bounds the
// lifetime of everything the dispatcher starts.
func New(ctx context.Context, cfg *config.Config, transport Transport, runner Runner, m *metrics.Metrics, version string) *Dispatcher {
	ttl, _ := cfg.SessionTTLDuration()
	d := &Dispatcher{
		transport:    transport,
		runner:       runner,
		sessions:     sessions.NewManager(cfg.Model, ttl),
		limiter:      ratelimit.New(cfg.RateLimit),
		echoGuard:    guard.New(),
		metrics:      m,
		tracer:       otel.Tracer("sigclaw/gateway"),
		model:        cfg.Model,
		maxBudgetUSD: cfg.MaxBudgetUSD,
		maxMsgLen:    cfg.MaxMsgLen,
		truncation:   cfg.TruncationThreshold,
		chunkDelay:   cfg.ChunkDelay(),
		version:      version,
		allowed:      make(map[string]struct{}),
		ctx:          ctx,
	}
	d.SetAllowed(cfg.AllowedSenders())
	d.debouncer = bus.NewDebouncer(cfg.DebounceWindow(), d.process)
	return d
}

// Stop cancels pending debounce timers.
func (d *Dispatcher) Stop() {
	d.debouncer.Stop()
}

// SetAllowed replaces the allow list. Senders who were pending and are
// now allowed stop being tracked.
func (d *Dispatcher) SetAllowed(senders []string) {
	set := make(map[string]struct{}, len(senders))
	for _, s := range senders {
		set[s] = struct{}{}
	}
	d.allowMu.Lock()
	d.allowed = set
	d.allowMu.Unlock()

	d.pending.Range(func(k, _ any) bool {
		if _, ok := set[k.(string)]; ok {
			d.pending.Delete(k)
			slog.Info("pending sender approved", "sender", k)
		}
		return true
	})
}

func (d *Dispatcher) isAllowed(sender string) bool {
	if sender == "" {
		return false
	}
	d.allowMu.RLock()
	defer d.allowMu.RUnlock()
	_, ok := d.allowed[sender]
	return ok
}

// HandleInbound is the entry point for one transport event. Silent
// rejections (unknown sender, self-echo) end here; everything else goes
// through the debounce buffer and re-enters at process as its own unit
// of work.
func (d *Dispatcher) HandleInbound(msg bus.InboundMessage) {
	if !d.isAllowed(msg.SenderID) {
		d.notePending(msg.SenderID, msg.SenderName)
		return
	}

	if msg.Content != "" && d.echoGuard.IsEcho(msg.Content) {
		d.metrics.EchoesDropped.Add(1)
		slog.Debug("dropping self-echo", "sender", msg.SenderID)
		return
	}

	d.metrics.Messages.Add(1)
	slog.Info("message accepted", "sender", msg.SenderID, "preview", truncate(msg.Content, 80))

	d.debouncer.Add(msg)
}

// notePending records an unknown sender once, with a short numeric id an
// operator can correlate in logs before editing the allow list.
func (d *Dispatcher) notePending(sender, name string) {
	if sender == "" {
		return
	}
	entry := pendingSender{Name: name, ShortID: d.pendingSeq.Add(1)}
	if _, loaded := d.pending.LoadOrStore(sender, entry); !loaded {
		slog.Info("ignoring non-allowed sender, tracking as pending",
			"short_id", entry.ShortID, "sender", sender, "name", name)
	}
}

// process handles one merged unit of work after debouncing.
func (d *Dispatcher) process(msg bus.InboundMessage) {
	ctx := d.ctx
	sender := msg.SenderID

	if !d.limiter.Allow(sender) {
		d.metrics.RateLimited.Add(1)
		slog.Warn("rate limited", "sender", sender)
		d.reply(ctx, sender, "You're sending messages too quickly. Please wait a moment and try again.")
		return
	}

	if response, handled := d.handleCommand(sender, msg.Content); handled {
		d.reply(ctx, sender, response)
		return
	}

	if err := d.transport.SetTyping(ctx, sender, true); err != nil {
		slog.Debug("typing indicator failed", "error", err)
	}

	sess, _ := d.sessions.GetOrCreate(sender)
	sess.Acquire()
	defer sess.Release()

	sessionID, model := sess.Snapshot()
	prompt := d.buildPrompt(ctx, msg)

	res, err := d.invoke(ctx, prompt, sessionID, model)

	if terr := d.transport.SetTyping(ctx, sender, false); terr != nil {
		slog.Debug("typing indicator failed", "error", terr)
	}

	if err != nil {
		d.metrics.Errors.Add(1)
		slog.Error("backend invocation failed", "sender", sender, "error", err)
		d.reply(ctx, sender, fmt.Sprintf("Claude error: %v", err))
		return
	}

	if res.CostUSD != nil {
		d.metrics.AddCost(*res.CostUSD)
		slog.Info("backend cost", "cost_usd", *res.CostUSD, "total_usd", d.metrics.TotalCostUSD())
	}

	if d.truncation > 0 && len(res.Text) >= d.truncation {
		sess.MarkTruncated(true)
		d.metrics.TruncatedReplies.Add(1)
		slog.Warn("reply near length limit, may be truncated", "sender", sender, "len", len(res.Text))
	} else {
		sess.MarkTruncated(false)
	}

	d.reply(ctx, sender, res.Text)
}

// invoke wraps the backend call in a trace span. With no telemetry
// provider installed the tracer is a no-op.
func (d *Dispatcher) invoke(ctx context.Context, prompt, sessionID, model string) (*claude.Result, error) {
	ctx, span := d.tracer.Start(ctx, "backend.invoke", trace.WithAttributes(
		attribute.String("session.id", sessionID),
		attribute.String("model", model),
		attribute.Int("prompt.len", len(prompt)),
	))
	defer span.End()

	res, err := d.runner.Invoke(ctx, prompt, sessionID, model, d.maxBudgetUSD)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "backend invocation failed")
		return nil, err
	}
	if res.CostUSD != nil {
		span.SetAttributes(attribute.Float64("cost.usd", *res.CostUSD))
	}
	return res, nil
}

// buildPrompt augments the merged text with locally fetched attachment
// paths. Attachment failures are logged, never fatal.
func (d *Dispatcher) buildPrompt(ctx context.Context, msg bus.InboundMessage) string {
	prompt := msg.Content
	for _, att := range msg.Attachments {
		path, err := d.transport.FetchAttachment(ctx, att)
		if err != nil {
			slog.Warn("attachment fetch failed", "id", att.ID, "error", err)
			continue
		}
		prompt += fmt.Sprintf("\n[attachment saved to %s]", path)
	}
	return prompt
}

// reply delivers text through outbound chunking. Every part actually
// sent is recorded by the echo guard first, so a looped copy is
// recognized on the way back in.
func (d *Dispatcher) reply(ctx context.Context, recipient, text string) {
	if text == "" {
		return
	}
	parts := splitMessage(text, d.maxMsgLen)
	for i, part := range parts {
		if i > 0 {
			time.Sleep(d.chunkDelay)
		}
		d.echoGuard.Record(part)
		if err := d.transport.SendText(ctx, recipient, part); err != nil {
			d.metrics.Errors.Add(1)
			slog.Error("send failed", "recipient", recipient, "part", i+1, "parts", len(parts), "error", err)
			return
		}
	}
}

// SessionCount returns the number of live sessions.
func (d *Dispatcher) SessionCount() int { return d.sessions.Len() }

// AllowedCount returns the size of the current allow list.
func (d *Dispatcher) AllowedCount() int {
	d.allowMu.RLock()
	defer d.allowMu.RUnlock()
	return len(d.allowed)
}

// PendingCount returns how many unknown senders are awaiting approval.
func (d *Dispatcher) PendingCount() int {
	n := 0
	d.pending.Range(func(_, _ any) bool { n++; return true })
	return n
}

// Model returns the gateway's default model selector.
func (d *Dispatcher) Model() string { return d.model }

// StartSweeper runs the idle-session sweep every interval until ctx is
// cancelled.
func (d *Dispatcher) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.sessions.SweepIdle()
			}
		}
	}()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
