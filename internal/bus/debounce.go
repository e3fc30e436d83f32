package bus

import (
	"strings"
	"sync"
	"time"
)

// FlushFunc receives the merged message once a sender has been quiet for
// the full debounce window. It runs on its own goroutine.
type FlushFunc func(msg InboundMessage)

// Debouncer merges rapid successive messages from one sender into a
// single combined message. The merge timer is measured from the most
// recent fragment, not the first: no fragment is dispatched until the
// sender has been quiet for the whole window. A zero window disables
// debouncing and every message flushes immediately.
type Debouncer struct {
	window time.Duration
	flush  FlushFunc

	mu      sync.Mutex
	buffers map[string]*senderBuffer
	stopped bool
}

type senderBuffer struct {
	fragments   []string
	attachments []Attachment
	senderName  string
	last        time.Time
	timer       *time.Timer
}

func NewDebouncer(window time.Duration, flush FlushFunc) *Debouncer {
	return &Debouncer{
		window:  window,
		flush:   flush,
		buffers: make(map[string]*senderBuffer),
	}
}

// Add buffers msg and (re)arms the sender's merge timer. At most one
// timer exists per sender; fragments arriving while it is armed extend
// it instead of starting a second one.
func (d *Debouncer) Add(msg InboundMessage) {
	if d.window <= 0 {
		go d.flush(msg)
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	buf, ok := d.buffers[msg.SenderID]
	if !ok {
		buf = &senderBuffer{senderName: msg.SenderName}
		d.buffers[msg.SenderID] = buf
	}
	buf.fragments = append(buf.fragments, msg.Content)
	buf.attachments = append(buf.attachments, msg.Attachments...)
	buf.last = time.Now()

	if buf.timer == nil {
		sender := msg.SenderID
		buf.timer = time.AfterFunc(d.window, func() { d.fire(sender) })
	} else {
		buf.timer.Reset(d.window)
	}
}

// fire drains the sender's buffer if the quiet window has truly elapsed,
// otherwise re-arms for the remainder. Timer callbacks can race with a
// fragment that arrived just before the lock was taken.
func (d *Debouncer) fire(sender string) {
	d.mu.Lock()
	buf, ok := d.buffers[sender]
	if !ok || d.stopped {
		d.mu.Unlock()
		return
	}
	if remaining := d.window - time.Since(buf.last); remaining > 0 {
		buf.timer.Reset(remaining)
		d.mu.Unlock()
		return
	}
	delete(d.buffers, sender)
	d.mu.Unlock()

	d.flush(InboundMessage{
		SenderID:    sender,
		SenderName:  buf.senderName,
		Content:     strings.Join(buf.fragments, "\n"),
		Attachments: buf.attachments,
	})
}

// Stop cancels all pending timers. Buffered fragments are discarded.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	for sender, buf := range d.buffers {
		if buf.timer != nil {
			buf.timer.Stop()
		}
		delete(d.buffers, sender)
	}
}
