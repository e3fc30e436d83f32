package gateway

import (
	"fmt"
	"strings"
)

// handleCommand intercepts in-band administrative commands. Commands get
// an immediate reply and never reach the backend. Unrecognized
// slash-prefixed text falls through to normal processing.
func (d *Dispatcher) handleCommand(sender, text string) (string, bool) {
	text = strings.TrimSpace(text)

	switch {
	case text == "/reset":
		d.sessions.Reset(sender)
		return "Session reset. Next message starts a fresh conversation.", true

	case text == "/status":
		uptime := d.metrics.Uptime()
		hours := int(uptime.Hours())
		mins := int(uptime.Minutes()) % 60
		return fmt.Sprintf(
			"sigclaw status\nUptime: %dh %dm\nMessages: %d\nActive sessions: %d\nPending senders: %d\nTotal cost: $%.4f",
			hours, mins,
			d.metrics.Messages.Load(),
			d.sessions.Len(),
			d.PendingCount(),
			d.metrics.TotalCostUSD(),
		), true

	case strings.HasPrefix(text, "/model "):
		model := strings.TrimSpace(strings.TrimPrefix(text, "/model "))
		if model == "" {
			return "Usage: /model <name>", true
		}
		d.sessions.SwitchModel(sender, model)
		return "Model switched to: " + model, true
	}

	return "", false
}
