package signal

import (
	"encoding/json"

	"github.com/nextlevelbuilder/sigclaw/internal/bus"
)

// envelope mirrors the signal-cli-api receive frame. Receipts, typing
// notifications, and other non-text events simply lack a dataMessage with
// text, which is how they get filtered.
type envelope struct {
	Envelope struct {
		Source      string `json:"source"`
		SourceName  string `json:"sourceName"`
		DataMessage *struct {
			Message     string           `json:"message"`
			Attachments []bus.Attachment `json:"attachments"`
		} `json:"dataMessage"`
	} `json:"envelope"`
}

// decodeEnvelope parses one WebSocket frame into an InboundMessage.
// ok is false for malformed frames and for events that carry no text or
// attachments (receipts, typing indicators).
func decodeEnvelope(data []byte) (msg bus.InboundMessage, ok bool) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return bus.InboundMessage{}, false
	}
	if env.Envelope.Source == "" || env.Envelope.DataMessage == nil {
		return bus.InboundMessage{}, false
	}
	dm := env.Envelope.DataMessage
	if dm.Message == "" && len(dm.Attachments) == 0 {
		return bus.InboundMessage{}, false
	}
	return bus.InboundMessage{
		SenderID:    env.Envelope.Source,
		SenderName:  env.Envelope.SourceName,
		Content:     dm.Message,
		Attachments: dm.Attachments,
	}, true
}
