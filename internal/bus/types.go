// Package bus carries inbound message traffic between the transport
// listener and the dispatcher, including the per-sender debounce buffer
// that merges bursts into single units of work.
package bus

// Attachment identifies a transport-side attachment that can be fetched
// to a local file on demand.
type Attachment struct {
	ID          string `json:"id"`
	ContentType string `json:"contentType,omitempty"`
	Filename    string `json:"filename,omitempty"`
}

// InboundMessage is one text event received from the transport.
type InboundMessage struct {
	SenderID    string       `json:"sender_id"`
	SenderName  string       `json:"sender_name,omitempty"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
}
